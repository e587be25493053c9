// Package write holds the encoding side of archive creation: per-codec
// block compressors and the skip-compression policy.
package write

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/pak/internal/paktype"
)

// Compressor encodes blocks with one codec. Encoders are reused across
// calls, so a Compressor is not safe for concurrent use.
type Compressor struct {
	method paktype.Compression
	buf    bytes.Buffer
	zstd   *zstd.Encoder
	zlib   *zlib.Writer
	gzip   *gzip.Writer
	lz4    *lz4.Writer
}

// NewCompressor returns a Compressor for method.
func NewCompressor(method paktype.Compression) (*Compressor, error) {
	c := &Compressor{method: method}
	var err error
	switch method {
	case paktype.CompressionNone:
	case paktype.CompressionZstd:
		c.zstd, err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
	case paktype.CompressionZlib:
		c.zlib, err = zlib.NewWriterLevel(&c.buf, zlib.DefaultCompression)
	case paktype.CompressionGzip:
		c.gzip, err = gzip.NewWriterLevel(&c.buf, gzip.DefaultCompression)
	case paktype.CompressionLZ4:
		c.lz4 = lz4.NewWriter(&c.buf)
	default:
		return nil, fmt.Errorf("unsupported compression %s", method)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s encoder: %w", method, err)
	}
	return c, nil
}

// Method returns the codec used by c.
func (c *Compressor) Method() paktype.Compression {
	return c.method
}

// Compress encodes src as one independent block and returns a newly
// allocated slice.
func (c *Compressor) Compress(src []byte) ([]byte, error) {
	if c.method == paktype.CompressionNone {
		return append([]byte(nil), src...), nil
	}
	if c.zstd != nil {
		return c.zstd.EncodeAll(src, nil), nil
	}

	c.buf.Reset()
	var err error
	switch {
	case c.zlib != nil:
		c.zlib.Reset(&c.buf)
		if _, err = c.zlib.Write(src); err == nil {
			err = c.zlib.Close()
		}
	case c.gzip != nil:
		c.gzip.Reset(&c.buf)
		if _, err = c.gzip.Write(src); err == nil {
			err = c.gzip.Close()
		}
	case c.lz4 != nil:
		c.lz4.Reset(&c.buf)
		if _, err = c.lz4.Write(src); err == nil {
			err = c.lz4.Close()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s compress: %w", c.method, err)
	}
	return append([]byte(nil), c.buf.Bytes()...), nil
}

// Close releases encoder resources.
func (c *Compressor) Close() error {
	if c.zstd != nil {
		return c.zstd.Close()
	}
	return nil
}
