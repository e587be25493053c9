package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/pak/internal/paktype"
)

// DecompressPool manages reusable decoders for every supported codec.
type DecompressPool struct {
	zstd                  sync.Pool
	zlib                  sync.Pool
	gzip                  sync.Pool
	lz4                   sync.Pool
	maxDecoderMemory      uint64
	decoderConcurrencySet bool
	decoderConcurrency    int
}

// decompressOption configures a DecompressPool.
type decompressOption func(*DecompressPool)

// withDecoderConcurrency sets the zstd decoder concurrency level.
func withDecoderConcurrency(n int) decompressOption {
	return func(p *DecompressPool) {
		if n < 0 {
			n = 0
		}
		p.decoderConcurrency = n
		p.decoderConcurrencySet = true
	}
}

// NewDecompressPool creates a decoder pool.
// If maxMemory is 0, no memory limit is applied to zstd decoders.
func NewDecompressPool(maxMemory uint64, opts ...decompressOption) *DecompressPool {
	p := &DecompressPool{
		maxDecoderMemory:      maxMemory,
		decoderConcurrencySet: true,
		decoderConcurrency:    1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decode decompresses src into dst, which must be exactly the size of the
// decoded block. Any mismatch is reported as ErrDecompression.
func (p *DecompressPool) Decode(c paktype.Compression, dst, src []byte) error {
	var err error
	switch c {
	case paktype.CompressionNone:
		if len(src) != len(dst) {
			return fmt.Errorf("%w: stored block is %d bytes, want %d", paktype.ErrDecompression, len(src), len(dst))
		}
		copy(dst, src)
		return nil
	case paktype.CompressionZstd:
		err = p.decodeZstd(dst, src)
	case paktype.CompressionZlib:
		err = p.decodeZlib(dst, src)
	case paktype.CompressionGzip:
		err = p.decodeGzip(dst, src)
	case paktype.CompressionLZ4:
		err = p.decodeLZ4(dst, src)
	default:
		return fmt.Errorf("%w: unsupported compression %s", paktype.ErrFormat, c)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", paktype.ErrDecompression, c, err)
	}
	return nil
}

func (p *DecompressPool) decodeZstd(dst, src []byte) error {
	dec, ok := p.zstd.Get().(*zstd.Decoder)
	if !ok {
		var err error
		dec, err = p.newZstdDecoder()
		if err != nil {
			return err
		}
	}
	if err := dec.Reset(bytes.NewReader(src)); err != nil {
		dec.Close()
		return err
	}
	err := readExact(dec, dst)
	_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
	p.zstd.Put(dec)
	return err
}

// newZstdDecoder creates a zstd decoder with the configured limits.
func (p *DecompressPool) newZstdDecoder() (*zstd.Decoder, error) {
	opts := make([]zstd.DOption, 0, 2)
	if p.decoderConcurrencySet {
		opts = append(opts, zstd.WithDecoderConcurrency(p.decoderConcurrency))
	}
	if p.maxDecoderMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(p.maxDecoderMemory))
	}
	return zstd.NewReader(nil, opts...)
}

func (p *DecompressPool) decodeZlib(dst, src []byte) error {
	if rc, ok := p.zlib.Get().(io.ReadCloser); ok {
		if err := rc.(zlib.Resetter).Reset(bytes.NewReader(src), nil); err != nil {
			return err
		}
		err := readExact(rc, dst)
		p.zlib.Put(rc)
		return err
	}
	rc, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return err
	}
	err = readExact(rc, dst)
	p.zlib.Put(rc)
	return err
}

func (p *DecompressPool) decodeGzip(dst, src []byte) error {
	if zr, ok := p.gzip.Get().(*gzip.Reader); ok {
		if err := zr.Reset(bytes.NewReader(src)); err != nil {
			return err
		}
		err := readExact(zr, dst)
		p.gzip.Put(zr)
		return err
	}
	zr, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return err
	}
	err = readExact(zr, dst)
	p.gzip.Put(zr)
	return err
}

func (p *DecompressPool) decodeLZ4(dst, src []byte) error {
	zr, ok := p.lz4.Get().(*lz4.Reader)
	if !ok {
		zr = lz4.NewReader(nil)
	}
	zr.Reset(bytes.NewReader(src))
	err := readExact(zr, dst)
	p.lz4.Put(zr)
	return err
}

// errExtraData is returned when a block decodes to more bytes than declared.
var errExtraData = errors.New("block decodes to more data than declared")

// readExact fills dst from r and requires r to be exhausted afterwards.
func readExact(r io.Reader, dst []byte) error {
	if _, err := io.ReadFull(r, dst); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	var probe [1]byte
	n, err := r.Read(probe[:])
	if n > 0 {
		return errExtraData
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
