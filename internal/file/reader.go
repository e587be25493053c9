// Package file reads, decrypts, verifies, and decodes entry payloads.
package file

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // SHA-1 is mandated by the container format
	"errors"
	"fmt"
	"io"

	"github.com/meigma/pak/internal/crypt"
	"github.com/meigma/pak/internal/format"
	"github.com/meigma/pak/internal/paktype"
	"github.com/meigma/pak/internal/sizing"
)

const (
	// DefaultMaxFileSize is the default maximum entry size (1GB), applied
	// to both stored and uncompressed sizes.
	DefaultMaxFileSize = 1 << 30

	// DefaultMaxDecoderMemory is the default maximum decoder memory (256MB).
	DefaultMaxDecoderMemory = 256 << 20
)

// ByteSource provides random access to the container.
// SourceID must return a stable identifier for the underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// Reader reads entry payloads from a ByteSource.
//
// Reader only issues positional reads, so it is safe for concurrent use.
type Reader struct {
	source             ByteSource
	version            int32
	cipher             *crypt.Cipher
	verify             bool
	maxFileSize        uint64
	maxDecoderMemory   uint64
	decoderConcurrency *int
	pool               *DecompressPool
}

// Option configures a Reader.
type Option func(*Reader)

// WithCipher sets the cipher used for encrypted entries.
func WithCipher(c *crypt.Cipher) Option {
	return func(r *Reader) {
		r.cipher = c
	}
}

// WithVerify controls SHA-1 verification of stored bytes (default: true).
func WithVerify(enabled bool) Option {
	return func(r *Reader) {
		r.verify = enabled
	}
}

// WithMaxFileSize sets the maximum entry size. Set to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(r *Reader) {
		r.maxFileSize = limit
	}
}

// WithMaxDecoderMemory sets the maximum zstd decoder memory.
// Set to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(r *Reader) {
		r.maxDecoderMemory = limit
	}
}

// WithDecoderConcurrency sets the zstd decoder concurrency (default: 1).
func WithDecoderConcurrency(n int) Option {
	return func(r *Reader) {
		r.decoderConcurrency = &n
	}
}

// NewReader creates a Reader for entries of a container with the given version.
func NewReader(source ByteSource, version int32, opts ...Option) *Reader {
	r := &Reader{
		source:           source,
		version:          version,
		verify:           true,
		maxFileSize:      DefaultMaxFileSize,
		maxDecoderMemory: DefaultMaxDecoderMemory,
	}
	for _, opt := range opts {
		opt(r)
	}
	var poolOpts []decompressOption
	if r.decoderConcurrency != nil {
		poolOpts = append(poolOpts, withDecoderConcurrency(*r.decoderConcurrency))
	}
	r.pool = NewDecompressPool(r.maxDecoderMemory, poolOpts...)
	return r
}

// Source returns the underlying ByteSource.
func (r *Reader) Source() ByteSource {
	return r.source
}

// DataOffset returns the container offset where e's stored bytes begin.
func (r *Reader) DataOffset(e *paktype.Entry) int64 {
	return e.Offset + int64(format.RecordSize(e, r.version))
}

// ReadAll returns the decoded content of e. The stored bytes are read,
// decrypted, verified against the entry hash, and decompressed block by
// block. The returned buffer is owned by the caller.
func (r *Reader) ReadAll(e *paktype.Entry) ([]byte, error) {
	if e.Deleted {
		return nil, paktype.ErrDeleted
	}
	if e.Encrypted && r.cipher == nil {
		return nil, paktype.ErrKeyRequired
	}
	if err := r.validate(e); err != nil {
		return nil, err
	}
	if err := r.CheckHeader(e); err != nil {
		return nil, err
	}

	stored, err := r.readStored(e)
	if err != nil {
		return nil, err
	}
	if r.verify {
		if err := verifyHash(e, stored); err != nil {
			return nil, err
		}
	}
	if e.Compression == paktype.CompressionNone {
		return stored, nil
	}
	return r.decodeBlocks(e, stored)
}

// CheckHeader reads the record header stored in front of e's payload and
// compares it with e. A header that does not decode or does not describe
// the same payload fails with ErrFormat.
func (r *Reader) CheckHeader(e *paktype.Entry) error {
	n := format.RecordSize(e, r.version)
	if !sizing.InRange(e.Offset, int64(n), r.source.Size()) {
		return fmt.Errorf("%w: record header of %s exceeds container", paktype.ErrFormat, e.Name)
	}
	buf := make([]byte, n)
	if read, err := r.source.ReadAt(buf, e.Offset); read < n {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("%w: read record header of %s: %w", paktype.ErrIO, e.Name, err)
	}
	h, err := format.DecodeRecordHeader(buf, e.Offset, r.version)
	if err != nil {
		return fmt.Errorf("record header of %s: %w", e.Name, err)
	}
	if !format.SameRecord(e, &h) {
		return fmt.Errorf("%w: record header of %s does not match the index", paktype.ErrFormat, e.Name)
	}
	return nil
}

// validate checks e against the size limit and the source bounds.
func (r *Reader) validate(e *paktype.Entry) error {
	if r.maxFileSize > 0 {
		if uint64(e.Size) > r.maxFileSize || uint64(e.UncompressedSize) > r.maxFileSize { //nolint:gosec // validated non-negative at decode
			return fmt.Errorf("%w: entry exceeds %d bytes", paktype.ErrSizeOverflow, r.maxFileSize)
		}
	}
	size := r.source.Size()
	if e.Compression == paktype.CompressionNone {
		if !sizing.InRange(r.DataOffset(e), r.storedLen(e, e.Size), size) {
			return fmt.Errorf("%w: entry data exceeds container", paktype.ErrFormat)
		}
		return nil
	}
	for _, blk := range e.Blocks {
		if !sizing.InRange(blk.Start, r.storedLen(e, blk.Len()), size) {
			return fmt.Errorf("%w: block [%d, %d) exceeds container", paktype.ErrFormat, blk.Start, blk.End)
		}
	}
	return nil
}

// storedLen returns the on-disk length of n meaningful bytes.
func (r *Reader) storedLen(e *paktype.Entry, n int64) int64 {
	if e.Encrypted {
		return sizing.Align16(n)
	}
	return n
}

// readStored returns the decrypted stored bytes of e, with cipher padding
// removed and blocks concatenated.
func (r *Reader) readStored(e *paktype.Entry) ([]byte, error) {
	size, err := sizing.ToInt(e.Size, paktype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	if e.Compression == paktype.CompressionNone {
		return r.readRange(e, r.DataOffset(e), e.Size)
	}
	stored := make([]byte, 0, size)
	for _, blk := range e.Blocks {
		b, err := r.readRange(e, blk.Start, blk.Len())
		if err != nil {
			return nil, err
		}
		stored = append(stored, b...)
	}
	return stored, nil
}

// readRange reads n meaningful bytes at off, decrypting when needed.
func (r *Reader) readRange(e *paktype.Entry, off, n int64) ([]byte, error) {
	onDisk, err := sizing.ToInt(r.storedLen(e, n), paktype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, onDisk)
	if onDisk > 0 {
		read, err := r.source.ReadAt(buf, off)
		if read < onDisk {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("%w: read %s at %d: %w", paktype.ErrIO, e.Name, off, err)
		}
	}
	if e.Encrypted {
		if err := r.cipher.Decrypt(buf, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", paktype.ErrIntegrity, err)
		}
	}
	return buf[:n], nil
}

// decodeBlocks decompresses the concatenated stored blocks of e.
func (r *Reader) decodeBlocks(e *paktype.Entry, stored []byte) ([]byte, error) {
	total, err := sizing.ToInt(e.UncompressedSize, paktype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	out := make([]byte, total)
	blockSize := int64(e.BlockSize)
	var written, consumed int64
	for i, blk := range e.Blocks {
		want := min(blockSize, e.UncompressedSize-written)
		if want <= 0 {
			return nil, fmt.Errorf("%w: block %d of %s has no output", paktype.ErrDecompression, i, e.Name)
		}
		src := stored[consumed : consumed+blk.Len()]
		if err := r.pool.Decode(e.Compression, out[written:written+want], src); err != nil {
			return nil, fmt.Errorf("read %s block %d: %w", e.Name, i, err)
		}
		written += want
		consumed += blk.Len()
	}
	if written != e.UncompressedSize {
		return nil, fmt.Errorf("%w: %s decoded %d of %d bytes", paktype.ErrDecompression, e.Name, written, e.UncompressedSize)
	}
	return out, nil
}

// verifyHash checks stored bytes against the entry hash.
func verifyHash(e *paktype.Entry, stored []byte) error {
	sum := sha1.Sum(stored) //nolint:gosec // format-mandated hash
	if !bytes.Equal(sum[:], e.Hash) {
		return fmt.Errorf("read %s: %w", e.Name, paktype.ErrHashMismatch)
	}
	return nil
}

// HashStored returns the SHA-1 of stored bytes, as recorded in entries.
func HashStored(stored []byte) []byte {
	sum := sha1.Sum(stored) //nolint:gosec // format-mandated hash
	return sum[:]
}
