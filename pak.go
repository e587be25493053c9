package pak

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // SHA-1 is mandated by the container format
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/pak/cache"
	"github.com/meigma/pak/internal/crypt"
	"github.com/meigma/pak/internal/file"
	"github.com/meigma/pak/internal/format"
	"github.com/meigma/pak/internal/paktype"
	"github.com/meigma/pak/internal/sizing"
)

// Re-export types from internal/paktype for public API.
type (
	// Entry describes a file in the archive.
	Entry = paktype.Entry

	// Block is a compressed block's byte range within the container.
	Block = paktype.Block

	// Compression identifies the codec used for an entry's blocks.
	Compression = paktype.Compression
)

// Re-export compression constants.
const (
	CompressionNone = paktype.CompressionNone
	CompressionZlib = paktype.CompressionZlib
	CompressionGzip = paktype.CompressionGzip
	CompressionZstd = paktype.CompressionZstd
	CompressionLZ4  = paktype.CompressionLZ4
)

// ParseCompression returns the Compression for a codec name such as "zstd".
var ParseCompression = paktype.ParseCompression

// Container versions understood by this package.
const (
	VersionMin    = format.VersionInitial
	VersionLatest = format.VersionLatest
)

// Interface compliance.
var (
	_ fs.FS         = (*Archive)(nil)
	_ fs.StatFS     = (*Archive)(nil)
	_ fs.ReadFileFS = (*Archive)(nil)
	_ fs.ReadDirFS  = (*Archive)(nil)
)

// ByteSource provides random access to the container.
//
// Implementations exist for local files (*os.File) and HTTP range requests.
// SourceID must return a stable identifier for the underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// Archive provides random access to the entries of a container.
//
// The index is parsed once by New; the entry list never changes afterwards.
// All reads are positional, so an Archive is safe for concurrent use.
//
// Archive implements fs.FS, fs.StatFS, fs.ReadFileFS, and fs.ReadDirFS
// for entries whose names are valid fs paths.
type Archive struct {
	source                ByteSource
	footer                format.Footer
	mountPoint            string
	entries               []Entry
	byName                map[string]int
	indexDigest           digest.Digest
	reader                *file.Reader
	maxFileSize           uint64
	maxIndexSize          uint64
	maxDecoderMemory      uint64
	decoderConcurrencySet bool
	decoderConcurrency    int
	verify                bool
	hasKey                bool
	keyProven             atomic.Bool        // key authenticated against index or payload hashes
	cache                 cache.Cache        // nil = no caching
	readGroup             singleflight.Group // zero value is valid
	treeOnce              sync.Once
	tree                  *dirTree // built on first fs access
	logger                *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// New reads the footer and index of the container behind source.
//
// key may be nil for archives that carry no encrypted content. Errors
// match ErrFormat, ErrIntegrity (ErrInvalidKey for an encrypted index that
// does not decrypt), ErrKeyRequired, or ErrIO.
func New(source ByteSource, key Key, opts ...Option) (*Archive, error) {
	a := &Archive{
		source:           source,
		maxFileSize:      file.DefaultMaxFileSize,
		maxIndexSize:     DefaultMaxIndexSize,
		maxDecoderMemory: file.DefaultMaxDecoderMemory,
		verify:           true,
	}
	for _, opt := range opts {
		opt(a)
	}

	cipher, err := key.cipher()
	if err != nil {
		return nil, err
	}
	footer, err := format.ReadFooter(source, source.Size())
	if err != nil {
		return nil, err
	}
	a.footer = *footer
	a.hasKey = cipher != nil

	plain, err := a.readIndex(cipher)
	if err != nil {
		return nil, err
	}
	a.keyProven.Store(footer.IndexEncrypted)
	idx, err := format.DecodeIndex(plain, footer.Version)
	if err != nil {
		return nil, err
	}
	a.mountPoint = idx.MountPoint
	a.entries = idx.Entries
	a.byName = make(map[string]int, len(a.entries))
	for i := range a.entries {
		e := &a.entries[i]
		if j, seen := a.byName[e.Name]; !seen || (a.entries[j].Deleted && !e.Deleted) {
			a.byName[e.Name] = i
		}
	}
	a.indexDigest = digest.FromBytes(plain)

	readerOpts := []file.Option{
		file.WithCipher(cipher),
		file.WithVerify(a.verify),
		file.WithMaxFileSize(a.maxFileSize),
		file.WithMaxDecoderMemory(a.maxDecoderMemory),
	}
	if a.decoderConcurrencySet {
		readerOpts = append(readerOpts, file.WithDecoderConcurrency(a.decoderConcurrency))
	}
	a.reader = file.NewReader(source, footer.Version, readerOpts...)
	if err := a.checkFirstRecord(); err != nil {
		return nil, err
	}

	a.log().Debug("archive opened",
		"source", source.SourceID(),
		"version", footer.Version,
		"entries", len(a.entries),
		"index_encrypted", footer.IndexEncrypted,
		"mount_point", a.mountPoint)
	return a, nil
}

// checkFirstRecord compares the record header at the lowest payload offset
// with its index record, so damage to the start of the container fails New.
func (a *Archive) checkFirstRecord() error {
	first := -1
	for i := range a.entries {
		if a.entries[i].Deleted {
			continue
		}
		if first < 0 || a.entries[i].Offset < a.entries[first].Offset {
			first = i
		}
	}
	if first < 0 {
		return nil
	}
	return a.reader.CheckHeader(&a.entries[first])
}

// readIndex reads, decrypts, and authenticates the index bytes.
func (a *Archive) readIndex(cipher *crypt.Cipher) ([]byte, error) {
	f := &a.footer
	if f.IndexEncrypted && cipher == nil {
		return nil, fmt.Errorf("read index: %w", ErrKeyRequired)
	}
	if a.maxIndexSize > 0 && uint64(f.IndexSize) > a.maxIndexSize { //nolint:gosec // footer validated non-negative
		return nil, fmt.Errorf("%w: index is %d bytes, limit %d", ErrSizeOverflow, f.IndexSize, a.maxIndexSize)
	}
	n, err := sizing.ToInt(f.IndexSize, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if read, err := a.source.ReadAt(buf, f.IndexOffset); read < n {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: read index: %w", ErrIO, err)
	}
	if f.IndexEncrypted {
		if err := cipher.Decrypt(buf, buf); err != nil {
			return nil, fmt.Errorf("%w: decrypt index: %v", ErrFormat, err)
		}
	}
	sum := sha1.Sum(buf) //nolint:gosec // format-mandated hash
	if !bytes.Equal(sum[:], f.IndexHash[:]) {
		if f.IndexEncrypted {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("%w: index hash mismatch", ErrIntegrity)
	}
	return buf, nil
}

// Len returns the number of entries, delete records included.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entries returns a copy of the directory in on-disk order.
func (a *Archive) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	for i := range a.entries {
		out[i] = a.entries[i].Clone()
	}
	return out
}

// All returns an iterator over entries and their indexes in on-disk order.
func (a *Archive) All() iter.Seq2[int, Entry] {
	return func(yield func(int, Entry) bool) {
		for i := range a.entries {
			if !yield(i, a.entries[i].Clone()) {
				return
			}
		}
	}
}

// Entry returns the entry at index i.
func (a *Archive) Entry(i int) (Entry, error) {
	e, err := a.entry(i)
	if err != nil {
		return Entry{}, err
	}
	return e.Clone(), nil
}

func (a *Archive) entry(i int) (*Entry, error) {
	if i < 0 || i >= len(a.entries) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, len(a.entries))
	}
	return &a.entries[i], nil
}

// Index returns the index of the first live entry named name. When every
// entry with that name is a delete record, it returns the first of those.
func (a *Archive) Index(name string) (int, bool) {
	i, ok := a.byName[name]
	return i, ok
}

// ReadEntry returns the decoded content of the entry at index i.
//
// The stored bytes are decrypted when needed, checked against the entry
// hash, and decompressed. A failed read leaves the Archive usable. The
// returned buffer is owned by the caller.
func (a *Archive) ReadEntry(i int) ([]byte, error) {
	e, err := a.entry(i)
	if err != nil {
		return nil, err
	}
	return a.read(e)
}

// ReadFile returns the decoded content of the entry Index resolves name to.
//
// ReadFile also implements fs.ReadFileFS; unlike Open, it accepts any
// stored name, including ones that are not valid fs paths.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	i, ok := a.byName[name]
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: ErrNotFound}
	}
	return a.read(&a.entries[i])
}

// read returns the decoded content of e, going through the cache when set.
//
// Cached content is keyed by what the index says, not by the key, so
// encrypted entries only use the cache once the archive key has been
// authenticated: by decrypting the index, or by one verified payload read.
func (a *Archive) read(e *Entry) ([]byte, error) {
	if a.cache == nil {
		return a.reader.ReadAll(e)
	}
	if e.Deleted {
		return nil, ErrDeleted
	}
	if e.Encrypted {
		if !a.hasKey {
			return nil, ErrKeyRequired
		}
		if !a.keyProven.Load() {
			content, err := a.reader.ReadAll(e)
			if err != nil {
				return nil, err
			}
			if a.verify && e.Size > 0 {
				a.keyProven.Store(true)
			}
			return content, nil
		}
	}

	key := contentKey(e)
	if content, ok := a.cacheGet(key, e); ok {
		a.log().Debug("entry cache hit", "name", e.Name)
		return content, nil
	}
	a.log().Debug("entry cache miss", "name", e.Name)

	result, err, shared := a.readGroup.Do(string(key), func() (any, error) {
		if content, ok := a.cacheGet(key, e); ok {
			return content, nil
		}
		content, err := a.reader.ReadAll(e)
		if err != nil {
			return nil, err
		}
		if err := a.cache.Put(key, newBytesFile(e.Name, content)); err != nil {
			a.log().Debug("entry cache put failed", "name", e.Name, "error", err)
		}
		return content, nil
	})
	if err != nil {
		return nil, err
	}
	content := result.([]byte) //nolint:errcheck // type assertion always succeeds when err is nil
	if shared {
		content = bytes.Clone(content)
	}
	return content, nil
}

// MountPoint returns the path prefix entries are relative to.
func (a *Archive) MountPoint() string {
	return a.mountPoint
}

// Version returns the container version.
func (a *Archive) Version() int32 {
	return a.footer.Version
}

// IndexEncrypted reports whether the index is stored encrypted.
func (a *Archive) IndexEncrypted() bool {
	return a.footer.IndexEncrypted
}

// EncryptionKeyGUID returns the GUID naming the key the archive expects.
// It is all zeros before version 7 and for archives without a named key.
func (a *Archive) EncryptionKeyGUID() [16]byte {
	return a.footer.KeyGUID
}

// IndexDigest returns the digest of the plaintext index. Two archives
// with the same digest list the same entries at the same offsets.
func (a *Archive) IndexDigest() digest.Digest {
	return a.indexDigest
}

// PayloadSize returns the sum of the stored sizes of all entries.
func (a *Archive) PayloadSize() int64 {
	var total int64
	for i := range a.entries {
		total += a.entries[i].Size
	}
	return total
}

// Size returns the container size in bytes.
func (a *Archive) Size() int64 {
	return a.source.Size()
}

// SourceID returns the identifier of the underlying byte source.
func (a *Archive) SourceID() string {
	return a.source.SourceID()
}
