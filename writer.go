package pak

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/meigma/pak/internal/crypt"
	"github.com/meigma/pak/internal/file"
	"github.com/meigma/pak/internal/format"
	"github.com/meigma/pak/internal/paktype"
	"github.com/meigma/pak/internal/sizing"
	"github.com/meigma/pak/internal/write"
)

// Writer builds a container by appending entries to an io.Writer.
//
// Each entry is written immediately as a record header followed by its
// stored bytes; the index and footer are written by Close. Duplicate names
// are allowed and kept in order. A Writer is not safe for concurrent use.
type Writer struct {
	w       io.Writer
	cfg     createConfig
	cipher  *crypt.Cipher
	comp    *write.Compressor
	offset  int64
	entries []Entry
	closed  bool
	err     error // sticky write error
}

// NewWriter returns a Writer that writes a container to w.
// It fails when the options ask for a feature the version cannot encode
// or for encryption without a key.
func NewWriter(w io.Writer, opts ...CreateOption) (*Writer, error) {
	cfg := createConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.version == 0 {
		cfg.version = VersionLatest
	}
	if cfg.blockSize == 0 {
		cfg.blockSize = DefaultBlockSize
	}
	if cfg.mountPoint == nil {
		mp := DefaultMountPoint
		cfg.mountPoint = &mp
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	pw := &Writer{w: w, cfg: cfg}
	if cfg.encryptIndex || cfg.encryptPayloads {
		c, err := cfg.key.cipher()
		if err != nil {
			return nil, err
		}
		pw.cipher = c
	}
	if cfg.compression != CompressionNone {
		c, err := write.NewCompressor(cfg.compression)
		if err != nil {
			return nil, err
		}
		pw.comp = c
	}
	return pw, nil
}

func (cfg *createConfig) validate() error {
	v := cfg.version
	switch {
	case !format.SupportedVersion(v):
		return fmt.Errorf("%w: %d", format.ErrUnsupportedVersion, v)
	case !cfg.compression.Known():
		return fmt.Errorf("pak: unsupported compression %s", cfg.compression)
	case cfg.compression != CompressionNone && v < format.VersionCompressionEncryption:
		return fmt.Errorf("pak: compression needs version %d or later", format.VersionCompressionEncryption)
	case cfg.encryptPayloads && v < format.VersionCompressionEncryption:
		return fmt.Errorf("pak: payload encryption needs version %d or later", format.VersionCompressionEncryption)
	case cfg.encryptIndex && v < format.VersionIndexEncryption:
		return fmt.Errorf("pak: index encryption needs version %d or later", format.VersionIndexEncryption)
	case (cfg.encryptIndex || cfg.encryptPayloads) && len(cfg.key) == 0:
		return fmt.Errorf("pak: encryption requested: %w", ErrKeyRequired)
	}
	return nil
}

func (pw *Writer) log() *slog.Logger {
	if pw.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return pw.cfg.logger
}

// Len returns the number of entries added so far.
func (pw *Writer) Len() int {
	return len(pw.entries)
}

// Add appends an entry named name with the given content.
//
// Compression is skipped when a skip predicate matches or when the
// compressed form would not be smaller.
func (pw *Writer) Add(name string, content []byte) error {
	if err := pw.check(name); err != nil {
		return err
	}
	e := Entry{
		Name:             name,
		Offset:           pw.offset,
		UncompressedSize: int64(len(content)),
		Encrypted:        pw.cfg.encryptPayloads,
	}

	pieces, err := pw.encode(&e, content)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	var stored []byte
	if len(pieces) == 1 {
		stored = pieces[0]
	} else {
		stored = bytes.Join(pieces, nil)
	}
	e.Size = int64(len(stored))
	e.Hash = file.HashStored(stored)

	pos := e.Offset + int64(format.RecordSize(&e, pw.cfg.version))
	if e.Compression != CompressionNone {
		for i, p := range pieces {
			e.Blocks[i] = Block{Start: pos, End: pos + int64(len(p))}
			pos += pw.storedLen(&e, int64(len(p)))
		}
	}

	pw.write(format.AppendRecord(nil, &e, pw.cfg.version, true))
	for _, p := range pieces {
		pw.writePayload(&e, p)
	}
	if pw.err != nil {
		return pw.err
	}
	pw.entries = append(pw.entries, e)
	return nil
}

// AddDeleted appends a delete record for name. Delete records carry no
// content; readers report ErrDeleted for them. Requires version 6 or later.
func (pw *Writer) AddDeleted(name string) error {
	if err := pw.check(name); err != nil {
		return err
	}
	if pw.cfg.version < format.VersionDeleteRecords {
		return fmt.Errorf("pak: delete records need version %d or later", format.VersionDeleteRecords)
	}
	pw.entries = append(pw.entries, Entry{Name: name, Hash: make([]byte, paktype.HashSize), Deleted: true})
	return nil
}

func (pw *Writer) check(name string) error {
	if pw.closed {
		return ErrWriterClosed
	}
	if pw.err != nil {
		return pw.err
	}
	if name == "" || strings.ContainsRune(name, 0) {
		return fmt.Errorf("pak: invalid entry name %q", name)
	}
	maxFiles := pw.cfg.maxFiles
	if maxFiles == 0 {
		maxFiles = DefaultMaxFiles
	}
	if maxFiles > 0 && len(pw.entries) >= maxFiles {
		return ErrTooManyFiles
	}
	return nil
}

// encode sets e's codec fields and returns the stored pieces: one per
// compression block, or the content itself when stored uncompressed.
func (pw *Writer) encode(e *Entry, content []byte) ([][]byte, error) {
	if pw.comp == nil || len(content) == 0 ||
		write.ShouldSkip(e.Name, int64(len(content)), pw.cfg.skipCompression) {
		return [][]byte{content}, nil
	}
	blockSize := int(pw.cfg.blockSize)
	pieces := make([][]byte, 0, (len(content)+blockSize-1)/blockSize)
	var total int
	for start := 0; start < len(content); start += blockSize {
		end := min(start+blockSize, len(content))
		block, err := pw.comp.Compress(content[start:end])
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, block)
		total += len(block)
	}
	if total >= len(content) {
		pw.log().Debug("storing uncompressed", "name", e.Name, "size", len(content), "compressed", total)
		return [][]byte{content}, nil
	}
	e.Compression = pw.comp.Method()
	e.BlockSize = pw.cfg.blockSize
	e.Blocks = make([]Block, len(pieces))
	return pieces, nil
}

func (pw *Writer) storedLen(e *Entry, n int64) int64 {
	if e.Encrypted {
		return sizing.Align16(n)
	}
	return n
}

// writePayload writes one stored piece, padded and encrypted when needed.
func (pw *Writer) writePayload(e *Entry, p []byte) {
	if !e.Encrypted {
		pw.write(p)
		return
	}
	buf := crypt.Pad(bytes.Clone(p))
	if err := pw.cipher.Encrypt(buf, buf); err != nil && pw.err == nil {
		pw.err = err
		return
	}
	pw.write(buf)
}

func (pw *Writer) write(b []byte) {
	if pw.err != nil {
		return
	}
	n, err := pw.w.Write(b)
	pw.offset += int64(n)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	pw.err = err
}

// Close writes the index and footer. It does not close the underlying
// io.Writer. Calling Close more than once is a no-op.
func (pw *Writer) Close() error {
	if pw.closed {
		return nil
	}
	pw.closed = true
	if pw.comp != nil {
		defer pw.comp.Close()
	}
	if pw.err != nil {
		return pw.err
	}

	idx := &format.Index{MountPoint: *pw.cfg.mountPoint, Entries: pw.entries}
	data := format.AppendIndex(make([]byte, 0, format.IndexSize(idx, pw.cfg.version)), idx, pw.cfg.version)
	footer := format.Footer{
		Version:        pw.cfg.version,
		KeyGUID:        pw.cfg.keyGUID,
		IndexEncrypted: pw.cfg.encryptIndex,
		IndexOffset:    pw.offset,
	}
	if footer.IndexEncrypted {
		data = crypt.Pad(data)
	}
	copy(footer.IndexHash[:], file.HashStored(data))
	if footer.IndexEncrypted {
		if err := pw.cipher.Encrypt(data, data); err != nil {
			return err
		}
	}
	footer.IndexSize = int64(len(data))

	pw.write(data)
	pw.write(format.AppendFooter(nil, &footer))
	if pw.err != nil {
		return pw.err
	}
	pw.log().Info("archive written",
		"entries", len(pw.entries),
		"version", footer.Version,
		"index_encrypted", footer.IndexEncrypted,
		"bytes", pw.offset)
	return nil
}
