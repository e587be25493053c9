package format

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/meigma/pak/internal/paktype"
)

// Entry record flags.
const (
	FlagEncrypted uint8 = 1 << 0
	FlagDeleted   uint8 = 1 << 1
)

// maxBlocks bounds the block table of a single record.
const maxBlocks = 1 << 24

// RecordSize returns the encoded size of e's record for version v. The
// record header in front of each payload has the same size.
func RecordSize(e *paktype.Entry, v int32) int {
	size := 8 + 8 + 8 + 4 + paktype.HashSize
	if v == VersionInitial {
		size += 8
	}
	if v >= VersionCompressionEncryption {
		if e.Compression != paktype.CompressionNone {
			size += 4 + 16*len(e.Blocks)
		}
		size += 1 + 4
	}
	return size
}

// AppendRecord appends e's record to b. Block ranges in e are absolute;
// they are stored relative to e.Offset from VersionRelativeChunkOffsets
// on. When header is true the offset field is written as zero, which is
// the form stored in front of each payload.
func AppendRecord(b []byte, e *paktype.Entry, v int32, header bool) []byte {
	offset := e.Offset
	if header {
		offset = 0
	}
	b = binary.LittleEndian.AppendUint64(b, uint64(offset))             //nolint:gosec // validated non-negative
	b = binary.LittleEndian.AppendUint64(b, uint64(e.Size))             //nolint:gosec // validated non-negative
	b = binary.LittleEndian.AppendUint64(b, uint64(e.UncompressedSize)) //nolint:gosec // validated non-negative
	b = binary.LittleEndian.AppendUint32(b, uint32(e.Compression))
	if v == VersionInitial {
		b = binary.LittleEndian.AppendUint64(b, uint64(e.Timestamp)) //nolint:gosec // opaque
	}
	var hash [paktype.HashSize]byte
	copy(hash[:], e.Hash)
	b = append(b, hash[:]...)
	if v < VersionCompressionEncryption {
		return b
	}
	if e.Compression != paktype.CompressionNone {
		b = binary.LittleEndian.AppendUint32(b, uint32(len(e.Blocks))) //nolint:gosec // bounded by maxBlocks
		var base int64
		if v >= VersionRelativeChunkOffsets {
			base = e.Offset
		}
		for _, blk := range e.Blocks {
			b = binary.LittleEndian.AppendUint64(b, uint64(blk.Start-base)) //nolint:gosec // non-negative
			b = binary.LittleEndian.AppendUint64(b, uint64(blk.End-base))   //nolint:gosec // non-negative
		}
	}
	var flags uint8
	if e.Encrypted {
		flags |= FlagEncrypted
	}
	if e.Deleted {
		flags |= FlagDeleted
	}
	b = append(b, flags)
	return binary.LittleEndian.AppendUint32(b, e.BlockSize)
}

// decodeRecord reads one entry record for version v. Block offsets are
// converted to absolute container offsets.
func decodeRecord(d *decoder, v int32) paktype.Entry {
	var e paktype.Entry
	e.Offset = d.int64("entry offset")
	e.Size = d.int64("entry size")
	e.UncompressedSize = d.int64("entry uncompressed size")
	e.Compression = paktype.Compression(d.uint32("entry compression"))
	if v == VersionInitial {
		e.Timestamp = d.int64("entry timestamp")
	}
	if h := d.take(paktype.HashSize, "entry hash"); h != nil {
		e.Hash = append([]byte(nil), h...)
	}
	if v >= VersionCompressionEncryption {
		if e.Compression != paktype.CompressionNone {
			n := d.int32("block count")
			if d.err == nil && (n < 0 || n > maxBlocks || int(n) > d.Remaining()/16) {
				d.fail("invalid block count %d", n)
			}
			if d.err == nil && n > 0 {
				var base int64
				if v >= VersionRelativeChunkOffsets {
					base = e.Offset
				}
				e.Blocks = make([]paktype.Block, n)
				for i := range e.Blocks {
					e.Blocks[i].Start = d.int64("block start") + base
					e.Blocks[i].End = d.int64("block end") + base
				}
			}
		}
		flags := d.uint8("entry flags")
		e.Encrypted = flags&FlagEncrypted != 0
		e.Deleted = flags&FlagDeleted != 0
		e.BlockSize = d.uint32("entry block size")
	}
	if d.err == nil {
		if err := validateRecord(&e, v); err != nil {
			d.fail("%v", err)
		}
	}
	return e
}

func validateRecord(e *paktype.Entry, v int32) error {
	if e.Offset < 0 || e.Size < 0 || e.UncompressedSize < 0 {
		return errors.New("negative size or offset")
	}
	if !e.Compression.Known() {
		return fmt.Errorf("unknown compression 0x%x", uint32(e.Compression))
	}
	if e.Deleted {
		return nil
	}
	if e.Compression == paktype.CompressionNone {
		if e.Size != e.UncompressedSize {
			return fmt.Errorf("uncompressed entry size %d != %d", e.Size, e.UncompressedSize)
		}
		return nil
	}
	if v < VersionCompressionEncryption {
		return fmt.Errorf("compression requires version %d", VersionCompressionEncryption)
	}
	if len(e.Blocks) == 0 && e.UncompressedSize > 0 {
		return errors.New("compressed entry has no blocks")
	}
	if e.BlockSize == 0 && e.UncompressedSize > 0 {
		return errors.New("compressed entry has zero block size")
	}
	var total int64
	for _, blk := range e.Blocks {
		if blk.Start < 0 || blk.End < blk.Start {
			return fmt.Errorf("invalid block [%d, %d)", blk.Start, blk.End)
		}
		total += blk.Len()
	}
	if total != e.Size {
		return fmt.Errorf("block sizes sum to %d, entry size is %d", total, e.Size)
	}
	return nil
}

// DecodeRecordHeader decodes the record header stored in front of the
// payload of the entry whose record starts at offset. Block offsets in the
// result are absolute, matching records decoded from the index.
func DecodeRecordHeader(b []byte, offset int64, v int32) (paktype.Entry, error) {
	d := newDecoder(b)
	e := decodeRecord(d, v)
	if d.err != nil {
		return paktype.Entry{}, d.err
	}
	if e.Offset != 0 {
		return paktype.Entry{}, fmt.Errorf("%w: record header offset is %d, want 0", paktype.ErrFormat, e.Offset)
	}
	if v >= VersionRelativeChunkOffsets {
		for i := range e.Blocks {
			e.Blocks[i].Start += offset
			e.Blocks[i].End += offset
		}
	}
	e.Offset = offset
	return e, nil
}

// SameRecord reports whether the record header h describes the same
// stored payload as the index record e.
func SameRecord(e, h *paktype.Entry) bool {
	return e.Size == h.Size &&
		e.UncompressedSize == h.UncompressedSize &&
		e.Compression == h.Compression &&
		bytes.Equal(e.Hash, h.Hash) &&
		slices.Equal(e.Blocks, h.Blocks)
}
