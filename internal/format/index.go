package format

import (
	"encoding/binary"

	"github.com/meigma/pak/internal/paktype"
)

// minRecordSize is the smallest possible name + record pair, used to bound
// the entry count before allocating.
const minRecordSize = 4 + 8 + 8 + 8 + 4 + paktype.HashSize

// Index is the decoded directory.
type Index struct {
	MountPoint string
	Entries    []paktype.Entry
}

// DecodeIndex decodes a plaintext index for version v. Trailing bytes
// (cipher padding) are ignored.
func DecodeIndex(data []byte, v int32) (*Index, error) {
	d := newDecoder(data)
	idx := &Index{MountPoint: d.fstring("mount point")}
	n := d.int32("entry count")
	if d.err == nil && (n < 0 || int(n) > d.Remaining()/minRecordSize) {
		d.fail("invalid entry count %d", n)
	}
	if d.err != nil {
		return nil, d.err
	}
	idx.Entries = make([]paktype.Entry, 0, n)
	for range n {
		name := d.fstring("entry name")
		e := decodeRecord(d, v)
		if d.err != nil {
			return nil, d.err
		}
		e.Name = name
		idx.Entries = append(idx.Entries, e)
	}
	return idx, nil
}

// AppendIndex appends the encoded index to b.
func AppendIndex(b []byte, idx *Index, v int32) []byte {
	b = appendFString(b, idx.MountPoint)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(idx.Entries))) //nolint:gosec // bounded by writer
	for i := range idx.Entries {
		e := &idx.Entries[i]
		b = appendFString(b, e.Name)
		b = AppendRecord(b, e, v, false)
	}
	return b
}

// IndexSize returns the encoded size of idx.
func IndexSize(idx *Index, v int32) int {
	size := fstringSize(idx.MountPoint) + 4
	for i := range idx.Entries {
		size += fstringSize(idx.Entries[i].Name) + RecordSize(&idx.Entries[i], v)
	}
	return size
}
