package format

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pak/internal/paktype"
)

func TestFooterRoundTrip(t *testing.T) {
	t.Parallel()

	for v := VersionInitial; v <= VersionLatest; v++ {
		t.Run(string(rune('0'+v)), func(t *testing.T) {
			t.Parallel()

			want := &Footer{
				Version:     v,
				IndexOffset: 100,
				IndexSize:   32,
			}
			if v >= VersionIndexEncryption {
				want.IndexEncrypted = true
			}
			if v >= VersionEncryptionKeyGUID {
				want.KeyGUID[0] = 0xAB
			}
			want.IndexHash[3] = 7

			container := make([]byte, 132)
			container = AppendFooter(container, want)
			require.Len(t, container, 132+FooterSize(v))

			got, err := ReadFooter(bytes.NewReader(container), int64(len(container)))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestReadFooterErrors(t *testing.T) {
	t.Parallel()

	valid := func(v int32) []byte {
		return AppendFooter(make([]byte, 64), &Footer{Version: v, IndexOffset: 0, IndexSize: 64})
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"too small", []byte("tiny"), paktype.ErrFormat},
		{"no magic", bytes.Repeat([]byte{0x11}, 200), ErrBadMagic},
		{
			name: "unsupported version",
			data: func() []byte {
				b := valid(VersionLatest)
				binary.LittleEndian.PutUint32(b[len(b)-baseFooterSize+4:], 99)
				return b
			}(),
			wantErr: ErrUnsupportedVersion,
		},
		{
			name: "index past end",
			data: AppendFooter(make([]byte, 10), &Footer{Version: VersionLatest, IndexOffset: 5, IndexSize: 10}),
			wantErr: paktype.ErrFormat,
		},
		{
			name: "unaligned encrypted index",
			data: AppendFooter(make([]byte, 64), &Footer{
				Version: VersionLatest, IndexEncrypted: true, IndexOffset: 0, IndexSize: 15,
			}),
			wantErr: paktype.ErrFormat,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadFooter(bytes.NewReader(tt.data), int64(len(tt.data)))
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, paktype.ErrFormat)
		})
	}
}

func TestFString(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "Engine/Content/Map.umap", "Ünïcødé/日本語.txt"} {
		b := appendFString(nil, s)
		assert.Len(t, b, fstringSize(s))
		d := newDecoder(b)
		assert.Equal(t, s, d.fstring("name"))
		require.NoError(t, d.Err())
		assert.Zero(t, d.Remaining())
	}
}

func TestFStringNegativeLengthIsUTF16(t *testing.T) {
	t.Parallel()

	b := appendFString(nil, "é")
	assert.Equal(t, int32(-2), int32(binary.LittleEndian.Uint32(b)))
}

func TestFStringErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated length", []byte{1, 0}},
		{"truncated body", []byte{10, 0, 0, 0, 'a'}},
		{"missing terminator", []byte{2, 0, 0, 0, 'a', 'b'}},
		{"truncated utf16", []byte{0xFE, 0xFF, 0xFF, 0xFF, 'a', 0}},
		{"min int32", []byte{0, 0, 0, 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := newDecoder(tt.data)
			_ = d.fstring("name")
			require.ErrorIs(t, d.Err(), paktype.ErrFormat)
		})
	}
}

func sampleEntries() []paktype.Entry {
	hash := bytes.Repeat([]byte{0x5A}, paktype.HashSize)
	return []paktype.Entry{
		{
			Name:             "Game/Config/DefaultGame.ini",
			Offset:           0,
			Size:             12,
			UncompressedSize: 12,
			Hash:             hash,
		},
		{
			Name:             "Game/Content/Hero.uasset",
			Offset:           200,
			Size:             30,
			UncompressedSize: 100,
			Compression:      paktype.CompressionZlib,
			Hash:             hash,
			Blocks:           []paktype.Block{{Start: 280, End: 300}, {Start: 304, End: 314}},
			BlockSize:        64,
			Encrypted:        true,
		},
	}
}

func TestIndexRoundTrip(t *testing.T) {
	t.Parallel()

	for v := VersionCompressionEncryption; v <= VersionLatest; v++ {
		idx := &Index{MountPoint: "../../../", Entries: sampleEntries()}
		data := AppendIndex(nil, idx, v)
		require.Len(t, data, IndexSize(idx, v))

		// Trailing padding is ignored.
		data = append(data, make([]byte, 9)...)

		got, err := DecodeIndex(data, v)
		require.NoError(t, err)
		assert.Equal(t, idx, got, "version %d", v)
	}
}

func TestIndexRoundTripVersion1KeepsTimestamp(t *testing.T) {
	t.Parallel()

	idx := &Index{MountPoint: "/", Entries: []paktype.Entry{{
		Name: "a.txt", Size: 3, UncompressedSize: 3,
		Hash: make([]byte, paktype.HashSize), Timestamp: 123456,
	}}}
	got, err := DecodeIndex(AppendIndex(nil, idx, VersionInitial), VersionInitial)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), got.Entries[0].Timestamp)
}

func TestRelativeBlockOffsets(t *testing.T) {
	t.Parallel()

	e := sampleEntries()[1]
	rel := AppendRecord(nil, &e, VersionRelativeChunkOffsets, false)
	abs := AppendRecord(nil, &e, VersionIndexEncryption, false)

	blockTable := 8 + 8 + 8 + 4 + paktype.HashSize + 4
	assert.Equal(t, uint64(80), binary.LittleEndian.Uint64(rel[blockTable:]))
	assert.Equal(t, uint64(280), binary.LittleEndian.Uint64(abs[blockTable:]))
}

func TestRecordHeaderZeroesOffset(t *testing.T) {
	t.Parallel()

	e := sampleEntries()[1]
	header := AppendRecord(nil, &e, VersionLatest, true)
	assert.Len(t, header, RecordSize(&e, VersionLatest))
	assert.Zero(t, binary.LittleEndian.Uint64(header))
}

func TestDecodeIndexErrors(t *testing.T) {
	t.Parallel()

	good := AppendIndex(nil, &Index{MountPoint: "/", Entries: sampleEntries()}, VersionLatest)

	hugeCount := appendFString(nil, "/")
	hugeCount = binary.LittleEndian.AppendUint32(hugeCount, 1_000_000)

	badCompression := sampleEntries()[:1]
	badCompression[0].Compression = 0x40
	unknown := AppendIndex(nil, &Index{Entries: badCompression}, VersionLatest)

	sizeMismatch := sampleEntries()[:1]
	sizeMismatch[0].UncompressedSize = 99
	mismatch := AppendIndex(nil, &Index{Entries: sizeMismatch}, VersionLatest)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", good[:len(good)-3]},
		{"huge count", hugeCount},
		{"unknown compression", unknown},
		{"uncompressed size mismatch", mismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeIndex(tt.data, VersionLatest)
			require.ErrorIs(t, err, paktype.ErrFormat)
		})
	}
}

func TestDeletedRecordSkipsSizeChecks(t *testing.T) {
	t.Parallel()

	entries := []paktype.Entry{{
		Name: "Removed.uasset", Size: 0, UncompressedSize: 42,
		Hash: make([]byte, paktype.HashSize), Deleted: true,
	}}
	got, err := DecodeIndex(AppendIndex(nil, &Index{Entries: entries}, VersionDeleteRecords), VersionDeleteRecords)
	require.NoError(t, err)
	assert.True(t, got.Entries[0].Deleted)
}
