package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/pak/internal/paktype"
)

// Magic identifies a container footer.
const Magic uint32 = 0x5A6F12E1

// Container versions. Each adds to the layout of the previous one.
const (
	VersionInitial               int32 = 1 // entries carry a timestamp
	VersionNoTimestamps          int32 = 2
	VersionCompressionEncryption int32 = 3 // block tables, flags, block size
	VersionIndexEncryption       int32 = 4 // footer carries the index-encrypted flag
	VersionRelativeChunkOffsets  int32 = 5 // block offsets relative to the entry
	VersionDeleteRecords         int32 = 6
	VersionEncryptionKeyGUID     int32 = 7 // footer carries the key GUID

	VersionLatest = VersionEncryptionKeyGUID
)

// GUIDSize is the length of the encryption key GUID.
const GUIDSize = 16

const baseFooterSize = 4 + 4 + 8 + 8 + paktype.HashSize

// MaxFooterSize is the largest footer of any supported version.
const MaxFooterSize = GUIDSize + 1 + baseFooterSize

// ErrUnsupportedVersion is returned for a valid magic with an unknown version.
var ErrUnsupportedVersion = fmt.Errorf("%w: unsupported version", paktype.ErrFormat)

// ErrBadMagic is returned when no footer signature is found.
var ErrBadMagic = fmt.Errorf("%w: footer signature not found", paktype.ErrFormat)

// Footer is the fixed-size trailer locating and authenticating the index.
type Footer struct {
	Version        int32
	KeyGUID        [GUIDSize]byte
	IndexEncrypted bool
	IndexOffset    int64
	IndexSize      int64
	IndexHash      [paktype.HashSize]byte
}

// SupportedVersion reports whether v can be read.
func SupportedVersion(v int32) bool {
	return v >= VersionInitial && v <= VersionLatest
}

// FooterSize returns the encoded footer size for version v.
func FooterSize(v int32) int {
	size := baseFooterSize
	if v >= VersionIndexEncryption {
		size++
	}
	if v >= VersionEncryptionKeyGUID {
		size += GUIDSize
	}
	return size
}

// AppendFooter appends the encoded footer to b.
func AppendFooter(b []byte, f *Footer) []byte {
	if f.Version >= VersionEncryptionKeyGUID {
		b = append(b, f.KeyGUID[:]...)
	}
	if f.Version >= VersionIndexEncryption {
		var flag byte
		if f.IndexEncrypted {
			flag = 1
		}
		b = append(b, flag)
	}
	b = binary.LittleEndian.AppendUint32(b, Magic)
	b = binary.LittleEndian.AppendUint32(b, uint32(f.Version))     //nolint:gosec // versions are small
	b = binary.LittleEndian.AppendUint64(b, uint64(f.IndexOffset)) //nolint:gosec // validated non-negative
	b = binary.LittleEndian.AppendUint64(b, uint64(f.IndexSize))   //nolint:gosec // validated non-negative
	return append(b, f.IndexHash[:]...)
}

// footerCandidates lists footer sizes from largest to smallest.
var footerCandidates = []int{
	FooterSize(VersionEncryptionKeyGUID),
	FooterSize(VersionIndexEncryption),
	FooterSize(VersionInitial),
}

// ReadFooter locates and decodes the footer at the end of a container of
// the given size. It validates that the index lies inside the container
// and before the footer.
func ReadFooter(r io.ReaderAt, size int64) (*Footer, error) {
	if size < int64(baseFooterSize) {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", paktype.ErrFormat, size)
	}
	tailLen := int64(MaxFooterSize)
	if size < tailLen {
		tailLen = size
	}
	tail := make([]byte, tailLen)
	if _, err := r.ReadAt(tail, size-tailLen); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: read footer: %w", paktype.ErrIO, err)
	}

	var versionErr error
	for _, fsize := range footerCandidates {
		if int64(fsize) > tailLen {
			continue
		}
		buf := tail[len(tail)-fsize:]
		prefix := fsize - baseFooterSize
		if binary.LittleEndian.Uint32(buf[prefix:]) != Magic {
			continue
		}
		version := int32(binary.LittleEndian.Uint32(buf[prefix+4:])) //nolint:gosec // two's complement
		if !SupportedVersion(version) {
			versionErr = fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
			continue
		}
		if FooterSize(version) != fsize {
			continue
		}
		f := decodeFooter(buf, version)
		if err := f.validate(size); err != nil {
			return nil, err
		}
		return f, nil
	}
	if versionErr != nil {
		return nil, versionErr
	}
	return nil, ErrBadMagic
}

func decodeFooter(buf []byte, version int32) *Footer {
	f := &Footer{Version: version}
	if version >= VersionEncryptionKeyGUID {
		copy(f.KeyGUID[:], buf[:GUIDSize])
		buf = buf[GUIDSize:]
	}
	if version >= VersionIndexEncryption {
		f.IndexEncrypted = buf[0] != 0
		buf = buf[1:]
	}
	buf = buf[8:] // magic, version
	f.IndexOffset = int64(binary.LittleEndian.Uint64(buf))    //nolint:gosec // validated below
	f.IndexSize = int64(binary.LittleEndian.Uint64(buf[8:])) //nolint:gosec // validated below
	copy(f.IndexHash[:], buf[16:])
	return f
}

func (f *Footer) validate(fileSize int64) error {
	limit := fileSize - int64(FooterSize(f.Version))
	if f.IndexOffset < 0 || f.IndexSize < 0 {
		return fmt.Errorf("%w: negative index bounds", paktype.ErrFormat)
	}
	if f.IndexOffset > limit || f.IndexSize > limit-f.IndexOffset {
		return fmt.Errorf("%w: index [%d, +%d) exceeds container", paktype.ErrFormat, f.IndexOffset, f.IndexSize)
	}
	if f.IndexEncrypted && f.IndexSize%16 != 0 {
		return fmt.Errorf("%w: encrypted index size %d is not block aligned", paktype.ErrFormat, f.IndexSize)
	}
	return nil
}
