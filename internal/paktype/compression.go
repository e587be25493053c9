package paktype

import "fmt"

// Compression identifies the codec used for an entry's blocks.
// The values are the on-disk compression flags.
type Compression uint32

const (
	CompressionNone Compression = 0x00
	CompressionZlib Compression = 0x01
	CompressionGzip Compression = 0x02
	CompressionZstd Compression = 0x04
	CompressionLZ4  Compression = 0x08
)

// String returns the human-readable name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(0x%x)", uint32(c))
	}
}

// Known reports whether c is a supported codec.
func (c Compression) Known() bool {
	switch c {
	case CompressionNone, CompressionZlib, CompressionGzip, CompressionZstd, CompressionLZ4:
		return true
	default:
		return false
	}
}

// ParseCompression maps a codec name to its Compression value.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "zlib":
		return CompressionZlib, nil
	case "gzip":
		return CompressionGzip, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q", name)
	}
}
