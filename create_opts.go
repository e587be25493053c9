package pak

import (
	"log/slog"

	"github.com/meigma/pak/internal/write"
)

// SkipCompressionFunc returns true when a file should be stored uncompressed.
// It is called once per file and should be inexpensive.
type SkipCompressionFunc = write.SkipCompressionFunc

// DefaultSkipCompression returns a SkipCompressionFunc that skips small files
// and known already-compressed formats.
var DefaultSkipCompression = write.DefaultSkipCompression

const (
	// DefaultBlockSize is the default maximum uncompressed size of one
	// compression block (64KB).
	DefaultBlockSize = 64 << 10

	// DefaultMountPoint is the mount point written when none is set.
	DefaultMountPoint = "../../../"

	// DefaultMaxFiles is the default limit used when no MaxFiles option is set.
	DefaultMaxFiles = 200_000
)

// createConfig holds configuration for archive creation.
type createConfig struct {
	version         int32
	mountPoint      *string
	compression     Compression
	blockSize       uint32
	key             Key
	encryptIndex    bool
	encryptPayloads bool
	keyGUID         [16]byte
	skipCompression []SkipCompressionFunc
	maxFiles        int
	maxFileSize     int64
	logger          *slog.Logger
}

// CreateOption configures NewWriter and Create.
type CreateOption func(*createConfig)

// CreateWithVersion sets the container version (default: VersionLatest).
// Compression and payload encryption need version 3 or later; index
// encryption needs version 4 or later.
func CreateWithVersion(v int32) CreateOption {
	return func(cfg *createConfig) {
		cfg.version = v
	}
}

// CreateWithMountPoint sets the mount point stored in the index
// (default: DefaultMountPoint).
func CreateWithMountPoint(mountPoint string) CreateOption {
	return func(cfg *createConfig) {
		cfg.mountPoint = &mountPoint
	}
}

// CreateWithCompression sets the codec used for entries.
// Use CompressionNone to store entries uncompressed.
func CreateWithCompression(c Compression) CreateOption {
	return func(cfg *createConfig) {
		cfg.compression = c
	}
}

// CreateWithBlockSize sets the maximum uncompressed size of one
// compression block (default: DefaultBlockSize).
func CreateWithBlockSize(n uint32) CreateOption {
	return func(cfg *createConfig) {
		cfg.blockSize = n
	}
}

// CreateWithKey sets the key used by CreateWithIndexEncryption and
// CreateWithPayloadEncryption.
func CreateWithKey(key Key) CreateOption {
	return func(cfg *createConfig) {
		cfg.key = key
	}
}

// CreateWithIndexEncryption encrypts the index with the configured key.
func CreateWithIndexEncryption(enabled bool) CreateOption {
	return func(cfg *createConfig) {
		cfg.encryptIndex = enabled
	}
}

// CreateWithPayloadEncryption encrypts every entry's stored bytes with the
// configured key.
func CreateWithPayloadEncryption(enabled bool) CreateOption {
	return func(cfg *createConfig) {
		cfg.encryptPayloads = enabled
	}
}

// CreateWithKeyGUID records the GUID naming the archive key. It is only
// stored by version 7 containers.
func CreateWithKeyGUID(guid [16]byte) CreateOption {
	return func(cfg *createConfig) {
		cfg.keyGUID = guid
	}
}

// CreateWithSkipCompression adds predicates that decide to store a file uncompressed.
// If any predicate returns true, compression is skipped for that file.
// These checks are on the hot path, so keep them cheap.
func CreateWithSkipCompression(fns ...SkipCompressionFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.skipCompression = append(cfg.skipCompression, fns...)
	}
}

// CreateWithMaxFiles limits the number of entries in the archive.
// Zero uses DefaultMaxFiles. Negative means no limit.
func CreateWithMaxFiles(n int) CreateOption {
	return func(cfg *createConfig) {
		cfg.maxFiles = n
	}
}

// CreateWithMaxFileSize limits the size of files read by Create.
// Zero means no limit.
func CreateWithMaxFileSize(n int64) CreateOption {
	return func(cfg *createConfig) {
		cfg.maxFileSize = n
	}
}

// CreateWithLogger sets the logger for archive creation.
// If not set, logging is disabled.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(cfg *createConfig) {
		cfg.logger = logger
	}
}
