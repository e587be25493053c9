package pak

import (
	"log/slog"

	"github.com/meigma/pak/cache"
)

// DefaultMaxIndexSize is the default limit on the index size (256MB).
const DefaultMaxIndexSize = 256 << 20

// Option configures an Archive.
type Option func(*Archive)

// WithMaxFileSize limits the maximum per-entry size (stored and uncompressed).
// Set limit to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(a *Archive) {
		a.maxFileSize = limit
	}
}

// WithMaxIndexSize limits the size of the index read at open time.
// Set limit to 0 to disable the limit.
func WithMaxIndexSize(limit uint64) Option {
	return func(a *Archive) {
		a.maxIndexSize = limit
	}
}

// WithMaxDecoderMemory limits the maximum memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(a *Archive) {
		a.maxDecoderMemory = limit
	}
}

// WithDecoderConcurrency sets the zstd decoder concurrency (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithDecoderConcurrency(n int) Option {
	return func(a *Archive) {
		if n < 0 {
			n = 0
		}
		a.decoderConcurrency = n
		a.decoderConcurrencySet = true
	}
}

// WithVerify controls whether entry hashes are checked on every read
// (default: true). Disabling it skips the SHA-1 pass over stored bytes.
func WithVerify(enabled bool) Option {
	return func(a *Archive) {
		a.verify = enabled
	}
}

// WithCache enables caching of decoded entry content.
//
// When enabled, content is cached after the first read and served from
// cache afterwards. Concurrent reads of the same content are deduplicated.
func WithCache(c cache.Cache) Option {
	return func(a *Archive) {
		a.cache = c
	}
}

// WithLogger sets the logger used for debug output.
// Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// CopyOption configures CopyAll and CopyFile.
type CopyOption func(*copyConfig)

// defaultCopyWorkers is used when no CopyWithWorkers option is set.
const defaultCopyWorkers = 4

type copyConfig struct {
	overwrite bool
	workers   int
	prefix    string
	progress  ProgressFunc
}

// CopyWithOverwrite allows overwriting existing files.
func CopyWithOverwrite(overwrite bool) CopyOption {
	return func(c *copyConfig) {
		c.overwrite = overwrite
	}
}

// CopyWithWorkers sets the number of entries extracted in parallel.
// Values <= 0 use the default of 4.
func CopyWithWorkers(n int) CopyOption {
	return func(c *copyConfig) {
		c.workers = n
	}
}

// CopyWithPrefix restricts CopyAll to entries under a directory prefix.
func CopyWithPrefix(prefix string) CopyOption {
	return func(c *copyConfig) {
		c.prefix = prefix
	}
}

// CopyWithProgress sets a callback invoked after each entry is handled.
// The callback may be called concurrently.
func CopyWithProgress(fn ProgressFunc) CopyOption {
	return func(c *copyConfig) {
		c.progress = fn
	}
}
