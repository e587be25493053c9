// Package cache defines the storage interface used to keep decoded entry
// content between reads.
//
// Keys are opaque byte strings derived from an entry's stored-bytes hash,
// codec, and decoded size. Identical content in different archives maps
// to the same key, so a cache can be shared across archives.
package cache

import "io/fs"

// Cache stores decoded entry content by key.
//
// Implementations should handle their own size limits and eviction policies.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns an fs.File for reading cached content.
	// Returns nil, false if content is not cached.
	// Each call returns a new file handle.
	Get(key []byte) (fs.File, bool)

	// Put stores content by reading from the provided fs.File.
	// The cache reads the file to completion; caller still owns/closes the file.
	Put(key []byte, f fs.File) error

	// Delete removes cached content for the given key.
	// Implementations should treat missing entries as a no-op.
	Delete(key []byte) error

	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes cached entries until the cache is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}
