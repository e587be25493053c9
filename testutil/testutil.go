// Package testutil provides in-memory byte sources and caches for tests.
package testutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing/fstest"
)

// MockByteSource is an in-memory byte source that counts reads and can be
// made to fail.
type MockByteSource struct {
	data     []byte
	sourceID string
	reads    atomic.Int64
	mu       sync.RWMutex
	readErr  error
}

// NewMockByteSource returns a byte source backed by data.
func NewMockByteSource(data []byte) *MockByteSource {
	sum := sha256.Sum256(data)
	return &MockByteSource{
		data:     data,
		sourceID: "mock:" + hex.EncodeToString(sum[:]),
	}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.reads.Add(1)
	m.mu.RLock()
	err := m.readErr
	m.mu.RUnlock()
	if err != nil {
		return 0, err
	}
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// SourceID returns a stable identifier for the source data.
func (m *MockByteSource) SourceID() string {
	return m.sourceID
}

// Bytes returns the backing slice for tests that need to mutate data.
func (m *MockByteSource) Bytes() []byte {
	return m.data
}

// Reads returns the number of ReadAt calls so far.
func (m *MockByteSource) Reads() int64 {
	return m.reads.Load()
}

// FailReads makes every later ReadAt return err. Nil restores normal reads.
func (m *MockByteSource) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// MockCache is a concurrency-safe in-memory cache that counts lookups.
type MockCache struct {
	mu     sync.RWMutex
	data   map[string][]byte
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMockCache constructs an empty in-memory cache.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]byte)}
}

// Get returns an fs.File for reading cached content.
func (c *MockCache) Get(key []byte) (fs.File, bool) {
	c.mu.RLock()
	data, ok := c.data[string(key)]
	c.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	f, err := fstest.MapFS{"content": {Data: data}}.Open("content")
	if err != nil {
		return nil, false
	}
	return f, true
}

// Put stores content by reading from the provided fs.File.
func (c *MockCache) Put(key []byte, f fs.File) error {
	content, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[string(key)] = content
	return nil
}

// Delete removes cached content for key.
func (c *MockCache) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, string(key))
	return nil
}

// MaxBytes reports no limit.
func (c *MockCache) MaxBytes() int64 {
	return 0
}

// SizeBytes returns the current cache size in bytes.
func (c *MockCache) SizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, data := range c.data {
		total += int64(len(data))
	}
	return total
}

// Prune drops every entry when the cache exceeds targetBytes.
func (c *MockCache) Prune(targetBytes int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, data := range c.data {
		total += int64(len(data))
	}
	if total <= max(targetBytes, 0) {
		return 0, nil
	}
	clear(c.data)
	return total, nil
}

// Len returns the number of cached entries.
func (c *MockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Corrupt appends a byte to every cached value.
func (c *MockCache) Corrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.data {
		c.data[k] = append(bytes.Clone(v), 0xFF)
	}
}

// Hits returns the number of Get calls that found content.
func (c *MockCache) Hits() int64 {
	return c.hits.Load()
}

// Misses returns the number of Get calls that found nothing.
func (c *MockCache) Misses() int64 {
	return c.misses.Load()
}
