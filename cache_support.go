package pak

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/pak/internal/file"
)

// contentKey returns the cache key for an entry's decoded content.
//
// The key covers the stored-bytes hash, codec, and decoded size, so two
// entries share a key exactly when they decode to the same content, even
// across archives.
func contentKey(e *Entry) []byte {
	d := digest.Canonical.Digester()
	h := d.Hash()
	_, _ = h.Write(e.Hash)
	var meta [12]byte
	binary.LittleEndian.PutUint32(meta[:4], uint32(e.Compression))
	binary.LittleEndian.PutUint64(meta[4:], uint64(e.UncompressedSize)) //nolint:gosec // validated non-negative
	_, _ = h.Write(meta[:])
	key, _ := hex.DecodeString(d.Digest().Encoded()) //nolint:errcheck // digest encodings are valid hex
	return key
}

// cacheGet returns cached content for e. Entries that fail validation are
// evicted and reported as misses.
func (a *Archive) cacheGet(key []byte, e *Entry) ([]byte, bool) {
	f, ok := a.cache.Get(key)
	if !ok {
		return nil, false
	}
	content, err := io.ReadAll(f)
	f.Close()
	if err == nil && int64(len(content)) != e.UncompressedSize {
		err = ErrSizeOverflow
	}
	if err == nil && a.verify && e.Compression == CompressionNone && !bytes.Equal(file.HashStored(content), e.Hash) {
		err = ErrHashMismatch
	}
	if err != nil {
		a.log().Debug("discarding cached entry", "name", e.Name, "error", err)
		_ = a.cache.Delete(key) //nolint:errcheck // best-effort cleanup of a bad cache entry
		return nil, false
	}
	return content, true
}
