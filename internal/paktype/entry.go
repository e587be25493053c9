package paktype

// HashSize is the length of an entry hash (SHA-1).
const HashSize = 20

// Block is a compressed block's byte range within the container.
// Start and End are absolute file offsets; End excludes cipher padding.
type Block struct {
	Start int64
	End   int64
}

// Len returns the number of meaningful bytes in the block.
func (b Block) Len() int64 {
	return b.End - b.Start
}

// Entry represents a file in the archive.
type Entry struct {
	// Name is the path of the file relative to the mount point, as stored.
	Name string

	// Offset is the container offset of the entry's record header.
	Offset int64

	// Size is the stored size in bytes. For compressed entries this is the
	// compressed size. Cipher padding is not included.
	Size int64

	// UncompressedSize is the size of the decoded content.
	UncompressedSize int64

	// Compression is the codec used for the entry's blocks.
	Compression Compression

	// Hash is the SHA-1 of the stored bytes after decryption.
	Hash []byte

	// Blocks lists compressed block ranges. Empty for uncompressed entries.
	Blocks []Block

	// BlockSize is the maximum uncompressed size of one block.
	BlockSize uint32

	// Encrypted reports whether the stored bytes are AES encrypted.
	Encrypted bool

	// Deleted marks a delete record; it carries no payload.
	Deleted bool

	// Timestamp is only present in version 1 archives.
	Timestamp int64
}

// Clone returns a deep copy of e so callers cannot mutate archive state.
func (e Entry) Clone() Entry {
	if e.Hash != nil {
		e.Hash = append([]byte(nil), e.Hash...)
	}
	if e.Blocks != nil {
		e.Blocks = append([]Block(nil), e.Blocks...)
	}
	return e
}
