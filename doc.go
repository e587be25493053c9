// Package pak reads and writes .pak containers: a sequence of entry
// payloads followed by an index and a fixed-size footer.
//
// An archive is opened once with its key material, after which its entry
// list is immutable. Entries can be listed, looked up by name, and read by
// index. Every read checks the stored bytes against the entry's SHA-1,
// decrypting (AES-256) and decompressing (zlib, gzip, zstd, lz4) as the
// entry requires.
//
// # Quick Start
//
// Open an archive and extract one file:
//
//	key, err := pak.ParseKey(os.Getenv("PAK_KEY"))
//	if err != nil {
//	    return err
//	}
//	archive, err := pak.Open("game.pak", key)
//	if err != nil {
//	    return err
//	}
//	defer archive.Close()
//
//	for i, e := range archive.All() {
//	    fmt.Println(i, e.Name, e.UncompressedSize)
//	}
//	content, err := archive.ReadEntry(0)
//
// Build an archive from a directory:
//
//	err := pak.Create(ctx, "./content", out,
//	    pak.CreateWithCompression(pak.CompressionZstd),
//	    pak.CreateWithKey(key),
//	    pak.CreateWithIndexEncryption(true),
//	)
//
// # Errors
//
// Errors match one of [ErrFormat], [ErrIntegrity], [ErrOutOfRange],
// [ErrNotFound], or [ErrIO] with errors.Is, plus the refinements
// documented on each sentinel. A failed read never invalidates the
// archive handle.
//
// # Remote archives
//
// [New] accepts any [ByteSource]. The http subpackage provides one backed
// by HTTP range requests, and the cache subpackages can hold decoded
// content between reads (see [WithCache]).
package pak
