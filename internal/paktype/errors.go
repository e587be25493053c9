package paktype

import (
	"errors"
	"fmt"
	"io/fs"
)

// Error kinds. Callers should match with errors.Is; most concrete errors
// returned by the package wrap one of these.
var (
	// ErrFormat is returned when the container signature, version, index, or
	// an entry record is malformed or unsupported.
	ErrFormat = errors.New("pak: invalid format")

	// ErrIntegrity is returned when a checksum or decryption check fails.
	ErrIntegrity = errors.New("pak: integrity check failed")

	// ErrOutOfRange is returned when an entry index is outside [0, Len()).
	ErrOutOfRange = errors.New("pak: entry index out of range")

	// ErrNotFound is returned when no entry matches a name.
	ErrNotFound = fmt.Errorf("pak: entry %w", fs.ErrNotExist)

	// ErrIO is returned when the underlying byte source fails.
	ErrIO = errors.New("pak: i/o error")
)

// Refinements of the error kinds above.
var (
	// ErrInvalidKey is returned when the key does not decrypt the index.
	ErrInvalidKey = fmt.Errorf("%w: invalid key", ErrIntegrity)

	// ErrHashMismatch is returned when stored bytes do not match the entry hash.
	ErrHashMismatch = fmt.Errorf("%w: hash mismatch", ErrIntegrity)

	// ErrDecompression is returned when a compressed block cannot be decoded.
	ErrDecompression = fmt.Errorf("%w: decompression failed", ErrIntegrity)

	// ErrDeleted is returned when reading an entry that is a delete record.
	ErrDeleted = fmt.Errorf("%w (deleted record)", ErrNotFound)

	// ErrKeyRequired is returned when encrypted content is read without a key.
	ErrKeyRequired = errors.New("pak: archive is encrypted and no key was provided")

	// ErrMalformedKey is returned when key material cannot be parsed.
	ErrMalformedKey = errors.New("pak: malformed key")

	// ErrSizeOverflow is returned when sizes or offsets exceed supported limits.
	ErrSizeOverflow = fmt.Errorf("%w: size overflow", ErrFormat)
)
