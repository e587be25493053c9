package pak

import (
	"errors"

	"github.com/meigma/pak/internal/paktype"
)

// Error kinds re-exported from internal/paktype. Match them with errors.Is.
var (
	// ErrFormat is returned when the container signature, version, index,
	// or an entry record is malformed or unsupported.
	ErrFormat = paktype.ErrFormat

	// ErrIntegrity is returned when a checksum or decryption check fails.
	ErrIntegrity = paktype.ErrIntegrity

	// ErrOutOfRange is returned when an entry index is outside [0, Len()).
	ErrOutOfRange = paktype.ErrOutOfRange

	// ErrNotFound is returned when no entry has the requested name.
	// It matches fs.ErrNotExist.
	ErrNotFound = paktype.ErrNotFound

	// ErrIO is returned when the underlying byte source fails.
	ErrIO = paktype.ErrIO

	// ErrInvalidKey is returned when the key does not decrypt the index.
	// It matches ErrIntegrity.
	ErrInvalidKey = paktype.ErrInvalidKey

	// ErrHashMismatch is returned when stored bytes do not match their hash.
	// It matches ErrIntegrity.
	ErrHashMismatch = paktype.ErrHashMismatch

	// ErrDecompression is returned when a block cannot be decoded.
	// It matches ErrIntegrity.
	ErrDecompression = paktype.ErrDecompression

	// ErrDeleted is returned when reading a delete record. It matches ErrNotFound.
	ErrDeleted = paktype.ErrDeleted

	// ErrKeyRequired is returned when encrypted content is read without a key.
	ErrKeyRequired = paktype.ErrKeyRequired

	// ErrMalformedKey is returned when key material cannot be parsed.
	ErrMalformedKey = paktype.ErrMalformedKey

	// ErrSizeOverflow is returned when sizes exceed configured or supported
	// limits. It matches ErrFormat.
	ErrSizeOverflow = paktype.ErrSizeOverflow
)

// Sentinel errors specific to the pak package.
var (
	// ErrTooManyFiles is returned when the file count exceeds the configured limit.
	ErrTooManyFiles = errors.New("pak: too many files")

	// ErrWriterClosed is returned when adding to a closed Writer.
	ErrWriterClosed = errors.New("pak: writer closed")
)
