// Package format encodes and decodes the container's binary structures:
// the trailing footer, the index, entry records, and length-prefixed
// strings. All integers are little endian.
//
// The package is pure: it never performs I/O beyond the io.ReaderAt
// passed to ReadFooter, and it knows nothing about encryption.
package format
