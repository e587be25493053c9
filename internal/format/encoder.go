package format

import (
	"encoding/binary"
	"unicode/utf16"
)

// appendFString appends s as a length-prefixed, NUL-terminated string.
// Pure ASCII is stored as single bytes, anything else as UTF-16LE.
func appendFString(b []byte, s string) []byte {
	if s == "" {
		return binary.LittleEndian.AppendUint32(b, 0)
	}
	if isASCII(s) {
		b = binary.LittleEndian.AppendUint32(b, uint32(len(s)+1)) //nolint:gosec // names are short
		b = append(b, s...)
		return append(b, 0)
	}
	units := utf16.Encode([]rune(s))
	n := -int32(len(units) + 1) //nolint:gosec // names are short
	b = binary.LittleEndian.AppendUint32(b, uint32(n))
	for _, u := range units {
		b = binary.LittleEndian.AppendUint16(b, u)
	}
	return binary.LittleEndian.AppendUint16(b, 0)
}

// fstringSize returns the encoded size of s.
func fstringSize(s string) int {
	if s == "" {
		return 4
	}
	if isASCII(s) {
		return 4 + len(s) + 1
	}
	return 4 + 2*(len(utf16.Encode([]rune(s)))+1)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
