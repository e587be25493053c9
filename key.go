package pak

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/meigma/pak/internal/crypt"
)

// KeySize is the length in bytes of an archive key (AES-256).
const KeySize = crypt.KeySize

// Key is raw AES-256 key material. A nil Key means no key.
type Key []byte

// ParseKey decodes key material from text.
//
// Accepted forms are hex (optionally prefixed with "0x") and standard
// base64, both encoding exactly KeySize bytes. Surrounding whitespace is
// ignored. An empty string yields a nil Key. Anything else fails with
// ErrMalformedKey.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	hexText := s
	if len(hexText) > 2 && (hexText[:2] == "0x" || hexText[:2] == "0X") {
		hexText = hexText[2:]
	}
	if len(hexText) == hex.EncodedLen(KeySize) {
		if b, err := hex.DecodeString(hexText); err == nil {
			return Key(b), nil
		}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == KeySize {
		return Key(b), nil
	}
	return nil, fmt.Errorf("%w: want %d bytes as hex or base64", ErrMalformedKey, KeySize)
}

// String returns a redacted form so keys do not leak into logs.
func (k Key) String() string {
	if len(k) == 0 {
		return "<none>"
	}
	return "<redacted>"
}

// cipher returns the block cipher for k, or nil when k is empty.
func (k Key) cipher() (*crypt.Cipher, error) {
	if len(k) == 0 {
		return nil, nil //nolint:nilnil // no key means no cipher
	}
	c, err := crypt.New(k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return c, nil
}
