// Package crypt implements the block-wise AES-256 transform used for
// encrypted indexes and payloads.
//
// Each 16-byte block is transformed independently (ECB). Inputs must be a
// multiple of the block size; callers pad with zeros before encrypting.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

// BlockSize is the AES block size in bytes.
const BlockSize = aes.BlockSize

// ErrUnaligned is returned when input is not a multiple of BlockSize.
var ErrUnaligned = errors.New("crypt: input is not block aligned")

// Cipher encrypts and decrypts block-aligned buffers.
// A Cipher is safe for concurrent use.
type Cipher struct {
	block cipher.Block
}

// New creates a Cipher for a 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypt: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &Cipher{block: block}, nil
}

// Decrypt decrypts src into dst. dst and src may overlap entirely.
func (c *Cipher) Decrypt(dst, src []byte) error {
	if len(src)%BlockSize != 0 {
		return ErrUnaligned
	}
	if len(dst) < len(src) {
		return errors.New("crypt: output smaller than input")
	}
	for i := 0; i < len(src); i += BlockSize {
		c.block.Decrypt(dst[i:i+BlockSize], src[i:i+BlockSize])
	}
	return nil
}

// Encrypt encrypts src into dst. dst and src may overlap entirely.
func (c *Cipher) Encrypt(dst, src []byte) error {
	if len(src)%BlockSize != 0 {
		return ErrUnaligned
	}
	if len(dst) < len(src) {
		return errors.New("crypt: output smaller than input")
	}
	for i := 0; i < len(src); i += BlockSize {
		c.block.Encrypt(dst[i:i+BlockSize], src[i:i+BlockSize])
	}
	return nil
}

// Pad returns b zero-padded to a multiple of BlockSize. b is returned
// unchanged when already aligned.
func Pad(b []byte) []byte {
	rem := len(b) % BlockSize
	if rem == 0 {
		return b
	}
	out := make([]byte, len(b)+BlockSize-rem)
	copy(out, b)
	return out
}
