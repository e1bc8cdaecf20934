package piivault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

// gcmTagSize is the GCM authentication tag length appended by Seal.
const gcmTagSize = 16

var errKeyMaterialEmpty = errors.New("pii encryption key material is empty")

// vaultCipher wraps an AES-256-GCM AEAD with a key derived from the
// configured key material.
type vaultCipher struct {
	aead cipher.AEAD
}

// newCipher derives a 32-byte key by hashing the material, so operators can
// supply any sufficiently long secret string.
func newCipher(keyMaterial []byte) (*vaultCipher, error) {
	if len(keyMaterial) == 0 {
		return nil, errKeyMaterialEmpty
	}
	key := sha256.Sum256(keyMaterial)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &vaultCipher{aead: aead}, nil
}

// encrypt seals plaintext and splits the result into iv, ciphertext, tag.
func (c *vaultCipher) encrypt(plaintext []byte) (iv, ciphertext, tag []byte, err error) {
	iv = make([]byte, c.aead.NonceSize())
	if _, err = rand.Read(iv); err != nil {
		return nil, nil, nil, fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, iv, plaintext, nil)
	ciphertext = sealed[:len(sealed)-gcmTagSize]
	tag = sealed[len(sealed)-gcmTagSize:]
	return iv, ciphertext, tag, nil
}

// decrypt reassembles ciphertext+tag and opens it. Returns an error on tag
// verification failure.
func (c *vaultCipher) decrypt(iv, ciphertext, tag []byte) ([]byte, error) {
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("opening sealed value: %w", err)
	}
	return plaintext, nil
}
