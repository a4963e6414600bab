package biometric

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/crypto/chacha20poly1305"
)

// Codec encrypts embeddings at rest. Templates are sealed with
// ChaCha20-Poly1305 under a process-wide key, nonce prepended to the
// ciphertext. A template sealed under a rotated key simply fails to open,
// which verification treats as "this candidate cannot match".
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a codec from a 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("template codec key: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Seal encrypts an embedding.
func (c *Codec) Seal(embedding []float32) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("template nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, encodeVector(embedding), nil), nil
}

// Open decrypts a sealed embedding.
func (c *Codec) Open(ciphertext []byte) ([]float32, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("template ciphertext truncated")
	}
	plain, err := c.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	return decodeVector(plain)
}

func encodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("template payload is not a float32 vector")
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
