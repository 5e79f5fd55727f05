// Package codec turns message text into its at-rest form and back.
// Failures degrade to pass-through: the input text is returned unchanged.
package codec

import (
	"care-chat/errors"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	keySize   = chacha20poly1305.KeySize
	nonceSize = chacha20poly1305.NonceSizeX
	hkdfInfo  = "care-chat message codec v1"
)

type FallbackRecorder interface {
	RecordCodecFallback(op string)
}

// Codec seals text with XChaCha20-Poly1305 under a process-wide key.
type Codec struct {
	aead     cipher.AEAD
	log      *slog.Logger
	recorder FallbackRecorder
}

// New builds a Codec from a configured secret. A base64 secret decoding to
// exactly 32 bytes is used as the key; any other secret is stretched with HKDF-SHA256.
func New(secret string, log *slog.Logger, recorder FallbackRecorder) (*Codec, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidKey, err)
	}
	return &Codec{aead: aead, log: log, recorder: recorder}, nil
}

func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: secret is empty", errors.ErrInvalidKey)
	}
	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) == keySize {
		return raw, nil
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidKey, err)
	}
	return key, nil
}

// Encrypt returns base64(nonce || ciphertext), or plaintext when sealing fails.
func (c *Codec) Encrypt(plaintext string) string {
	out, err := c.seal(plaintext)
	if err != nil {
		c.fallback("encrypt", err)
		return plaintext
	}
	return out
}

// Decrypt reverses Encrypt, or returns its input unchanged when opening fails.
func (c *Codec) Decrypt(ciphertext string) string {
	out, err := c.open(ciphertext)
	if err != nil {
		c.fallback("decrypt", err)
		return ciphertext
	}
	return out
}

func (c *Codec) seal(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Codec) open(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", fmt.Errorf("ciphertext too short (%d bytes)", len(raw))
	}
	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plain), nil
}

func (c *Codec) fallback(op string, err error) {
	c.log.Error("Codec failure, passing text through", "op", op, "error", err)
	if c.recorder != nil {
		c.recorder.RecordCodecFallback(op)
	}
}
