// Package localkms implements field encryption with a single locally held
// XChaCha20-Poly1305 key. Ciphertexts are wrapped in a printable envelope
// "enc:<keyref>:<base64(nonce||sealed)>" so stored values are self-describing
// and a future key rotation can route old envelopes to the right key.
package localkms

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required key length in bytes.
const KeySize = chacha20poly1305.KeySize

const envelopePrefix = "enc"

// Encryptor seals and opens field values. Safe for concurrent use.
type Encryptor struct {
	aead   cipher.AEAD
	keyRef string
	rand   io.Reader
}

// New builds an Encryptor from a raw 32-byte key. keyRef names the key inside
// envelopes; it must not contain the envelope separator.
func New(key []byte, keyRef string) (*Encryptor, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("build aead: %w", err)
	}
	if keyRef == "" {
		keyRef = "local"
	}
	if strings.Contains(keyRef, ":") {
		return nil, fmt.Errorf("key reference %q must not contain ':'", keyRef)
	}
	return &Encryptor{aead: aead, keyRef: keyRef, rand: rand.Reader}, nil
}

// NewFromKeyFile loads a base64-encoded key from path. A missing file is
// populated with a freshly generated key so first boot needs no manual step;
// the file is written with owner-only permissions.
func NewFromKeyFile(path, keyRef string) (*Encryptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		key := make([]byte, KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create key directory: %w", err)
		}
		encoded := base64.StdEncoding.EncodeToString(key)
		if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
			return nil, fmt.Errorf("write key file: %w", err)
		}
		return New(key, keyRef)
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key file holds %d bytes, want %d", len(key), KeySize)
	}
	return New(key, keyRef)
}

// Encrypt seals plaintext under a fresh random nonce.
func (e *Encryptor) Encrypt(_ context.Context, plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return envelopePrefix + ":" + e.keyRef + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope produced by Encrypt.
func (e *Encryptor) Decrypt(_ context.Context, envelope string) (string, error) {
	parts := strings.SplitN(envelope, ":", 3)
	if len(parts) != 3 || parts[0] != envelopePrefix {
		return "", errors.New("value is not an encryption envelope")
	}
	if parts[1] != e.keyRef {
		return "", fmt.Errorf("envelope references unknown key %q", parts[1])
	}
	sealed, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	if len(sealed) < e.aead.NonceSize() {
		return "", errors.New("envelope shorter than nonce")
	}
	nonce, ciphertext := sealed[:e.aead.NonceSize()], sealed[e.aead.NonceSize():]
	plain, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open envelope: %w", err)
	}
	return string(plain), nil
}

// IsEnvelope reports whether a stored value already carries the envelope
// prefix, so callers can avoid double encryption.
func IsEnvelope(value string) bool {
	return strings.HasPrefix(value, envelopePrefix+":")
}
