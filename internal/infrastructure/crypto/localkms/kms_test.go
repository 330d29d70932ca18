package localkms

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := New(testKey(), "k1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	envelope, err := enc.Encrypt(context.Background(), "123-45-6789")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !strings.HasPrefix(envelope, "enc:k1:") {
		t.Fatalf("envelope = %q", envelope)
	}
	if strings.Contains(envelope, "123-45-6789") {
		t.Fatal("plaintext visible in envelope")
	}
	if !IsEnvelope(envelope) {
		t.Fatal("IsEnvelope rejected own output")
	}

	plain, err := enc.Decrypt(context.Background(), envelope)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != "123-45-6789" {
		t.Fatalf("round trip gave %q", plain)
	}
}

func TestEncryptUsesFreshNonces(t *testing.T) {
	enc, err := New(testKey(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, _ := enc.Encrypt(context.Background(), "same value")
	b, _ := enc.Encrypt(context.Background(), "same value")
	if a == b {
		t.Fatal("two encryptions of the same value produced identical envelopes")
	}
}

func TestDecryptRejectsBadEnvelopes(t *testing.T) {
	enc, err := New(testKey(), "k1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []string{
		"plain value",
		"enc:other:" + base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 64)),
		"enc:k1:not-base64!!!",
		"enc:k1:" + base64.StdEncoding.EncodeToString([]byte("short")),
	}
	for _, c := range cases {
		if _, err := enc.Decrypt(context.Background(), c); err == nil {
			t.Errorf("Decrypt(%q) accepted a bad envelope", c)
		}
	}

	// Flipping a ciphertext byte must break authentication.
	envelope, _ := enc.Encrypt(context.Background(), "tamper me")
	sealed, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(envelope, "enc:k1:"))
	sealed[len(sealed)-1] ^= 0xff
	tampered := "enc:k1:" + base64.StdEncoding.EncodeToString(sealed)
	if _, err := enc.Decrypt(context.Background(), tampered); err == nil {
		t.Fatal("tampered envelope decrypted")
	}
}

func TestNewRejectsBadKeys(t *testing.T) {
	if _, err := New(make([]byte, 16), "k1"); err == nil {
		t.Fatal("short key accepted")
	}
	if _, err := New(testKey(), "a:b"); err == nil {
		t.Fatal("key reference with separator accepted")
	}
}

func TestNewFromKeyFileGeneratesWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "field.key")

	enc, err := NewFromKeyFile(path, "boot")
	if err != nil {
		t.Fatalf("NewFromKeyFile: %v", err)
	}
	envelope, err := enc.Encrypt(context.Background(), "value")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// A second load of the same file must open envelopes from the first.
	again, err := NewFromKeyFile(path, "boot")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if plain, err := again.Decrypt(context.Background(), envelope); err != nil || plain != "value" {
		t.Fatalf("reloaded key cannot open envelope: %q %v", plain, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("key file mode = %v", info.Mode().Perm())
	}
}

func TestNewFromKeyFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.key")
	if err := os.WriteFile(path, []byte("not base64 at all!!!"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFromKeyFile(path, "k1"); err == nil {
		t.Fatal("garbage key file accepted")
	}

	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	if err := os.WriteFile(path, []byte(short), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFromKeyFile(path, "k1"); err == nil {
		t.Fatal("short key file accepted")
	}
}
