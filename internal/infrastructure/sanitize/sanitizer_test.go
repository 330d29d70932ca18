package sanitize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fundingstack/docintake/internal/core/domain"
)

type fakeEncryptor struct {
	calls []string
	err   error
}

func (f *fakeEncryptor) Encrypt(_ context.Context, plaintext string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, plaintext)
	return "enc(" + plaintext + ")", nil
}

func TestIsSensitive(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"ssn", true},
		{"account_number", true},
		{"micr_account_number", true},
		{"routing_number", true},
		{"ein", true},
		{"ROUTING_NUMBER", true},
		{"business_name", false},
		{"balance", false},
		{"email", false},
	}
	for _, tt := range tests {
		if got := IsSensitive(tt.name); got != tt.want {
			t.Errorf("IsSensitive(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSanitizeEncryptsSensitiveFields(t *testing.T) {
	enc := &fakeEncryptor{}
	s := New(enc)
	fixed := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	fields := map[string]string{
		"ssn":            "123-45-6789",
		"account_number": "123456789",
		"business_name":  "Acme Trading LLC",
	}
	out, entries, err := s.Sanitize(context.Background(), fields)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}

	if out["ssn"] != "enc(123-45-6789)" || out["account_number"] != "enc(123456789)" {
		t.Fatalf("sensitive fields not encrypted: %v", out)
	}
	if out["business_name"] != "Acme Trading LLC" {
		t.Fatalf("non-sensitive field changed: %q", out["business_name"])
	}
	if fields["ssn"] != "123-45-6789" {
		t.Fatal("input map was mutated")
	}

	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}
	// Sorted field order keeps the trail deterministic.
	if entries[0].NewValue != "account_number" || entries[1].NewValue != "ssn" {
		t.Fatalf("audit order = %v, %v", entries[0].NewValue, entries[1].NewValue)
	}
	for _, e := range entries {
		if e.Action != domain.AuditFieldEncrypted || e.Actor != "sanitizer" {
			t.Fatalf("unexpected audit entry %+v", e)
		}
		if !e.Timestamp.Equal(fixed) {
			t.Fatalf("timestamp = %v", e.Timestamp)
		}
		if e.OldValue != nil {
			t.Fatalf("plaintext leaked into audit entry %+v", e)
		}
	}
}

func TestSanitizeSkipsEmptyValues(t *testing.T) {
	enc := &fakeEncryptor{}
	out, entries, err := New(enc).Sanitize(context.Background(), map[string]string{"ssn": ""})
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if out["ssn"] != "" || len(entries) != 0 || len(enc.calls) != 0 {
		t.Fatalf("empty value handled wrong: out=%v entries=%v calls=%v", out, entries, enc.calls)
	}
}

func TestSanitizeEncryptorFailure(t *testing.T) {
	enc := &fakeEncryptor{err: errors.New("kms offline")}
	out, entries, err := New(enc).Sanitize(context.Background(), map[string]string{"ssn": "123-45-6789"})
	if err == nil {
		t.Fatal("expected error")
	}
	if out != nil || entries != nil {
		t.Fatalf("partial output on failure: out=%v entries=%v", out, entries)
	}
}
