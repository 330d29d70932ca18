package extract

import (
	"testing"

	"github.com/fundingstack/docintake/internal/core/domain"
)

// Fixture pages as they look after OCR substitution correction rewrote the
// confusion characters to digits.
const correctedBankStatement = `F1r5t Nat10na1 Bank
5tatement Date: 01-15-2024
Acc0unt #: 123456789
R0ut1ng #: 021000021
Ba1ance: $950.00
M0nth1y Revenue: $820.00
C0mpany: Acme Trad1ng LLC`

const correctedISOApplication = `Merchant App11cat10n
E1N: 12-3456789
0wner: Mark Tanner
55N: 123-45-6789
Ph0ne: 555-123-4567
Ema1l: mark@acmefund1ng.net
Bu51ne55: Acme Venture Gr0up`

const correctedVoidedCheck = `GRANT BANK
J0HN TANNER
Acc0unt: 9876543210
R0ut1ng: 021000021
Check # 1001
⑆021000021⑆ 9876543210
V01D`

func TestExtractBankStatementFields(t *testing.T) {
	x := NewExtractor(nil)
	fields := x.Extract(correctedBankStatement, domain.TypeBankStatement, 0.97)

	want := map[string]string{
		"account_number":  "123456789",
		"routing_number":  "021000021",
		"balance":         "950.00",
		"monthly_revenue": "820.00",
		"statement_date":  "01-15-2024",
		"business_name":   "Acme Trad1ng LLC",
	}
	if len(fields) != len(want) {
		t.Fatalf("extracted %d fields (%v), want %d", len(fields), fieldNames(fields), len(want))
	}
	for name, value := range want {
		f, ok := fields[name]
		if !ok {
			t.Fatalf("field %s missing", name)
		}
		if f.Value != value {
			t.Errorf("%s = %q, want %q", name, f.Value, value)
		}
		if f.Confidence != 0.97 {
			t.Errorf("%s confidence = %v, want 0.97", name, f.Confidence)
		}
		if f.Validated {
			t.Errorf("%s validated before Validate ran", name)
		}
	}
}

func TestExtractISOApplicationFields(t *testing.T) {
	x := NewExtractor(nil)
	fields := x.Extract(correctedISOApplication, domain.TypeISOApplication, 0.92)

	want := map[string]string{
		"business_name": "Acme Venture Gr0up",
		"ein":           "12-3456789",
		"owner_name":    "Mark Tanner",
		"ssn":           "123-45-6789",
		"phone":         "555-123-4567",
		"email":         "mark@acmefund1ng.net",
	}
	for name, value := range want {
		f, ok := fields[name]
		if !ok {
			t.Fatalf("field %s missing (got %v)", name, fieldNames(fields))
		}
		if f.Value != value {
			t.Errorf("%s = %q, want %q", name, f.Value, value)
		}
	}
	// The @ sign sits outside the expected character set, so the email
	// keeps the irregular-character discount.
	if got := fields["email"].Confidence; got != 0.78 {
		t.Errorf("email confidence = %v, want 0.78", got)
	}
	if got := fields["ein"].Confidence; got != 0.92 {
		t.Errorf("ein confidence = %v, want 0.92", got)
	}
}

func TestExtractVoidedCheckFields(t *testing.T) {
	x := NewExtractor(nil)
	fields := x.Extract(correctedVoidedCheck, domain.TypeVoidedCheck, 0.96)

	want := map[string]string{
		"account_number": "9876543210",
		"routing_number": "021000021",
		"bank_name":      "GRANT",
		"check_number":   "1001",
	}
	for name, value := range want {
		f, ok := fields[name]
		if !ok {
			t.Fatalf("field %s missing (got %v)", name, fieldNames(fields))
		}
		if f.Value != value {
			t.Errorf("%s = %q, want %q", name, f.Value, value)
		}
	}
}

func TestExtractKeepsLaterMatchesAsAlternatives(t *testing.T) {
	x := NewExtractor(nil)
	text := "Acc0unt # 11112222\nAcc0unt # 33334444"
	fields := x.Extract(text, domain.TypeBankStatement, 0.9)

	f, ok := fields["account_number"]
	if !ok {
		t.Fatal("account_number missing")
	}
	if f.Value != "11112222" {
		t.Fatalf("value = %q, want first match", f.Value)
	}
	if len(f.Alternatives) != 1 || f.Alternatives[0] != "33334444" {
		t.Fatalf("alternatives = %v, want [33334444]", f.Alternatives)
	}
}

func TestExtractMissingFieldsAbsent(t *testing.T) {
	x := NewExtractor(nil)
	fields := x.Extract("nothing recognizable here", domain.TypeBankStatement, 0.9)
	if len(fields) != 0 {
		t.Fatalf("extracted %v from noise", fieldNames(fields))
	}
}

func TestExtractAnchorsTolerateUncorrectedText(t *testing.T) {
	x := NewExtractor(nil)
	// Raw anchor spellings, as they look before substitution correction.
	text := "Routing # 021000021\nAccount # 12345678"
	fields := x.Extract(text, domain.TypeBankStatement, 0.9)

	if fields["routing_number"].Value != "021000021" {
		t.Fatalf("routing_number = %q", fields["routing_number"].Value)
	}
	if fields["account_number"].Value != "12345678" {
		t.Fatalf("account_number = %q", fields["account_number"].Value)
	}
}

func TestFieldConfidence(t *testing.T) {
	tests := []struct {
		name  string
		base  float64
		value string
		want  float64
	}{
		{"clean digits", 0.9, "123456789", 0.9},
		{"one confusion class", 0.9, "O21000O21", 0.81},
		{"two confusion classes", 1, "Oil", 0.81},
		{"irregular characters", 1, "(555) 123-4567", 0.85},
		{"classes and irregular", 1, "Oil!", 0.69},
		{"rounded", 0.97, "O", 0.87},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FieldConfidence(tt.base, tt.value); got != tt.want {
				t.Fatalf("FieldConfidence(%v, %q) = %v, want %v", tt.base, tt.value, got, tt.want)
			}
		})
	}
}

func fieldNames(fields map[string]domain.ExtractedField) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	return names
}
