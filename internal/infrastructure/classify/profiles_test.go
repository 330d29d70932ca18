package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fundingstack/docintake/internal/core/domain"
)

func TestLoadProfilesDefaults(t *testing.T) {
	profiles, err := LoadProfiles("")
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}
	if len(profiles) != len(domain.DocumentTypes()) {
		t.Fatalf("profile count = %d, want %d", len(profiles), len(domain.DocumentTypes()))
	}
	if profiles[domain.TypeVoidedCheck].LayoutKeyword != "check" {
		t.Fatalf("voided check layout = %q", profiles[domain.TypeVoidedCheck].LayoutKeyword)
	}
}

func TestLoadProfilesMergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	override := `BANK_STATEMENT:
  key_phrases: ["ledger", "withdrawal"]
  content_ratio: 0.9
`
	if err := os.WriteFile(path, []byte(override), 0o600); err != nil {
		t.Fatalf("write overrides: %v", err)
	}

	profiles, err := LoadProfiles(path)
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}

	bank := profiles[domain.TypeBankStatement]
	if len(bank.KeyPhrases) != 2 || bank.KeyPhrases[0] != "ledger" {
		t.Fatalf("key phrases not overridden: %v", bank.KeyPhrases)
	}
	if bank.ContentRatio != 0.9 {
		t.Fatalf("content ratio = %v, want 0.9", bank.ContentRatio)
	}
	// Fields absent from the override keep their defaults.
	if bank.LayoutKeyword != "tabular" {
		t.Fatalf("layout keyword = %q, want tabular", bank.LayoutKeyword)
	}
	if profiles[domain.TypeISOApplication].LayoutKeyword != "form" {
		t.Fatal("untouched type lost its default profile")
	}
}

func TestLoadProfilesRejectsUnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte("INVOICE:\n  content_ratio: 0.5\n"), 0o600); err != nil {
		t.Fatalf("write overrides: %v", err)
	}
	if _, err := LoadProfiles(path); err == nil {
		t.Fatal("expected error for unknown document type")
	}
}
