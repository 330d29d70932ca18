package extract

import (
	"testing"

	"github.com/fundingstack/docintake/internal/core/domain"
)

func TestMaskSSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123-45-6789", "XXX-XX-6789"},
		{"123456789", ""},
		{"123-45-678", ""},
		{"12-345-6789", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MaskSSN(tt.in); got != tt.want {
			t.Errorf("MaskSSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseMICR(t *testing.T) {
	routing, account, ok := ParseMICR("⑆021000021⑆ 9876543210")
	if !ok || routing != "021000021" || account != "9876543210" {
		t.Fatalf("ParseMICR = %q/%q/%v", routing, account, ok)
	}

	routing, account, ok = ParseMICR("⑆011401533⑆")
	if !ok || routing != "011401533" || account != "" {
		t.Fatalf("routing-only ParseMICR = %q/%q/%v", routing, account, ok)
	}

	if _, _, ok := ParseMICR("Routing: 021000021"); ok {
		t.Fatal("labeled text misread as a MICR line")
	}
}

func TestEnrichBankStatement(t *testing.T) {
	x := NewExtractor(nil)
	text := "01-05-2024  DEP0S1T  $100.00\n01-06-2024  DEP0S1T  $50.00"

	meta := x.Enrich(text, domain.TypeBankStatement, nil)
	if meta["transaction_count"] != 2 {
		t.Fatalf("transaction_count = %v, want 2", meta["transaction_count"])
	}
	txs, ok := meta["transaction_history"].([]domain.Transaction)
	if !ok || len(txs) != 2 {
		t.Fatalf("transaction_history = %#v", meta["transaction_history"])
	}
	if txs[1].Balance != 150 {
		t.Fatalf("running balance = %v, want 150", txs[1].Balance)
	}
}

func TestEnrichISOApplication(t *testing.T) {
	x := NewExtractor(nil)
	fields := map[string]domain.ExtractedField{
		"ssn": {Name: "ssn", Value: "123-45-6789"},
	}

	meta := x.Enrich("", domain.TypeISOApplication, fields)
	if meta["ssn_masked"] != "XXX-XX-6789" {
		t.Fatalf("ssn_masked = %v", meta["ssn_masked"])
	}

	// A mangled SSN must be dropped, not partially leaked.
	meta = x.Enrich("", domain.TypeISOApplication, map[string]domain.ExtractedField{
		"ssn": {Name: "ssn", Value: "123456789"},
	})
	if _, present := meta["ssn_masked"]; present {
		t.Fatalf("mangled ssn leaked: %v", meta)
	}
}

func TestEnrichVoidedCheck(t *testing.T) {
	x := NewExtractor(nil)
	meta := x.Enrich("V01D ⑆021000021⑆ 9876543210", domain.TypeVoidedCheck, nil)
	if meta["micr_routing_number"] != "021000021" {
		t.Fatalf("micr_routing_number = %v", meta["micr_routing_number"])
	}
	if meta["micr_account_number"] != "9876543210" {
		t.Fatalf("micr_account_number = %v", meta["micr_account_number"])
	}

	meta = x.Enrich("n0 m1cr 11ne here", domain.TypeVoidedCheck, nil)
	if len(meta) != 0 {
		t.Fatalf("expected empty metadata, got %v", meta)
	}
}

func TestEnrichNeverNil(t *testing.T) {
	x := NewExtractor(nil)
	if meta := x.Enrich("", domain.DocumentType("INVOICE"), nil); meta == nil {
		t.Fatal("Enrich returned nil map")
	}
}
