package extract

import (
	"testing"
	"time"
)

func TestTransactionHistorySortsAndRunsBalance(t *testing.T) {
	text := `5tatement act1v1ty
01-20-2024  ACH DEP0S1T Acme  $500.00
01-05-2024  W1RE TRANSFER  -$200.00
01-10-2024  CHECK 1001  $100.00
n0 amount 1n th15 11ne`

	txs := TransactionHistory(text)
	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txs))
	}

	wantDates := []time.Time{
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
	}
	wantAmounts := []float64{-200, 100, 500}
	wantBalances := []float64{-200, -100, 400}
	for i, tx := range txs {
		if !tx.Date.Equal(wantDates[i]) {
			t.Errorf("tx %d date = %v, want %v", i, tx.Date, wantDates[i])
		}
		if tx.Amount != wantAmounts[i] {
			t.Errorf("tx %d amount = %v, want %v", i, tx.Amount, wantAmounts[i])
		}
		if tx.Balance != wantBalances[i] {
			t.Errorf("tx %d balance = %v, want %v", i, tx.Balance, wantBalances[i])
		}
	}
	if txs[0].Description != "W1RE TRANSFER" {
		t.Errorf("description = %q, want W1RE TRANSFER", txs[0].Description)
	}
}

func TestTransactionHistoryIgnoresMalformedLines(t *testing.T) {
	text := `01-05-2024 missing an amount
just $50.00 with no date
plain prose line`
	if txs := TransactionHistory(text); len(txs) != 0 {
		t.Fatalf("parsed %d transactions from malformed lines", len(txs))
	}
}

func TestTransactionHistoryEmptyText(t *testing.T) {
	if txs := TransactionHistory(""); len(txs) != 0 {
		t.Fatalf("parsed %d transactions from empty text", len(txs))
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"$1,234.56", 1234.56, false},
		{"950.00", 950, false},
		{"-$50.00", -50, false},
		{" 42 ", 42, false},
		{"", 0, true},
		{"$", 0, true},
		{"twelve", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q) succeeded with %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAmount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	valid := map[string]time.Time{
		"1/5/2024":   time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		"01/15/2024": time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		"01-15-2024": time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		"3-7-24":     time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range valid {
		got, err := ParseDate(in)
		if err != nil {
			t.Errorf("ParseDate(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", in, got, want)
		}
	}

	for _, in := range []string{"13-45-2024", "2024-01-15", "date", ""} {
		if _, err := ParseDate(in); err == nil {
			t.Errorf("ParseDate(%q) accepted", in)
		}
	}
}
