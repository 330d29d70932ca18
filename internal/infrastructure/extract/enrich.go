package extract

import (
	"github.com/fundingstack/docintake/internal/core/domain"
)

// Enrich derives type-specific metadata beyond the labeled fields: statement
// transaction history, the masked SSN for applications, MICR line values for
// checks. The result may be empty, never nil.
func (x *Extractor) Enrich(text string, docType domain.DocumentType, fields map[string]domain.ExtractedField) map[string]any {
	out := map[string]any{}
	switch docType {
	case domain.TypeBankStatement:
		if txs := TransactionHistory(text); len(txs) > 0 {
			out["transaction_count"] = len(txs)
			out["transaction_history"] = txs
		}
	case domain.TypeISOApplication:
		if ssn, ok := fields["ssn"]; ok {
			if masked := MaskSSN(ssn.Value); masked != "" {
				out["ssn_masked"] = masked
			}
		}
	case domain.TypeVoidedCheck:
		routing, account, ok := ParseMICR(text)
		if !ok {
			break
		}
		if routing != "" {
			out["micr_routing_number"] = routing
		}
		if account != "" {
			out["micr_account_number"] = account
		}
	}
	return out
}

// MaskSSN reduces a well-formed SSN to its last four digits. Anything else
// yields the empty string so a mangled SSN is dropped rather than leaked.
func MaskSSN(ssn string) string {
	if !ssnRe.MatchString(ssn) {
		return ""
	}
	return "XXX-XX-" + ssn[len(ssn)-4:]
}
