package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fundingstack/docintake/internal/core/domain"
)

var (
	einRe = regexp.MustCompile(`^\d{2}-\d{7}$`)
	ssnRe = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
)

// Validate checks every field registered for docType. The document verdict
// needs each required field present and structurally valid plus the overall
// page confidence at or above the per-type threshold; failures aggregate,
// never fail fast. Per-field confidence does not gate the verdict, only the
// Validated flag, which is set in place on entries that clear both bars.
func (x *Extractor) Validate(fields map[string]domain.ExtractedField, docType domain.DocumentType, ocrConfidence float64) domain.ValidationReport {
	threshold := x.thresholds[docType]
	report := domain.ValidationReport{OverallConfidence: ocrConfidence}

	for _, p := range x.patterns[docType] {
		f, ok := fields[p.name]
		if !ok || strings.TrimSpace(f.Value) == "" {
			report.Failures = append(report.Failures, domain.FieldFailure{
				Field:  p.name,
				Reason: "missing required field",
			})
			report.FieldsFailed++
			continue
		}

		if problems := structuralFailures(p.name, f.Value); len(problems) > 0 {
			for _, reason := range problems {
				report.Failures = append(report.Failures, domain.FieldFailure{Field: p.name, Reason: reason})
			}
			report.FieldsFailed++
			continue
		}

		if f.Confidence >= threshold {
			f.Validated = true
			fields[p.name] = f
			report.FieldsValidated++
		}
	}

	if ocrConfidence < threshold {
		report.Failures = append(report.Failures, domain.FieldFailure{
			Field:  "document",
			Reason: fmt.Sprintf("overall confidence %.2f below threshold %.2f", ocrConfidence, threshold),
		})
	}
	report.Valid = len(report.Failures) == 0
	return report
}

func structuralFailures(name, value string) []string {
	var problems []string
	switch name {
	case "routing_number":
		if !ValidRoutingNumber(value) {
			problems = append(problems, "routing number failed checksum")
		}
	case "account_number":
		if !digitsOnly(value) || len(value) < 8 || len(value) > 17 {
			problems = append(problems, "account number must be 8 to 17 digits")
		}
	case "ein":
		if !einRe.MatchString(value) {
			problems = append(problems, "ein must have form NN-NNNNNNN")
		}
	case "ssn":
		if !ssnRe.MatchString(value) {
			problems = append(problems, "ssn must have form NNN-NN-NNNN")
		}
	case "balance", "monthly_revenue":
		amount, err := ParseAmount(value)
		if err != nil {
			problems = append(problems, "amount not parseable")
		} else if amount < 0 {
			problems = append(problems, "amount must not be negative")
		}
	case "statement_date":
		if _, err := ParseDate(value); err != nil {
			problems = append(problems, "date not parseable")
		}
	}
	return problems
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
