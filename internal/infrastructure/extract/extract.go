// Package extract recovers typed fields from recognized document text and
// validates them against per-type structural and confidence rules.
package extract

import (
	"math"
	"regexp"
	"strings"

	"github.com/fundingstack/docintake/internal/core/domain"
	"github.com/fundingstack/docintake/internal/infrastructure/ocr"
)

// fieldPattern binds one required field to its anchored capture pattern.
type fieldPattern struct {
	name string
	re   *regexp.Regexp
}

// sep sits between an anchor and its value: the original separator character
// plus any padding.
const sep = `[:\s]\s*`

// anchor makes a label word confusion tolerant, so "Routing" still anchors
// after the text was rewritten to "R0ut1ng".
func anchor(word string) string { return ocr.TolerantPattern(word) }

func anyOf(patterns ...string) string {
	return "(?:" + strings.Join(patterns, "|") + ")"
}

const amountValue = `\$?(\d{1,3}(?:,\d{3})*\.?\d{0,2})`

var fieldPatterns = map[domain.DocumentType][]fieldPattern{
	domain.TypeBankStatement: {
		{"account_number", regexp.MustCompile(anchor("Account") + `\s*#?\s*[:\-]?\s*(\d{8,12})`)},
		{"routing_number", regexp.MustCompile(anchor("Routing") + `\s*#?\s*[:\-]?\s*(\d{9})`)},
		{"balance", regexp.MustCompile(anchor("Balance") + sep + amountValue)},
		{"monthly_revenue", regexp.MustCompile(anchor("Monthly") + `\s+` + anchor("Revenue") + sep + amountValue)},
		{"statement_date", regexp.MustCompile(anyOf(anchor("Statement"), anchor("Date")) + sep + `(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`)},
		{"business_name", regexp.MustCompile(anyOf(anchor("Business"), anchor("Company")) + sep + `([A-Za-z0-9\s,\.]{3,100})`)},
	},
	domain.TypeISOApplication: {
		{"business_name", regexp.MustCompile(anyOf(anchor("Business"), anchor("DBA")) + sep + `([A-Za-z0-9\s,\.]{3,100})`)},
		{"ein", regexp.MustCompile(anyOf(anchor("EIN"), anchor("Tax")+`\s+`+anchor("ID")) + sep + `(\d{2}-\d{7})`)},
		{"owner_name", regexp.MustCompile(anyOf(anchor("Owner"), anchor("Principal")) + sep + `([A-Za-z\s,\.]{3,100})`)},
		{"ssn", regexp.MustCompile(anyOf(anchor("SSN"), anchor("Social")) + sep + `(\d{3}-\d{2}-\d{4})`)},
		{"phone", regexp.MustCompile(anyOf(anchor("Phone"), anchor("Tel")) + sep + `([\d\-\(\)\s]{10,})`)},
		{"email", regexp.MustCompile(anyOf(anchor("Email"), anchor("E-mail")) + sep + `([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)},
	},
	domain.TypeVoidedCheck: {
		{"account_number", regexp.MustCompile(anyOf(anchor("Account"), anchor("Acct")) + sep + `(\d{8,17})`)},
		{"routing_number", regexp.MustCompile(anyOf(anchor("Routing"), anchor("ABA")) + sep + `(\d{9})`)},
		{"bank_name", regexp.MustCompile(`([A-Za-z\s]{2,50})\s+` + anchor("BANK"))},
		{"check_number", regexp.MustCompile(anchor("Check") + `\s*#?\s*(\d{4,})`)},
	},
}

// Extractor runs the per-type field patterns and the validation rules.
// Safe for concurrent use; all state is read-only after construction.
type Extractor struct {
	patterns   map[domain.DocumentType][]fieldPattern
	thresholds map[domain.DocumentType]float64
}

// NewExtractor builds an extractor with the given confidence thresholds.
// nil selects the defaults.
func NewExtractor(thresholds map[domain.DocumentType]float64) *Extractor {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	return &Extractor{patterns: fieldPatterns, thresholds: thresholds}
}

// Extract runs every pattern registered for docType over text. The first
// match becomes the field value, later matches its alternatives. Fields with
// no match are simply absent; Validate is where absence becomes a failure.
func (x *Extractor) Extract(text string, docType domain.DocumentType, baseConfidence float64) map[string]domain.ExtractedField {
	fields := make(map[string]domain.ExtractedField)
	for _, p := range x.patterns[docType] {
		matches := p.re.FindAllStringSubmatch(text, -1)
		var values []string
		for _, m := range matches {
			if v := strings.TrimSpace(m[1]); v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		fields[p.name] = domain.ExtractedField{
			Name:         p.name,
			Value:        values[0],
			Confidence:   FieldConfidence(baseConfidence, values[0]),
			Alternatives: values[1:],
		}
	}
	return fields
}

var irregularCharRe = regexp.MustCompile(`[^A-Za-z0-9\s\-.]`)

// FieldConfidence discounts the page confidence for signals that the value
// itself is suspect: once per confusion class still present, and once more
// for characters outside the expected financial-document set. Rounded to two
// decimals.
func FieldConfidence(base float64, value string) float64 {
	conf := base
	for i := 0; i < ocr.ConfusionClasses(value); i++ {
		conf *= 0.9
	}
	if irregularCharRe.MatchString(value) {
		conf *= 0.85
	}
	return math.Round(conf*100) / 100
}
