package domain

import "time"

// OCRResult carries recognized text together with its aggregate confidence.
// Confidence is the mean of positive per-word confidences, in [0,1].
type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	WordCount  int     `json:"word_count"`
	Attempts   int     `json:"attempts"`
	Source     string  `json:"source,omitempty"`
}

// EnsembleWeights describes how the classifier combined its signals.
// The weights always sum to 1; the pattern weight absorbs the secondary
// share when no secondary model is configured.
type EnsembleWeights struct {
	Model     float64 `json:"model"`
	Secondary float64 `json:"secondary"`
	Pattern   float64 `json:"pattern"`
}

// ClassificationResult is the accepted outcome of the ensemble classifier.
type ClassificationResult struct {
	Type                DocumentType    `json:"type"`
	Confidence          float64         `json:"confidence"`
	ModelConfidence     float64         `json:"model_confidence"`
	SecondaryConfidence float64         `json:"secondary_confidence,omitempty"`
	SecondaryUsed       bool            `json:"secondary_used"`
	PatternConfidence   float64         `json:"pattern_confidence"`
	Weights             EnsembleWeights `json:"weights"`
}

// ExtractedField is a single field recovered from OCR text. Value holds the
// first pattern match; later matches are kept as alternatives. Validated is
// set only once the field passed structural and confidence checks.
type ExtractedField struct {
	Name         string   `json:"name"`
	Value        string   `json:"value"`
	Confidence   float64  `json:"confidence"`
	Alternatives []string `json:"alternatives,omitempty"`
	Validated    bool     `json:"validated"`
}

// FieldFailure names one validation problem. Failures aggregate; validation
// never stops at the first one.
type FieldFailure struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationReport is the all-or-nothing verdict over a document's fields.
type ValidationReport struct {
	Valid             bool           `json:"valid"`
	Failures          []FieldFailure `json:"failures,omitempty"`
	FieldsValidated   int            `json:"fields_validated"`
	FieldsFailed      int            `json:"fields_failed"`
	OverallConfidence float64        `json:"overall_confidence"`
}

// FailedFields lists the distinct field names that failed, in failure order.
func (r ValidationReport) FailedFields() []string {
	seen := make(map[string]struct{}, len(r.Failures))
	var out []string
	for _, f := range r.Failures {
		if _, ok := seen[f.Field]; ok {
			continue
		}
		seen[f.Field] = struct{}{}
		out = append(out, f.Field)
	}
	return out
}

// Transaction is one bank statement line item. Balance is the running balance
// after applying Amount in chronological order.
type Transaction struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Balance     float64   `json:"balance"`
}
