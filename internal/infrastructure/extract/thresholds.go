package extract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fundingstack/docintake/internal/core/domain"
)

// DefaultThresholds returns the per-type minimum confidence for fields and
// the page as a whole to count as validated.
func DefaultThresholds() map[domain.DocumentType]float64 {
	return map[domain.DocumentType]float64{
		domain.TypeBankStatement:  0.95,
		domain.TypeISOApplication: 0.90,
		domain.TypeVoidedCheck:    0.95,
	}
}

// LoadThresholds merges YAML overrides from path over the defaults. An empty
// path returns the defaults unchanged.
func LoadThresholds(path string) (map[domain.DocumentType]float64, error) {
	thresholds := DefaultThresholds()
	if path == "" {
		return thresholds, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read threshold overrides: %w", err)
	}
	var raw map[string]float64
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse threshold overrides: %w", err)
	}

	for name, value := range raw {
		docType, err := domain.ParseDocumentType(name)
		if err != nil {
			return nil, fmt.Errorf("threshold overrides: %w", err)
		}
		if value <= 0 || value > 1 {
			return nil, fmt.Errorf("threshold overrides: %s outside (0,1]: %v", name, value)
		}
		thresholds[docType] = value
	}
	return thresholds, nil
}
