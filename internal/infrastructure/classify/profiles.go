package classify

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/fundingstack/docintake/internal/core/domain"
	"github.com/fundingstack/docintake/internal/infrastructure/ocr"
)

// Profile describes the rule-based signature of one document type.
type Profile struct {
	KeyPhrases    []string `yaml:"key_phrases"`
	LayoutKeyword string   `yaml:"layout_keyword"`
	ContentRatio  float64  `yaml:"content_ratio"`
}

type Profiles map[domain.DocumentType]Profile

// DefaultProfiles returns the built-in signatures for the closed type set.
func DefaultProfiles() Profiles {
	return Profiles{
		domain.TypeBankStatement: {
			KeyPhrases:    []string{"account", "balance", "transaction", "statement", "deposit"},
			LayoutKeyword: "tabular",
			ContentRatio:  0.7,
		},
		domain.TypeISOApplication: {
			KeyPhrases:    []string{"merchant", "business", "application", "owner", "ein"},
			LayoutKeyword: "form",
			ContentRatio:  0.6,
		},
		domain.TypeVoidedCheck: {
			KeyPhrases:    []string{"pay to", "routing", "account", "void"},
			LayoutKeyword: "check",
			ContentRatio:  0.4,
		},
	}
}

// LoadProfiles merges YAML overrides from path over the defaults. An empty
// path returns the defaults unchanged.
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile overrides: %w", err)
	}
	var raw map[string]Profile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse profile overrides: %w", err)
	}

	for name, override := range raw {
		docType, err := domain.ParseDocumentType(name)
		if err != nil {
			return nil, fmt.Errorf("profile overrides: %w", err)
		}
		merged := profiles[docType]
		if len(override.KeyPhrases) > 0 {
			merged.KeyPhrases = override.KeyPhrases
		}
		if override.LayoutKeyword != "" {
			merged.LayoutKeyword = override.LayoutKeyword
		}
		if override.ContentRatio > 0 {
			merged.ContentRatio = override.ContentRatio
		}
		profiles[docType] = merged
	}
	return profiles, nil
}

type compiledProfile struct {
	profile Profile
	phrases []*regexp.Regexp
	layout  *regexp.Regexp
}

// compile builds confusion-tolerant matchers so rule scoring still works on
// text that went through OCR substitution correction.
func (p Profiles) compile() (map[domain.DocumentType]compiledProfile, error) {
	out := make(map[domain.DocumentType]compiledProfile, len(p))
	for docType, profile := range p {
		cp := compiledProfile{profile: profile}
		for _, phrase := range profile.KeyPhrases {
			re, err := regexp.Compile(ocr.TolerantPattern(phrase))
			if err != nil {
				return nil, fmt.Errorf("compile key phrase %q: %w", phrase, err)
			}
			cp.phrases = append(cp.phrases, re)
		}
		re, err := regexp.Compile(ocr.TolerantPattern(profile.LayoutKeyword))
		if err != nil {
			return nil, fmt.Errorf("compile layout keyword %q: %w", profile.LayoutKeyword, err)
		}
		cp.layout = re
		out[docType] = cp
	}
	return out, nil
}
