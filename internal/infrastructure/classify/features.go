package classify

import (
	"image"
	"strings"
	"unicode/utf8"

	"github.com/fundingstack/docintake/internal/core/domain"
	"github.com/fundingstack/docintake/internal/infrastructure/imaging"
)

// Slot layout of the feature vector handed to scoring models. The first nine
// slots describe the page as a whole; after them come three slots per document
// type, in enum order.
const (
	slotWordCount = iota
	slotCharDensity
	slotWidth
	slotHeight
	slotAspectRatio
	slotHorizontalLines
	slotVerticalLines
	slotMeanIntensity
	slotIntensityStd
	pageSlots
)

const perTypeSlots = 3

// FeatureCount is the fixed length of every produced vector.
var FeatureCount = pageSlots + perTypeSlots*len(domain.DocumentTypes())

// Featurizer turns a normalized page and its OCR text into the fixed-width
// vector scoring models consume. Producing the vector never fails; absent
// signals stay at zero.
type Featurizer struct {
	profiles Profiles
	compiled map[domain.DocumentType]compiledProfile
}

func NewFeaturizer(profiles Profiles) (*Featurizer, error) {
	compiled, err := profiles.compile()
	if err != nil {
		return nil, err
	}
	return &Featurizer{profiles: profiles, compiled: compiled}, nil
}

// Features builds the vector for one page. The image may be nil (born-digital
// text path); image-derived slots are then zero.
func (f *Featurizer) Features(img *image.Gray, text string) []float64 {
	vec := make([]float64, FeatureCount)

	chars := float64(utf8.RuneCountInString(text))
	vec[slotWordCount] = float64(len(strings.Fields(text))) / 1000

	if img != nil {
		bounds := img.Bounds()
		w := float64(bounds.Dx())
		h := float64(bounds.Dy())
		if w > 0 && h > 0 {
			vec[slotCharDensity] = chars / (w * h)
			vec[slotWidth] = w / 1000
			vec[slotHeight] = h / 1000
			vec[slotAspectRatio] = w / h
		}
		lines := imaging.DetectLines(img)
		vec[slotHorizontalLines] = float64(lines.Horizontal)
		vec[slotVerticalLines] = float64(lines.Vertical)
		mean, std := imaging.MeanStd(img)
		vec[slotMeanIntensity] = mean / 255
		vec[slotIntensityStd] = std / 255
	}

	for i, docType := range domain.DocumentTypes() {
		hitRatio, layoutHit, contentScore := f.typeSignals(text, docType)
		base := pageSlots + i*perTypeSlots
		vec[base] = hitRatio
		vec[base+1] = layoutHit
		vec[base+2] = contentScore
	}
	return vec
}

// PatternScore is the rule-based confidence for one document type, the mean
// of its three per-type signals.
func (f *Featurizer) PatternScore(text string, docType domain.DocumentType) float64 {
	hitRatio, layoutHit, contentScore := f.typeSignals(text, docType)
	return (hitRatio + layoutHit + contentScore) / perTypeSlots
}

func (f *Featurizer) typeSignals(text string, docType domain.DocumentType) (hitRatio, layoutHit, contentScore float64) {
	cp, ok := f.compiled[docType]
	if !ok {
		return 0, 0, 0
	}

	hits := 0
	for _, phrase := range cp.phrases {
		if phrase.MatchString(text) {
			hits++
		}
	}
	if len(cp.phrases) > 0 {
		hitRatio = float64(hits) / float64(len(cp.phrases))
	}

	if cp.layout != nil && cp.layout.MatchString(text) {
		layoutHit = 1
	}

	// Pages carrying at least 1000*ratio characters count as fully dense
	// for this type; shorter text scales linearly.
	if cp.profile.ContentRatio > 0 {
		contentScore = float64(utf8.RuneCountInString(text)) / (1000 * cp.profile.ContentRatio)
		if contentScore > 1 {
			contentScore = 1
		}
	}
	return hitRatio, layoutHit, contentScore
}
