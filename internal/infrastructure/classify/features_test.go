package classify

import (
	"image"
	"math"
	"strings"
	"testing"

	"github.com/fundingstack/docintake/internal/core/domain"
)

func newTestFeaturizer(t *testing.T) *Featurizer {
	t.Helper()
	f, err := NewFeaturizer(DefaultProfiles())
	if err != nil {
		t.Fatalf("NewFeaturizer: %v", err)
	}
	return f
}

// bankText carries every bank statement key phrase, the layout keyword and
// enough characters to saturate the content signal.
func bankText() string {
	return "account balance transaction statement deposit tabular " + strings.Repeat("x ", 400)
}

func TestFeaturesLength(t *testing.T) {
	f := newTestFeaturizer(t)
	vec := f.Features(nil, "some text")
	if len(vec) != FeatureCount {
		t.Fatalf("vector length = %d, want %d", len(vec), FeatureCount)
	}
	if FeatureCount != 18 {
		t.Fatalf("FeatureCount = %d, want 18", FeatureCount)
	}
}

func TestFeaturesNilImageZeroesPageSlots(t *testing.T) {
	f := newTestFeaturizer(t)
	vec := f.Features(nil, "one two three")

	if got, want := vec[slotWordCount], 3.0/1000; got != want {
		t.Fatalf("word count slot = %v, want %v", got, want)
	}
	for slot := slotCharDensity; slot < pageSlots; slot++ {
		if vec[slot] != 0 {
			t.Fatalf("slot %d = %v, want 0 without an image", slot, vec[slot])
		}
	}
}

func TestFeaturesImageSlots(t *testing.T) {
	f := newTestFeaturizer(t)
	img := image.NewGray(image.Rect(0, 0, 100, 50))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	vec := f.Features(img, "ab")
	if got, want := vec[slotCharDensity], 2.0/(100*50); got != want {
		t.Fatalf("char density = %v, want %v", got, want)
	}
	if vec[slotWidth] != 0.1 || vec[slotHeight] != 0.05 {
		t.Fatalf("dimension slots = %v/%v, want 0.1/0.05", vec[slotWidth], vec[slotHeight])
	}
	if vec[slotAspectRatio] != 2 {
		t.Fatalf("aspect ratio = %v, want 2", vec[slotAspectRatio])
	}
	if vec[slotMeanIntensity] != 1 || vec[slotIntensityStd] != 0 {
		t.Fatalf("intensity slots = %v/%v, want 1/0", vec[slotMeanIntensity], vec[slotIntensityStd])
	}
	if vec[slotHorizontalLines] != 0 || vec[slotVerticalLines] != 0 {
		t.Fatalf("uniform page should detect no lines, got %v/%v",
			vec[slotHorizontalLines], vec[slotVerticalLines])
	}
}

func TestFeaturesTypeSlotOrder(t *testing.T) {
	f := newTestFeaturizer(t)
	vec := f.Features(nil, "merchant business application owner ein form")

	// Triplets follow enum order: bank statement, ISO application, voided check.
	bankBase := pageSlots
	isoBase := pageSlots + perTypeSlots
	checkBase := pageSlots + 2*perTypeSlots

	if vec[bankBase] != 0 || vec[bankBase+1] != 0 {
		t.Fatalf("bank slots = %v/%v, want 0/0", vec[bankBase], vec[bankBase+1])
	}
	if vec[isoBase] != 1 || vec[isoBase+1] != 1 {
		t.Fatalf("iso slots = %v/%v, want 1/1", vec[isoBase], vec[isoBase+1])
	}
	if vec[checkBase] != 0 || vec[checkBase+1] != 0 {
		t.Fatalf("check slots = %v/%v, want 0/0", vec[checkBase], vec[checkBase+1])
	}
}

func TestFeaturesTolerateConfusionRewrites(t *testing.T) {
	f := newTestFeaturizer(t)
	// "account" and "deposit" after OCR substitution correction.
	vec := f.Features(nil, "acc0unt dep051t")

	bankHits := vec[pageSlots]
	if bankHits < 2.0/5-1e-9 {
		t.Fatalf("bank phrase hit ratio = %v, want at least 2/5", bankHits)
	}
}

func TestPatternScoreSaturates(t *testing.T) {
	f := newTestFeaturizer(t)
	got := f.PatternScore(bankText(), domain.TypeBankStatement)
	if math.Abs(got-1) > 1e-9 {
		t.Fatalf("pattern score = %v, want 1", got)
	}
	if again := f.PatternScore(bankText(), domain.TypeBankStatement); again != got {
		t.Fatalf("pattern score changed between calls: %v then %v", got, again)
	}
}

func TestPatternScoreUnknownType(t *testing.T) {
	f := newTestFeaturizer(t)
	if got := f.PatternScore(bankText(), domain.DocumentType("INVOICE")); got != 0 {
		t.Fatalf("pattern score for unknown type = %v, want 0", got)
	}
}
