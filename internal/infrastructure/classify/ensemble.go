package classify

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"

	"github.com/fundingstack/docintake/internal/core/domain"
	"github.com/fundingstack/docintake/internal/core/ports"
)

// Signal weights. The pattern engine absorbs the secondary share when no
// secondary model is configured, so weights always sum to 1.
const (
	modelWeight              = 0.4
	secondaryWeight          = 0.3
	patternWeight            = 0.3
	patternWeightNoSecondary = 0.6
)

type EnsembleConfig struct {
	// Threshold is the minimum combined confidence to accept a result.
	Threshold float64
	// PatternMargin is how far the rule-based score may trail Threshold
	// before it vetoes the model pick.
	PatternMargin float64
}

func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{Threshold: 0.95, PatternMargin: 0.05}
}

// Ensemble combines a primary scoring model, an optional secondary model and
// the rule-based pattern engine into one classification verdict. Rejections
// still return the populated result so callers can record what was seen.
type Ensemble struct {
	primary   ports.TypeModel
	secondary ports.TypeModel
	features  *Featurizer
	cfg       EnsembleConfig
	log       *slog.Logger
}

// NewEnsemble wires the ensemble. secondary may be nil.
func NewEnsemble(primary, secondary ports.TypeModel, features *Featurizer, cfg EnsembleConfig, log *slog.Logger) *Ensemble {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Threshold <= 0 {
		cfg = DefaultEnsembleConfig()
	}
	return &Ensemble{primary: primary, secondary: secondary, features: features, cfg: cfg, log: log}
}

func (e *Ensemble) Classify(ctx context.Context, img *image.Gray, text domain.OCRResult) (domain.ClassificationResult, error) {
	features := e.features.Features(img, text.Text)

	scores, err := e.primary.Scores(ctx, features)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("primary model %s: %w", e.primary.Name(), err)
	}
	candidate, modelConf, err := argmax(scores)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("primary model %s: %w", e.primary.Name(), err)
	}

	var secondaryConf float64
	secondaryUsed := e.secondary != nil
	if secondaryUsed {
		secondaryScores, err := e.secondary.Scores(ctx, features)
		if err != nil {
			return domain.ClassificationResult{}, fmt.Errorf("secondary model %s: %w", e.secondary.Name(), err)
		}
		secondaryConf = secondaryScores[candidate]
	}

	patternConf := e.features.PatternScore(text.Text, candidate)

	confidence, weights := ensembleConfidence(modelConf, secondaryConf, secondaryUsed, patternConf)
	result := domain.ClassificationResult{
		Type:                candidate,
		Confidence:          confidence,
		ModelConfidence:     modelConf,
		SecondaryConfidence: secondaryConf,
		SecondaryUsed:       secondaryUsed,
		PatternConfidence:   patternConf,
		Weights:             weights,
	}

	var reasons []string
	if !knownType(candidate) {
		reasons = append(reasons, fmt.Sprintf("type %q outside the supported set", candidate))
	}
	if confidence < e.cfg.Threshold {
		reasons = append(reasons, fmt.Sprintf("confidence %.4f below threshold %.2f", confidence, e.cfg.Threshold))
	}
	if floor := e.cfg.Threshold - e.cfg.PatternMargin; patternConf < floor {
		reasons = append(reasons, fmt.Sprintf("pattern confidence %.4f below floor %.2f", patternConf, floor))
	}
	if len(reasons) > 0 {
		e.log.Warn("classification rejected",
			"type", string(candidate),
			"confidence", confidence,
			"reasons", strings.Join(reasons, "; "))
		return result, domain.WrapError(domain.ErrClassificationRejected, "classify document", errors.New(strings.Join(reasons, "; ")))
	}
	return result, nil
}

// ensembleConfidence combines the three signals under the active weighting.
func ensembleConfidence(model, secondary float64, secondaryUsed bool, pattern float64) (float64, domain.EnsembleWeights) {
	weights := domain.EnsembleWeights{Model: modelWeight, Secondary: secondaryWeight, Pattern: patternWeight}
	if !secondaryUsed {
		weights.Secondary = 0
		weights.Pattern = patternWeightNoSecondary
	}
	return model*weights.Model + secondary*weights.Secondary + pattern*weights.Pattern, weights
}

// argmax picks the highest-scoring type. Keys are walked in sorted order and
// only a strictly greater score displaces the leader, so ties and map
// iteration order cannot flip the verdict between runs.
func argmax(scores map[domain.DocumentType]float64) (domain.DocumentType, float64, error) {
	if len(scores) == 0 {
		return "", 0, errors.New("model returned no scores")
	}
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	best := domain.DocumentType(keys[0])
	bestScore := scores[best]
	for _, k := range keys[1:] {
		if s := scores[domain.DocumentType(k)]; s > bestScore {
			best, bestScore = domain.DocumentType(k), s
		}
	}
	return best, bestScore, nil
}

func knownType(t domain.DocumentType) bool {
	for _, known := range domain.DocumentTypes() {
		if t == known {
			return true
		}
	}
	return false
}
