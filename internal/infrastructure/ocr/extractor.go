package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"

	"github.com/fundingstack/docintake/internal/core/domain"
	"github.com/fundingstack/docintake/internal/infrastructure/resilience"
)

type Config struct {
	// Languages is the supported language set; the first entry is the default.
	Languages []string
	DPI       int
	// PageSegMode is the tesseract page segmentation mode ("3" = automatic).
	PageSegMode string
	// Whitelist restricts recognition to the given characters when non-empty.
	Whitelist string
}

func DefaultConfig() Config {
	return Config{
		Languages:   []string{"eng"},
		DPI:         300,
		PageSegMode: "3",
	}
}

// Extractor turns normalized pages into text with an aggregate confidence.
// Backend failures are retried through the resilience executor; exhaustion
// surfaces as ErrOCRBackend.
type Extractor struct {
	engine Engine
	exec   *resilience.Executor
	cfg    Config
	log    *slog.Logger
}

func NewExtractor(engine Engine, exec *resilience.Executor, cfg Config, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultConfig().Languages
	}
	return &Extractor{engine: engine, exec: exec, cfg: cfg, log: log}
}

func (x *Extractor) ExtractText(ctx context.Context, img image.Image, lang string) (domain.OCRResult, error) {
	if lang == "" {
		lang = x.cfg.Languages[0]
	}
	if !x.supported(lang) {
		return domain.OCRResult{}, domain.WrapError(domain.ErrUnsupportedLanguage, "extract text",
			fmt.Errorf("language %q not in supported set %v", lang, x.cfg.Languages))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return domain.OCRResult{}, domain.WrapError(domain.ErrInvalidImage, "extract text", err)
	}
	in := Input{
		Image:     buf.Bytes(),
		Language:  lang,
		DPI:       x.cfg.DPI,
		Variables: x.variables(),
	}

	var rec Recognition
	attempts := 0
	err := x.exec.Execute(ctx, "ocr", func(ctx context.Context) error {
		attempts++
		var rerr error
		rec, rerr = x.engine.Recognize(ctx, in)
		return rerr
	}, classifyBackendError)
	if err != nil {
		x.log.Error("ocr exhausted", "engine", x.engine.Name(), "attempts", attempts, "error", err)
		return domain.OCRResult{}, domain.WrapError(domain.ErrOCRBackend, "extract text", err)
	}

	return domain.OCRResult{
		Text:       CorrectConfusions(strings.TrimSpace(rec.Text)),
		Confidence: meanPositiveConfidence(rec.Words),
		WordCount:  len(rec.Words),
		Attempts:   attempts,
		Source:     x.engine.Name(),
	}, nil
}

func (x *Extractor) supported(lang string) bool {
	for _, l := range x.cfg.Languages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

func (x *Extractor) variables() map[string]string {
	vars := map[string]string{}
	if x.cfg.PageSegMode != "" {
		vars["tessedit_pageseg_mode"] = x.cfg.PageSegMode
	}
	if x.cfg.Whitelist != "" {
		vars["tessedit_char_whitelist"] = x.cfg.Whitelist
	}
	return vars
}

// meanPositiveConfidence averages the positive word confidences; tokens the
// backend could not score are excluded, and a page with none yields 0.
func meanPositiveConfidence(words []Word) float64 {
	var sum float64
	n := 0
	for _, w := range words {
		if w.Confidence > 0 {
			sum += w.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func classifyBackendError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
