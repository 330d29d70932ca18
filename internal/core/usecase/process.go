package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fundingstack/docintake/internal/core/domain"
	"github.com/fundingstack/docintake/internal/core/ports"
)

const defaultActor = "worker"

// ProcessConfig bounds the pipeline stages. Zero values fall back to the
// defaults below when the use case is built.
type ProcessConfig struct {
	OCRLanguage       string
	OCRTimeout        time.Duration
	ClassifyTimeout   time.Duration
	PDFTextConfidence float64
	Actor             string
}

func (c ProcessConfig) normalize() ProcessConfig {
	out := c
	if out.OCRLanguage == "" {
		out.OCRLanguage = "eng"
	}
	if out.OCRTimeout <= 0 {
		out.OCRTimeout = 120 * time.Second
	}
	if out.ClassifyTimeout <= 0 {
		out.ClassifyTimeout = 60 * time.Second
	}
	if out.PDFTextConfidence <= 0 || out.PDFTextConfidence > 1 {
		out.PDFTextConfidence = 0.99
	}
	if out.Actor == "" {
		out.Actor = defaultActor
	}
	return out
}

// ProcessDeps names the collaborators of the processing pipeline.
type ProcessDeps struct {
	Repo       ports.DocumentRepository
	Blobs      ports.BlobStore
	Normalizer ports.ImageNormalizer
	Recognizer ports.TextRecognizer
	Classifier ports.DocumentClassifier
	Extractor  ports.FieldExtractor
	Sanitizer  ports.Sanitizer
	PDFText    ports.TextLayerExtractor
	Metrics    ports.MetricsSink
}

// ProcessDocumentUseCase drives one document through normalization, OCR,
// classification, field extraction, validation and sanitization, moving its
// status PROCESSING -> COMPLETED or FAILED with the failure reason recorded.
type ProcessDocumentUseCase struct {
	deps  ProcessDeps
	cfg   ProcessConfig
	log   *slog.Logger
	stats *ProcessStats

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewProcessDocumentUseCase(deps ProcessDeps, cfg ProcessConfig, log *slog.Logger) *ProcessDocumentUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessDocumentUseCase{
		deps:     deps,
		cfg:      cfg.normalize(),
		log:      log,
		stats:    NewProcessStats(),
		inFlight: make(map[string]struct{}),
	}
}

// Stats exposes aggregate processing counters for periodic operator logging.
func (uc *ProcessDocumentUseCase) Stats() StatsSnapshot {
	return uc.stats.Snapshot()
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if !uc.acquire(documentID) {
		return domain.WrapError(domain.ErrConcurrentProcessing, "process document",
			fmt.Errorf("document %s", documentID))
	}
	defer uc.release(documentID)
	start := time.Now()

	doc, err := uc.deps.Repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	if err := uc.markProcessing(ctx, doc); err != nil {
		return err
	}

	if err := uc.runPipeline(ctx, doc); err != nil {
		uc.observeProcessing("failed", time.Since(start))
		uc.stats.RecordFailure()
		if failErr := uc.markFailed(ctx, doc, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markCompleted(ctx, doc); err != nil {
		return err
	}
	uc.observeProcessing("completed", time.Since(start))
	uc.stats.RecordSuccess(doc.OCRConfidence)
	return nil
}

func (uc *ProcessDocumentUseCase) runPipeline(ctx context.Context, doc *domain.Document) error {
	blob, err := uc.deps.Blobs.Get(ctx, doc.StoragePath, doc.StorageVersion)
	if err != nil {
		return fmt.Errorf("open stored document: %w", err)
	}
	data, err := io.ReadAll(blob)
	blob.Close()
	if err != nil {
		return fmt.Errorf("read stored document: %w", err)
	}

	ocrResult, pageImage, err := uc.recognizeText(ctx, doc, data)
	if err != nil {
		return err
	}
	doc.OCRConfidence = ocrResult.Confidence
	doc.MergeMetadata(map[string]any{
		"ocr_confidence": ocrResult.Confidence,
		"ocr_word_count": ocrResult.WordCount,
		"ocr_attempts":   ocrResult.Attempts,
		"ocr_source":     ocrResult.Source,
	}, uc.cfg.Actor)

	if err := ctx.Err(); err != nil {
		return err
	}

	classification, err := uc.classifyDocument(ctx, pageImage, ocrResult)
	// A rejection still carries the candidate scores; keep them on the
	// document so a reviewer can see what the ensemble almost decided.
	if classification.Type != "" {
		uc.mergeClassification(doc, classification)
	}
	if err != nil {
		return fmt.Errorf("classify document: %w", err)
	}
	doc.Type = classification.Type
	uc.observeConfidence(classification.Type, ocrResult.Confidence, classification.Confidence)

	if err := ctx.Err(); err != nil {
		return err
	}

	fields := uc.deps.Extractor.Extract(ocrResult.Text, doc.Type, ocrResult.Confidence)
	report := uc.deps.Extractor.Validate(fields, doc.Type, ocrResult.Confidence)
	doc.ValidationResults = validationResultsMap(report)
	if !report.Valid {
		return domain.WrapError(domain.ErrFieldValidation, "validate fields",
			errors.New(joinFailures(report.Failures)))
	}

	if enriched := uc.deps.Extractor.Enrich(ocrResult.Text, doc.Type, fields); len(enriched) > 0 {
		doc.MergeMetadata(enriched, uc.cfg.Actor)
	}

	return uc.sanitizeFields(ctx, doc, fields)
}

// recognizeText produces the document text: born-digital PDFs give up their
// text layer directly, everything else is decoded, normalized and OCRed.
// The returned image is nil on the PDF path.
func (uc *ProcessDocumentUseCase) recognizeText(ctx context.Context, doc *domain.Document, data []byte) (domain.OCRResult, *image.Gray, error) {
	if isPDF(doc) {
		text, err := uc.deps.PDFText.ExtractTextLayer(ctx, bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return domain.OCRResult{}, nil, fmt.Errorf("extract pdf text layer: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			return domain.OCRResult{}, nil, domain.WrapError(domain.ErrInvalidInput,
				"extract pdf text layer", errors.New("pdf has no text layer"))
		}
		return domain.OCRResult{
			Text:       text,
			Confidence: uc.cfg.PDFTextConfidence,
			WordCount:  len(strings.Fields(text)),
			Attempts:   1,
			Source:     "pdf-text-layer",
		}, nil, nil
	}

	img, _, err := uc.deps.Normalizer.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.OCRResult{}, nil, fmt.Errorf("decode page image: %w", err)
	}
	normalized, err := uc.deps.Normalizer.Normalize(ctx, img)
	if err != nil {
		return domain.OCRResult{}, nil, fmt.Errorf("normalize page image: %w", err)
	}

	ocrCtx, cancel := context.WithTimeout(ctx, uc.cfg.OCRTimeout)
	defer cancel()
	result, err := uc.deps.Recognizer.ExtractText(ocrCtx, normalized, uc.cfg.OCRLanguage)
	if err != nil {
		return domain.OCRResult{}, nil, fmt.Errorf("recognize text: %w", err)
	}
	return result, normalized, nil
}

func (uc *ProcessDocumentUseCase) classifyDocument(ctx context.Context, pageImage *image.Gray, text domain.OCRResult) (domain.ClassificationResult, error) {
	classifyCtx, cancel := context.WithTimeout(ctx, uc.cfg.ClassifyTimeout)
	defer cancel()
	return uc.deps.Classifier.Classify(classifyCtx, pageImage, text)
}

func (uc *ProcessDocumentUseCase) mergeClassification(doc *domain.Document, result domain.ClassificationResult) {
	values := map[string]any{
		"classified_type":     string(result.Type),
		"ensemble_confidence": result.Confidence,
		"model_confidence":    result.ModelConfidence,
		"pattern_confidence":  result.PatternConfidence,
		"secondary_used":      result.SecondaryUsed,
	}
	if result.SecondaryUsed {
		values["secondary_confidence"] = result.SecondaryConfidence
	}
	doc.MergeMetadata(values, uc.cfg.Actor)
}

// sanitizeFields encrypts sensitive values, appends the encryption audit
// entries and records the final field map on document metadata.
func (uc *ProcessDocumentUseCase) sanitizeFields(ctx context.Context, doc *domain.Document, fields map[string]domain.ExtractedField) error {
	values := make(map[string]string, len(fields))
	for name, field := range fields {
		values[name] = field.Value
	}
	sanitized, entries, err := uc.deps.Sanitizer.Sanitize(ctx, values)
	if err != nil {
		return fmt.Errorf("sanitize fields: %w", err)
	}
	for _, entry := range entries {
		doc.AppendAudit(entry)
	}

	fieldsMeta := make(map[string]any, len(fields))
	for name, field := range fields {
		fieldsMeta[name] = map[string]any{
			"value":        sanitized[name],
			"confidence":   field.Confidence,
			"validated":    field.Validated,
			"alternatives": len(field.Alternatives),
		}
	}
	doc.MergeMetadata(map[string]any{"fields": fieldsMeta}, uc.cfg.Actor)
	return nil
}

func (uc *ProcessDocumentUseCase) markProcessing(ctx context.Context, doc *domain.Document) error {
	reason := ""
	if doc.Status == domain.StatusFailed {
		reason = "retry"
	}
	old := doc.Status
	if err := doc.TransitionTo(domain.StatusProcessing, reason, uc.cfg.Actor); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}
	if err := uc.deps.Repo.Update(ctx, doc); err != nil {
		return fmt.Errorf("persist processing status: %w", err)
	}
	uc.countStatus(old, domain.StatusProcessing)
	return nil
}

func (uc *ProcessDocumentUseCase) markCompleted(ctx context.Context, doc *domain.Document) error {
	old := doc.Status
	if err := doc.TransitionTo(domain.StatusCompleted, "", uc.cfg.Actor); err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}
	if err := uc.deps.Repo.Update(ctx, doc); err != nil {
		return fmt.Errorf("persist completed status: %w", err)
	}
	uc.countStatus(old, domain.StatusCompleted)

	// Completed sources move off the hot tier; losing the transition only
	// costs storage money, never the document.
	if err := uc.deps.Blobs.TransitionTier(ctx, doc.StoragePath, ports.TierWarm); err != nil {
		uc.log.Warn("blob tier transition failed", "document_id", doc.ID, "error", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, doc *domain.Document, cause error) error {
	reason := cause.Error()
	if ctx.Err() != nil {
		reason = "processing canceled"
	}
	old := doc.Status
	if err := doc.TransitionTo(domain.StatusFailed, reason, uc.cfg.Actor); err != nil {
		return err
	}
	// The failure must be persisted even when the stage context is gone.
	if err := uc.deps.Repo.Update(context.WithoutCancel(ctx), doc); err != nil {
		return fmt.Errorf("persist failed status: %w", err)
	}
	uc.countStatus(old, domain.StatusFailed)
	return nil
}

func (uc *ProcessDocumentUseCase) acquire(documentID string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, busy := uc.inFlight[documentID]; busy {
		return false
	}
	uc.inFlight[documentID] = struct{}{}
	return true
}

func (uc *ProcessDocumentUseCase) release(documentID string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	delete(uc.inFlight, documentID)
}

func (uc *ProcessDocumentUseCase) observeProcessing(status string, elapsed time.Duration) {
	if uc.deps.Metrics != nil {
		uc.deps.Metrics.ObserveProcessing(status, elapsed)
	}
}

func (uc *ProcessDocumentUseCase) observeConfidence(docType domain.DocumentType, ocrConfidence, ensembleConfidence float64) {
	if uc.deps.Metrics != nil {
		uc.deps.Metrics.ObserveConfidence(string(docType), ocrConfidence, ensembleConfidence)
	}
}

func (uc *ProcessDocumentUseCase) countStatus(from, to domain.DocumentStatus) {
	if uc.deps.Metrics != nil {
		uc.deps.Metrics.CountStatusChange(string(from), string(to))
	}
}

func isPDF(doc *domain.Document) bool {
	return doc.MimeType == "application/pdf" ||
		strings.HasSuffix(strings.ToLower(doc.Filename), ".pdf")
}

func validationResultsMap(report domain.ValidationReport) map[string]any {
	out := map[string]any{
		"valid":              report.Valid,
		"fields_validated":   report.FieldsValidated,
		"fields_failed":      report.FieldsFailed,
		"overall_confidence": report.OverallConfidence,
	}
	if len(report.Failures) > 0 {
		failures := make([]any, 0, len(report.Failures))
		for _, f := range report.Failures {
			failures = append(failures, map[string]any{"field": f.Field, "reason": f.Reason})
		}
		out["failures"] = failures
	}
	return out
}

func joinFailures(failures []domain.FieldFailure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	return strings.Join(parts, "; ")
}
