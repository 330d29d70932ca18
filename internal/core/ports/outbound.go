package ports

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/fundingstack/docintake/internal/core/domain"
)

// DocumentRepository persists and reads document state. Update writes the
// mutable columns and appends any audit entries not yet persisted; audit
// rows are insert-only.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Update(ctx context.Context, doc *domain.Document) error
	ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]domain.Document, error)
}

// StorageTier names the blob retention class.
type StorageTier string

const (
	TierHot  StorageTier = "HOT"
	TierWarm StorageTier = "WARM"
	TierCold StorageTier = "COLD"
)

// BlobStore stores source documents. Put returns an opaque version token.
type BlobStore interface {
	Put(ctx context.Context, key string, data io.Reader, metadata map[string]string) (string, error)
	Get(ctx context.Context, key, version string) (io.ReadCloser, error)
	TransitionTier(ctx context.Context, key string, tier StorageTier) error
}

// MessageQueue publishes/consumes document-received events.
type MessageQueue interface {
	PublishDocumentReceived(ctx context.Context, documentID string) error
	SubscribeDocumentReceived(ctx context.Context, handler func(context.Context, string) error) error
}

// ImageNormalizer decodes raw upload bytes and prepares the page for OCR.
// The returned image is grayscale; individual enhancement stages may be
// skipped on internal failure but validation failures are hard errors.
type ImageNormalizer interface {
	Decode(r io.Reader) (image.Image, string, error)
	Normalize(ctx context.Context, img image.Image) (*image.Gray, error)
}

// TextRecognizer runs OCR over a normalized page.
type TextRecognizer interface {
	ExtractText(ctx context.Context, img image.Image, lang string) (domain.OCRResult, error)
}

// DocumentClassifier assigns a document type with an ensemble confidence.
type DocumentClassifier interface {
	Classify(ctx context.Context, img *image.Gray, text domain.OCRResult) (domain.ClassificationResult, error)
}

// TypeModel scores the closed document type set from a feature vector.
type TypeModel interface {
	Name() string
	Scores(ctx context.Context, features []float64) (map[domain.DocumentType]float64, error)
}

// FieldExtractor recovers and validates typed fields from OCR text. Extract
// and Enrich are pure over their inputs; Validate additionally sets the
// Validated flag on entries that pass.
type FieldExtractor interface {
	Extract(text string, docType domain.DocumentType, baseConfidence float64) map[string]domain.ExtractedField
	Validate(fields map[string]domain.ExtractedField, docType domain.DocumentType, ocrConfidence float64) domain.ValidationReport
	Enrich(text string, docType domain.DocumentType, fields map[string]domain.ExtractedField) map[string]any
}

// FieldEncryptor encrypts a single field value for at-rest protection.
type FieldEncryptor interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
}

// Sanitizer encrypts sensitive fields before they reach persistence,
// returning the sanitized map plus the audit entries describing what was
// encrypted.
type Sanitizer interface {
	Sanitize(ctx context.Context, fields map[string]string) (map[string]string, []domain.AuditEntry, error)
}

// TextLayerExtractor pulls an embedded text layer out of non-image uploads
// such as born-digital PDFs.
type TextLayerExtractor interface {
	ExtractTextLayer(ctx context.Context, r io.ReaderAt, size int64) (string, error)
}

// MetricsSink receives pipeline observations. Calls are fire-and-forget;
// implementations must never block or fail document processing.
type MetricsSink interface {
	ObserveProcessing(status string, elapsed time.Duration)
	ObserveConfidence(docType string, ocrConfidence, ensembleConfidence float64)
	CountStatusChange(from, to string)
}
