package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fundingstack/docintake/internal/core/domain"
	"github.com/fundingstack/docintake/internal/core/ports"
)

const actorAPI = "api"

// IngestDocumentUseCase accepts uploads: it stores the source bytes, records
// the document as PENDING and hands the ID to the worker queue.
type IngestDocumentUseCase struct {
	repo  ports.DocumentRepository
	blobs ports.BlobStore
	queue ports.MessageQueue
	log   *slog.Logger
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	blobs ports.BlobStore,
	queue ports.MessageQueue,
	log *slog.Logger,
) *IngestDocumentUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &IngestDocumentUseCase{
		repo:  repo,
		blobs: blobs,
		queue: queue,
		log:   log,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	applicationID, filename, mimeType, typeHint string,
	body io.Reader,
) (*domain.Document, error) {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			errors.New("application id is required"))
	}

	// A hint is provisional: classification overwrites it, but an invalid
	// one is rejected before any bytes are stored.
	var hinted domain.DocumentType
	if strings.TrimSpace(typeHint) != "" {
		parsed, err := domain.ParseDocumentType(typeHint)
		if err != nil {
			return nil, err
		}
		hinted = parsed
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	version, err := uc.blobs.Put(ctx, storageKey, body, map[string]string{
		"application_id": applicationID,
		"filename":       filename,
		"mime_type":      mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("store source document: %w", err)
	}

	doc := &domain.Document{
		ID:             id,
		ApplicationID:  applicationID,
		Type:           hinted,
		Status:         domain.StatusPending,
		Filename:       filename,
		MimeType:       mimeType,
		StoragePath:    storageKey,
		StorageVersion: version,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if hinted != "" {
		doc.Metadata = map[string]any{"type_hint": string(hinted)}
	}
	doc.AppendAudit(domain.AuditEntry{
		Timestamp: now,
		Action:    domain.AuditStatusUpdate,
		NewValue:  string(domain.StatusPending),
		Reason:    "uploaded",
		Actor:     actorAPI,
	})

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	if err := uc.queue.PublishDocumentReceived(ctx, doc.ID); err != nil {
		uc.failUnpublished(ctx, doc, err)
		return nil, fmt.Errorf("publish document received: %w", err)
	}

	return doc, nil
}

// Retry puts an existing document back on the queue. The status check is the
// same gate the worker applies, so documents already completed or currently
// processing are rejected here instead of failing later.
func (uc *IngestDocumentUseCase) Retry(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.CanTransitionTo(domain.StatusProcessing) {
		return nil, domain.WrapError(domain.ErrIllegalTransition, "retry document",
			fmt.Errorf("document %s is %s", documentID, doc.Status))
	}
	if err := uc.queue.PublishDocumentReceived(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish document received: %w", err)
	}
	return doc, nil
}

// failUnpublished marks a stored document FAILED when its queue event never
// made it out, so it is visible for retry instead of sitting PENDING forever.
func (uc *IngestDocumentUseCase) failUnpublished(ctx context.Context, doc *domain.Document, cause error) {
	reason := fmt.Sprintf("queue publish failed: %v", cause)
	if err := doc.TransitionTo(domain.StatusFailed, reason, actorAPI); err != nil {
		uc.log.Error("mark unpublished document failed", "document_id", doc.ID, "error", err)
		return
	}
	if err := uc.repo.Update(ctx, doc); err != nil {
		uc.log.Error("persist unpublished document failure", "document_id", doc.ID, "error", err)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	// filepath.Base turns empty and slash-only names into "." or "/".
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "document.bin"
	}
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
