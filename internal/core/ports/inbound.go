package ports

import (
	"context"
	"io"

	"github.com/fundingstack/docintake/internal/core/domain"
)

// DocumentIntake is the inbound contract for document upload orchestration.
type DocumentIntake interface {
	Upload(ctx context.Context, applicationID, filename, mimeType, typeHint string, body io.Reader) (*domain.Document, error)
	Retry(ctx context.Context, documentID string) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
