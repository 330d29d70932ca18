// Package pdftext pulls the embedded text layer out of born-digital PDFs so
// the pipeline can skip rasterization and OCR for documents that already
// carry their text.
package pdftext

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

type Extractor struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{log: log}
}

// ExtractTextLayer concatenates the plain text of every page. Damaged pages
// are skipped rather than failing the document; an empty result means the
// file carries no usable text layer and the caller decides what that means.
func (e *Extractor) ExtractTextLayer(ctx context.Context, r io.ReaderAt, size int64) (text string, err error) {
	// The pdf parser panics on some malformed files instead of returning
	// an error, so the whole walk runs under a recover.
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("parse pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			e.log.Warn("pdf page text extraction failed", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		builder.WriteString(pageText)
		builder.WriteString("\n")
	}
	return strings.TrimSpace(builder.String()), nil
}
