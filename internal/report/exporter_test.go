package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fundingstack/docintake/internal/core/domain"
)

type reportRepoFake struct {
	docs  []domain.Document
	err   error
	since time.Time
	limit int
}

func (f *reportRepoFake) Create(context.Context, *domain.Document) error {
	return errors.New("not implemented")
}

func (f *reportRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	return nil, errors.New("not implemented")
}

func (f *reportRepoFake) Update(context.Context, *domain.Document) error {
	return errors.New("not implemented")
}

func (f *reportRepoFake) ListUpdatedSince(_ context.Context, since time.Time, limit int) ([]domain.Document, error) {
	f.since = since
	f.limit = limit
	return f.docs, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleDocs() []domain.Document {
	processed := time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC)
	return []domain.Document{
		{
			ID:            "doc-1",
			ApplicationID: "app-7",
			Type:          domain.TypeBankStatement,
			Status:        domain.StatusCompleted,
			Filename:      "statement.png",
			OCRConfidence: 0.95,
			CreatedAt:     time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC),
			ProcessedAt:   &processed,
		},
		{
			ID:            "doc-2",
			ApplicationID: "app-7",
			Type:          domain.TypeVoidedCheck,
			Status:        domain.StatusCompleted,
			Filename:      "check.png",
			OCRConfidence: 0.85,
			CreatedAt:     time.Date(2024, 1, 16, 9, 5, 0, 0, time.UTC),
			ProcessedAt:   &processed,
		},
		{
			ID:            "doc-3",
			ApplicationID: "app-9",
			Status:        domain.StatusFailed,
			Filename:      "blurry.png",
			FailureReason: "routing_number: missing required field",
			ValidationResults: map[string]any{
				"valid": false,
				"failures": []any{
					map[string]any{"field": "routing_number", "reason": "missing required field"},
				},
			},
			CreatedAt: time.Date(2024, 1, 16, 9, 10, 0, 0, time.UTC),
		},
	}
}

func TestExportWritesWorkbook(t *testing.T) {
	repo := &reportRepoFake{docs: sampleDocs()}
	exporter := NewExporter(repo, discardLogger())
	path := filepath.Join(t.TempDir(), "report.xlsx")
	since := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	summary, err := exporter.Export(context.Background(), path, since, 100)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if summary.Total != 3 || summary.Completed != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if math.Abs(summary.MeanOCRConfidence-0.9) > 1e-9 {
		t.Fatalf("mean confidence = %v, want 0.9", summary.MeanOCRConfidence)
	}
	if repo.limit != 100 || !repo.since.Equal(since) {
		t.Fatalf("repo queried with since=%v limit=%d", repo.since, repo.limit)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 3 || sheets[0] != sheetSummary || sheets[1] != sheetDocuments || sheets[2] != sheetFailures {
		t.Fatalf("unexpected sheets: %v", sheets)
	}

	rows, err := f.GetRows(sheetDocuments)
	if err != nil {
		t.Fatalf("read documents sheet: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("documents sheet has %d rows, want header + 3", len(rows))
	}
	if rows[1][0] != "doc-1" || rows[1][2] != "BANK_STATEMENT" || rows[1][3] != "COMPLETED" {
		t.Fatalf("unexpected first document row: %v", rows[1])
	}

	failRows, err := f.GetRows(sheetFailures)
	if err != nil {
		t.Fatalf("read failures sheet: %v", err)
	}
	if len(failRows) != 2 {
		t.Fatalf("failures sheet has %d rows, want header + 1", len(failRows))
	}
	if failRows[1][0] != "doc-3" || failRows[1][3] != "routing_number: missing required field" {
		t.Fatalf("unexpected failure row: %v", failRows[1])
	}
}

func TestExportEmptyWindow(t *testing.T) {
	repo := &reportRepoFake{}
	exporter := NewExporter(repo, discardLogger())
	path := filepath.Join(t.TempDir(), "empty.xlsx")

	summary, err := exporter.Export(context.Background(), path, time.Now().Add(-time.Hour), 50)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if summary.Total != 0 || summary.MeanOCRConfidence != 0 {
		t.Fatalf("unexpected summary for empty window: %+v", summary)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetDocuments)
	if err != nil {
		t.Fatalf("read documents sheet: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("documents sheet has %d rows, want header only", len(rows))
	}
}

func TestExportPropagatesListError(t *testing.T) {
	repo := &reportRepoFake{err: errors.New("connection refused")}
	exporter := NewExporter(repo, discardLogger())
	path := filepath.Join(t.TempDir(), "never.xlsx")

	_, err := exporter.Export(context.Background(), path, time.Now(), 10)
	if err == nil || !strings.Contains(err.Error(), "list documents") {
		t.Fatalf("expected list documents error, got %v", err)
	}
}

func TestFailedFieldsSkipsMalformedEntries(t *testing.T) {
	doc := domain.Document{
		ValidationResults: map[string]any{
			"failures": []any{
				map[string]any{"field": "micr_line", "reason": "confidence 0.40 below threshold 0.70"},
				"not a map",
				map[string]any{"reason": "missing field name"},
			},
		},
	}
	got := failedFields(doc)
	if got != "micr_line: confidence 0.40 below threshold 0.70" {
		t.Fatalf("failedFields = %q", got)
	}
}
