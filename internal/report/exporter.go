package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fundingstack/docintake/internal/core/domain"
	"github.com/fundingstack/docintake/internal/core/ports"
)

const (
	sheetSummary   = "Summary"
	sheetDocuments = "Documents"
	sheetFailures  = "Failures"

	timeLayout = time.RFC3339
)

// Summary aggregates the exported window. MeanOCRConfidence covers
// completed documents only.
type Summary struct {
	Total             int
	Completed         int
	Failed            int
	ByStatus          map[domain.DocumentStatus]int
	ByType            map[domain.DocumentType]int
	MeanOCRConfidence float64
}

// Exporter writes an operations workbook: one summary sheet, one row per
// document, and one row per failure with the fields that caused it.
type Exporter struct {
	repo ports.DocumentRepository
	log  *slog.Logger
}

func NewExporter(repo ports.DocumentRepository, log *slog.Logger) *Exporter {
	if log == nil {
		log = slog.Default()
	}
	return &Exporter{repo: repo, log: log}
}

// Export writes the workbook to path, covering documents updated at or
// after since, newest first, capped at limit rows.
func (e *Exporter) Export(ctx context.Context, path string, since time.Time, limit int) (Summary, error) {
	docs, err := e.repo.ListUpdatedSince(ctx, since, limit)
	if err != nil {
		return Summary{}, fmt.Errorf("list documents: %w", err)
	}
	summary := summarize(docs)

	f := excelize.NewFile()
	defer f.Close()

	// The workbook opens with a single default sheet; rename it so the
	// summary comes first.
	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return Summary{}, fmt.Errorf("name summary sheet: %w", err)
	}
	if err := e.writeSummary(f, summary, since); err != nil {
		return Summary{}, err
	}
	if err := e.writeDocuments(f, docs); err != nil {
		return Summary{}, err
	}
	if err := e.writeFailures(f, docs); err != nil {
		return Summary{}, err
	}

	if err := f.SaveAs(path); err != nil {
		return Summary{}, fmt.Errorf("save workbook: %w", err)
	}
	e.log.Info("report written", "path", path, "documents", summary.Total, "failed", summary.Failed)
	return summary, nil
}

func (e *Exporter) writeSummary(f *excelize.File, summary Summary, since time.Time) error {
	rows := [][]any{
		{"Window start", since.UTC().Format(timeLayout)},
		{"Generated at", time.Now().UTC().Format(timeLayout)},
		{"Total documents", summary.Total},
		{"Completed", summary.Completed},
		{"Failed", summary.Failed},
		{"Mean OCR confidence (completed)", summary.MeanOCRConfidence},
		{},
		{"Status", "Count"},
	}
	for _, status := range sortedStatusKeys(summary.ByStatus) {
		rows = append(rows, []any{string(status), summary.ByStatus[status]})
	}
	rows = append(rows, []any{}, []any{"Type", "Count"})
	for _, docType := range sortedTypeKeys(summary.ByType) {
		rows = append(rows, []any{string(docType), summary.ByType[docType]})
	}

	for i, row := range rows {
		if err := setRow(f, sheetSummary, i+1, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetSummary, "A", "B", 32)
}

func (e *Exporter) writeDocuments(f *excelize.File, docs []domain.Document) error {
	if _, err := f.NewSheet(sheetDocuments); err != nil {
		return fmt.Errorf("add documents sheet: %w", err)
	}
	if err := e.writeHeader(f, sheetDocuments, []any{
		"ID", "Application", "Type", "Status", "Filename",
		"OCR Confidence", "Failure Reason", "Created At", "Processed At",
	}); err != nil {
		return err
	}
	for i, doc := range docs {
		processedAt := ""
		if doc.ProcessedAt != nil {
			processedAt = doc.ProcessedAt.UTC().Format(timeLayout)
		}
		row := []any{
			doc.ID,
			doc.ApplicationID,
			string(doc.Type),
			string(doc.Status),
			doc.Filename,
			doc.OCRConfidence,
			doc.FailureReason,
			doc.CreatedAt.UTC().Format(timeLayout),
			processedAt,
		}
		if err := setRow(f, sheetDocuments, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetDocuments, "A", "I", 24)
}

func (e *Exporter) writeFailures(f *excelize.File, docs []domain.Document) error {
	if _, err := f.NewSheet(sheetFailures); err != nil {
		return fmt.Errorf("add failures sheet: %w", err)
	}
	if err := e.writeHeader(f, sheetFailures, []any{
		"ID", "Application", "Failure Reason", "Failed Fields",
	}); err != nil {
		return err
	}
	row := 2
	for _, doc := range docs {
		if doc.Status != domain.StatusFailed {
			continue
		}
		values := []any{doc.ID, doc.ApplicationID, doc.FailureReason, failedFields(doc)}
		if err := setRow(f, sheetFailures, row, values); err != nil {
			return err
		}
		row++
	}
	return f.SetColWidth(sheetFailures, "A", "D", 32)
}

func (e *Exporter) writeHeader(f *excelize.File, sheet string, header []any) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	styleID, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	return f.SetCellStyle(sheet, "A1", last, styleID)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func summarize(docs []domain.Document) Summary {
	summary := Summary{
		Total:    len(docs),
		ByStatus: make(map[domain.DocumentStatus]int),
		ByType:   make(map[domain.DocumentType]int),
	}
	confidenceSum := 0.0
	for _, doc := range docs {
		summary.ByStatus[doc.Status]++
		if doc.Type != "" {
			summary.ByType[doc.Type]++
		}
		switch doc.Status {
		case domain.StatusCompleted:
			summary.Completed++
			confidenceSum += doc.OCRConfidence
		case domain.StatusFailed:
			summary.Failed++
		}
	}
	if summary.Completed > 0 {
		summary.MeanOCRConfidence = confidenceSum / float64(summary.Completed)
	}
	return summary
}

// failedFields flattens the validation failure entries into "field: reason"
// pairs. The entries survive the JSON round trip through storage as generic
// maps, so everything is accessed by type assertion.
func failedFields(doc domain.Document) string {
	raw, ok := doc.ValidationResults["failures"].([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		field, _ := entry["field"].(string)
		reason, _ := entry["reason"].(string)
		if field == "" {
			continue
		}
		parts = append(parts, field+": "+reason)
	}
	return strings.Join(parts, "; ")
}

func sortedStatusKeys(m map[domain.DocumentStatus]int) []domain.DocumentStatus {
	keys := make([]domain.DocumentStatus, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedTypeKeys(m map[domain.DocumentType]int) []domain.DocumentType {
	keys := make([]domain.DocumentType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
