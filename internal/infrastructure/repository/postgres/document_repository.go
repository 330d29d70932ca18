package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fundingstack/docintake/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	application_id TEXT NOT NULL,
	doc_type TEXT,
	status TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	storage_version TEXT NOT NULL DEFAULT '',
	ocr_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	validation_results JSONB NOT NULL DEFAULT '{}'::jsonb,
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_documents_application_id ON documents(application_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(updated_at DESC);

CREATE TABLE IF NOT EXISTS document_audit (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	action TEXT NOT NULL,
	old_value JSONB,
	new_value JSONB,
	reason TEXT NOT NULL DEFAULT '',
	actor TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (document_id, seq)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	metadataJSON, validationJSON, err := marshalDocumentJSON(doc)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO documents (
	id, application_id, doc_type, status, filename, mime_type, storage_path,
	storage_version, ocr_confidence, metadata, validation_results, failure_reason,
	created_at, updated_at, processed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		doc.ID, doc.ApplicationID, nullableType(doc.Type), string(doc.Status),
		doc.Filename, doc.MimeType, doc.StoragePath, doc.StorageVersion,
		doc.OCRConfidence, metadataJSON, validationJSON, doc.FailureReason,
		doc.CreatedAt, doc.UpdatedAt, doc.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	if err := insertAuditTx(ctx, tx, doc.ID, doc.AuditLog); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, application_id, doc_type, status, filename, mime_type, storage_path,
	storage_version, ocr_confidence, metadata, validation_results, failure_reason,
	created_at, updated_at, processed_at
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, err
	}

	if err := r.loadAudit(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Update writes the mutable columns and appends audit entries that are not
// yet persisted. Audit rows are insert-only; re-saving a document with an
// already-stored prefix of its trail is a no-op for those rows.
func (r *DocumentRepository) Update(ctx context.Context, doc *domain.Document) error {
	metadataJSON, validationJSON, err := marshalDocumentJSON(doc)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
UPDATE documents SET
	doc_type = $2, status = $3, storage_version = $4, ocr_confidence = $5,
	metadata = $6, validation_results = $7, failure_reason = $8,
	updated_at = $9, processed_at = $10
WHERE id = $1
`,
		doc.ID, nullableType(doc.Type), string(doc.Status), doc.StorageVersion,
		doc.OCRConfidence, metadataJSON, validationJSON, doc.FailureReason,
		doc.UpdatedAt, doc.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document", fmt.Errorf("id %s", doc.ID))
	}

	if err := insertAuditTx(ctx, tx, doc.ID, doc.AuditLog); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update tx: %w", err)
	}
	return nil
}

// ListUpdatedSince returns documents touched at or after since, newest
// first. Audit trails are not hydrated; reporting reads columns only.
func (r *DocumentRepository) ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, application_id, doc_type, status, filename, mime_type, storage_path,
	storage_version, ocr_confidence, metadata, validation_results, failure_reason,
	created_at, updated_at, processed_at
FROM documents
WHERE updated_at >= $1
ORDER BY updated_at DESC
LIMIT $2
`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) loadAudit(ctx context.Context, doc *domain.Document) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT seq, ts, action, old_value, new_value, reason, actor
FROM document_audit
WHERE document_id = $1
ORDER BY seq
`, doc.ID)
	if err != nil {
		return fmt.Errorf("load audit trail: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.AuditEntry
		var oldRaw, newRaw []byte
		if err := rows.Scan(&entry.Seq, &entry.Timestamp, &entry.Action, &oldRaw, &newRaw, &entry.Reason, &entry.Actor); err != nil {
			return fmt.Errorf("scan audit entry: %w", err)
		}
		if len(oldRaw) > 0 {
			if err := json.Unmarshal(oldRaw, &entry.OldValue); err != nil {
				return fmt.Errorf("unmarshal audit old value: %w", err)
			}
		}
		if len(newRaw) > 0 {
			if err := json.Unmarshal(newRaw, &entry.NewValue); err != nil {
				return fmt.Errorf("unmarshal audit new value: %w", err)
			}
		}
		doc.AuditLog = append(doc.AuditLog, entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate audit trail: %w", err)
	}
	return nil
}

func insertAuditTx(ctx context.Context, tx *sql.Tx, documentID string, entries []domain.AuditEntry) error {
	for _, entry := range entries {
		oldJSON, err := marshalAuditValue(entry.OldValue)
		if err != nil {
			return err
		}
		newJSON, err := marshalAuditValue(entry.NewValue)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO document_audit (document_id, seq, ts, action, old_value, new_value, reason, actor)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (document_id, seq) DO NOTHING
`,
			documentID, entry.Seq, entry.Timestamp, entry.Action, oldJSON, newJSON, entry.Reason, entry.Actor,
		)
		if err != nil {
			return fmt.Errorf("insert audit entry %d: %w", entry.Seq, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var docType sql.NullString
	var status string
	var metadataRaw, validationRaw []byte
	var processedAt sql.NullTime

	err := row.Scan(
		&doc.ID, &doc.ApplicationID, &docType, &status, &doc.Filename, &doc.MimeType,
		&doc.StoragePath, &doc.StorageVersion, &doc.OCRConfidence,
		&metadataRaw, &validationRaw, &doc.FailureReason,
		&doc.CreatedAt, &doc.UpdatedAt, &processedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if docType.Valid {
		doc.Type = domain.DocumentType(docType.String)
	}
	if processedAt.Valid {
		t := processedAt.Time
		doc.ProcessedAt = &t
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if len(validationRaw) > 0 {
		if err := json.Unmarshal(validationRaw, &doc.ValidationResults); err != nil {
			return nil, fmt.Errorf("unmarshal validation results: %w", err)
		}
	}
	return &doc, nil
}

func marshalDocumentJSON(doc *domain.Document) (metadata, validation []byte, err error) {
	metadata, err = marshalJSONObject(doc.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal metadata: %w", err)
	}
	validation, err = marshalJSONObject(doc.ValidationResults)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal validation results: %w", err)
	}
	return metadata, validation, nil
}

func marshalJSONObject(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(m)
}

func marshalAuditValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal audit value: %w", err)
	}
	return raw, nil
}

func nullableType(t domain.DocumentType) sql.NullString {
	return sql.NullString{String: string(t), Valid: t != ""}
}
