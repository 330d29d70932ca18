package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DocumentType is the closed set of document kinds the intake pipeline accepts.
type DocumentType string

const (
	TypeBankStatement  DocumentType = "BANK_STATEMENT"
	TypeISOApplication DocumentType = "ISO_APPLICATION"
	TypeVoidedCheck    DocumentType = "VOIDED_CHECK"
)

// DocumentTypes returns the closed type set in canonical order.
func DocumentTypes() []DocumentType {
	return []DocumentType{TypeBankStatement, TypeISOApplication, TypeVoidedCheck}
}

// ParseDocumentType validates a wire value against the closed type set.
func ParseDocumentType(raw string) (DocumentType, error) {
	switch t := DocumentType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case TypeBankStatement, TypeISOApplication, TypeVoidedCheck:
		return t, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse document type", fmt.Errorf("unknown document type %q", raw))
	}
}

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "PENDING"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusCompleted  DocumentStatus = "COMPLETED"
	StatusFailed     DocumentStatus = "FAILED"
)

// Actions recorded on the audit trail.
const (
	AuditStatusUpdate   = "status_update"
	AuditMetadataUpdate = "metadata_update"
	AuditFieldEncrypted = "field_encrypted"
)

// AuditEntry is one immutable record on a document's trail. Entries are
// appended with a monotonically increasing Seq and never rewritten.
type AuditEntry struct {
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	OldValue  any       `json:"old_value,omitempty"`
	NewValue  any       `json:"new_value,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor"`
}

// Document is the intake aggregate. Status moves only through the legal
// transition table; ProcessedAt is set exactly when the document completes
// and FailureReason is non-empty exactly while it is failed.
type Document struct {
	ID                string         `json:"id"`
	ApplicationID     string         `json:"application_id"`
	Type              DocumentType   `json:"type,omitempty"`
	Status            DocumentStatus `json:"status"`
	Filename          string         `json:"filename"`
	MimeType          string         `json:"mime_type"`
	StoragePath       string         `json:"storage_path"`
	StorageVersion    string         `json:"storage_version,omitempty"`
	OCRConfidence     float64        `json:"ocr_confidence,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	ValidationResults map[string]any `json:"validation_results,omitempty"`
	FailureReason     string         `json:"failure_reason,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	ProcessedAt       *time.Time     `json:"processed_at,omitempty"`
	AuditLog          []AuditEntry   `json:"audit_log,omitempty"`
}

var legalTransitions = map[DocumentStatus][]DocumentStatus{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {StatusProcessing},
}

// CanTransitionTo reports whether moving to next is legal from the current status.
func (d *Document) CanTransitionTo(next DocumentStatus) bool {
	for _, allowed := range legalTransitions[d.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo applies a status change, enforcing the transition table and the
// ProcessedAt/FailureReason invariants, and appends a status_update audit entry.
func (d *Document) TransitionTo(next DocumentStatus, reason, actor string) error {
	if !d.CanTransitionTo(next) {
		return WrapError(ErrIllegalTransition, "transition document status",
			fmt.Errorf("%s -> %s", d.Status, next))
	}
	if next == StatusFailed && strings.TrimSpace(reason) == "" {
		return WrapError(ErrInvalidInput, "transition document status",
			errors.New("failed status requires a reason"))
	}

	now := time.Now().UTC()
	old := d.Status
	d.Status = next
	d.UpdatedAt = now

	switch next {
	case StatusCompleted:
		processedAt := now
		d.ProcessedAt = &processedAt
	case StatusFailed:
		d.FailureReason = reason
	case StatusProcessing:
		// A retry out of FAILED clears the stale reason.
		d.FailureReason = ""
	}

	d.appendAudit(AuditEntry{
		Timestamp: now,
		Action:    AuditStatusUpdate,
		OldValue:  string(old),
		NewValue:  string(next),
		Reason:    reason,
		Actor:     actor,
	})
	return nil
}

// MergeMetadata merges values into the document metadata (never replaces the
// map wholesale) and records old/new snapshots on the audit trail.
func (d *Document) MergeMetadata(values map[string]any, actor string) {
	if len(values) == 0 {
		return
	}
	old := cloneMetadata(d.Metadata)
	if d.Metadata == nil {
		d.Metadata = make(map[string]any, len(values))
	}
	for k, v := range values {
		d.Metadata[k] = v
	}

	now := time.Now().UTC()
	d.UpdatedAt = now
	d.appendAudit(AuditEntry{
		Timestamp: now,
		Action:    AuditMetadataUpdate,
		OldValue:  old,
		NewValue:  cloneMetadata(d.Metadata),
		Actor:     actor,
	})
}

// AppendAudit records an externally produced entry, assigning its sequence
// number. Used for field-level events such as encryption.
func (d *Document) AppendAudit(entry AuditEntry) {
	d.appendAudit(entry)
}

func (d *Document) appendAudit(entry AuditEntry) {
	entry.Seq = len(d.AuditLog) + 1
	d.AuditLog = append(d.AuditLog, entry)
}

func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
