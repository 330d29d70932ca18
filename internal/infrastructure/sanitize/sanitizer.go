// Package sanitize protects sensitive extracted fields before they reach
// persistence. Field values whose names mark them as sensitive are replaced
// with encrypted envelopes and every replacement is recorded on the audit
// trail without ever echoing the plaintext.
package sanitize

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fundingstack/docintake/internal/core/domain"
	"github.com/fundingstack/docintake/internal/core/ports"
)

// sensitiveMarkers flag a field as sensitive when one of them appears
// anywhere in the field name, so "ssn", "micr_account_number" and
// "routing_number" are all caught.
var sensitiveMarkers = []string{"ssn", "ein", "account", "routing"}

const auditActor = "sanitizer"

// Sanitizer encrypts sensitive field values through a FieldEncryptor.
type Sanitizer struct {
	encryptor ports.FieldEncryptor
	now       func() time.Time
}

func New(encryptor ports.FieldEncryptor) *Sanitizer {
	return &Sanitizer{
		encryptor: encryptor,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Sanitize returns a copy of fields with every sensitive value encrypted,
// plus one audit entry per encrypted field. Field names are processed in
// sorted order so the audit trail is deterministic. Empty values pass
// through untouched; there is nothing to protect and nothing to audit.
func (s *Sanitizer) Sanitize(ctx context.Context, fields map[string]string) (map[string]string, []domain.AuditEntry, error) {
	out := make(map[string]string, len(fields))
	var entries []domain.AuditEntry

	for _, name := range sortedKeys(fields) {
		value := fields[name]
		if !IsSensitive(name) || value == "" {
			out[name] = value
			continue
		}

		encrypted, err := s.encryptor.Encrypt(ctx, value)
		if err != nil {
			return nil, nil, fmt.Errorf("encrypt field %q: %w", name, err)
		}
		out[name] = encrypted
		// The entry names the field but never carries the plaintext.
		entries = append(entries, domain.AuditEntry{
			Timestamp: s.now(),
			Action:    domain.AuditFieldEncrypted,
			NewValue:  name,
			Actor:     auditActor,
		})
	}
	return out, entries, nil
}

// IsSensitive reports whether a field name marks its value as sensitive.
func IsSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func sortedKeys(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for name := range fields {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}
