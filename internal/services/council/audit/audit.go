// Package audit records administrative actions as a fire-and-forget sink.
// Audit failures are logged and swallowed; they must never block or fail
// the primary operation.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/opencondema/condema/internal/platform/id"
)

// Entry is one append-only audit record.
type Entry struct {
	ID         string
	Action     string
	EntityType string
	EntityID   string
	Details    string
	CreatedAt  time.Time
}

// Store persists audit entries.
type Store interface {
	AppendAuditEntry(ctx context.Context, entry Entry) error
}

// Logger writes audit entries without surfacing failures to callers.
// A nil Logger or nil store is a no-op, so callers never guard audit calls.
type Logger struct {
	store Store
	clock func() time.Time
	newID func() (string, error)
}

// NewLogger constructs an audit logger over store.
func NewLogger(store Store, clock func() time.Time, newID func() (string, error)) *Logger {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Logger{store: store, clock: clock, newID: newID}
}

// Record appends one audit entry. Failures are logged, never returned.
func (l *Logger) Record(ctx context.Context, action, entityType, entityID, details string) {
	if l == nil || l.store == nil {
		return
	}
	entryID, err := l.newID()
	if err != nil {
		log.Printf("audit id for %s %s/%s: %v", action, entityType, entityID, err)
		return
	}
	entry := Entry{
		ID:         entryID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  l.clock().UTC(),
	}
	if err := l.store.AppendAuditEntry(ctx, entry); err != nil {
		log.Printf("audit %s %s/%s: %v", action, entityType, entityID, err)
	}
}
