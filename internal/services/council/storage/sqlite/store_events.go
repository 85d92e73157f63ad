package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opencondema/condema/internal/services/council/domain"
)

// PutNotificationEvent upserts one queued notification.
func (s *Store) PutNotificationEvent(ctx context.Context, event domain.NotificationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("notification event id is required")
	}
	if strings.TrimSpace(event.MeetingID) == "" {
		return domain.ErrMeetingIDRequired
	}

	var claimedAt any
	if event.ClaimedAt != nil {
		claimedAt = toMillis(*event.ClaimedAt)
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO notification_events (
		   id, meeting_id, kind, channel, due_at, status,
		   recipient_count, last_error, claimed_at, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   due_at = excluded.due_at,
		   status = excluded.status,
		   recipient_count = excluded.recipient_count,
		   last_error = excluded.last_error,
		   claimed_at = excluded.claimed_at,
		   updated_at = excluded.updated_at`,
		event.ID,
		event.MeetingID,
		string(event.Kind),
		string(event.Channel),
		toMillis(event.DueAt),
		string(event.Status),
		event.RecipientCount,
		event.LastError,
		claimedAt,
		toMillis(event.CreatedAt),
		toMillis(event.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put notification event: %w", err)
	}
	return nil
}

// GetNotificationEvent returns one queued notification.
func (s *Store) GetNotificationEvent(ctx context.Context, eventID string) (domain.NotificationEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.NotificationEvent{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.NotificationEvent{}, fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return domain.NotificationEvent{}, fmt.Errorf("notification event id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, meeting_id, kind, channel, due_at, status,
		        recipient_count, last_error, claimed_at, created_at, updated_at
		 FROM notification_events WHERE id = ?`,
		eventID,
	)
	event, err := scanNotificationEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotificationEvent{}, domain.ErrNotFound
		}
		return domain.NotificationEvent{}, fmt.Errorf("get notification event: %w", err)
	}
	return event, nil
}

func scanNotificationEvent(scan func(dest ...any) error) (domain.NotificationEvent, error) {
	var event domain.NotificationEvent
	var dueAt, createdAt, updatedAt int64
	var claimedAt sql.NullInt64
	err := scan(
		&event.ID,
		&event.MeetingID,
		&event.Kind,
		&event.Channel,
		&dueAt,
		&event.Status,
		&event.RecipientCount,
		&event.LastError,
		&claimedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.NotificationEvent{}, err
	}
	event.DueAt = fromMillis(dueAt)
	if claimedAt.Valid {
		at := fromMillis(claimedAt.Int64)
		event.ClaimedAt = &at
	}
	event.CreatedAt = fromMillis(createdAt)
	event.UpdatedAt = fromMillis(updatedAt)
	return event, nil
}

// ListDueEvents returns pending events due at or before now, oldest first.
func (s *Store) ListDueEvents(ctx context.Context, now time.Time, limit int) ([]domain.NotificationEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, meeting_id, kind, channel, due_at, status,
		        recipient_count, last_error, claimed_at, created_at, updated_at
		 FROM notification_events
		 WHERE status = 'pending' AND due_at <= ?
		 ORDER BY due_at ASC, id ASC
		 LIMIT ?`,
		toMillis(now),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due events: %w", err)
	}
	defer rows.Close()

	var events []domain.NotificationEvent
	for rows.Next() {
		event, err := scanNotificationEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list due events: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list due events: %w", err)
	}
	return events, nil
}

// ClaimEvent takes the dispatch lease for one pending event. The claim is a
// single conditional UPDATE so exactly one processing pass can win it.
func (s *Store) ClaimEvent(ctx context.Context, eventID string, now time.Time, leaseTTL time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("notification event id is required")
	}

	leaseCutoff := toMillis(now.Add(-leaseTTL))
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE notification_events
		 SET claimed_at = ?
		 WHERE id = ? AND status = 'pending'
		   AND (claimed_at IS NULL OR claimed_at <= ?)`,
		toMillis(now),
		eventID,
		leaseCutoff,
	)
	if err != nil {
		return fmt.Errorf("claim event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim event: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetNotificationEvent(ctx, eventID); getErr != nil {
			return getErr
		}
		return domain.ErrEventClaimed
	}
	return nil
}

// MarkEventSent finalizes a dispatched event. The first terminal transition
// wins; a later write observes ErrEventFinalized.
func (s *Store) MarkEventSent(ctx context.Context, eventID string, at time.Time) error {
	return s.finalizeEvent(ctx, eventID, domain.EventSent, at, "")
}

// MarkEventFailed finalizes a failed dispatch with its error text.
func (s *Store) MarkEventFailed(ctx context.Context, eventID string, at time.Time, lastError string) error {
	return s.finalizeEvent(ctx, eventID, domain.EventFailed, at, lastError)
}

func (s *Store) finalizeEvent(ctx context.Context, eventID string, status domain.EventStatus, at time.Time, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("notification event id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE notification_events
		 SET status = ?, last_error = ?, claimed_at = NULL, updated_at = ?
		 WHERE id = ? AND status = 'pending'`,
		string(status),
		lastError,
		toMillis(at),
		eventID,
	)
	if err != nil {
		return fmt.Errorf("finalize event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize event: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetNotificationEvent(ctx, eventID); getErr != nil {
			return getErr
		}
		return domain.ErrEventFinalized
	}
	return nil
}

// CancelPendingEventsByMeeting transitions a meeting's still-pending events
// to cancelled. Sent and failed history is immutable.
func (s *Store) CancelPendingEventsByMeeting(ctx context.Context, meetingID string, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return 0, domain.ErrMeetingIDRequired
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE notification_events
		 SET status = 'cancelled', claimed_at = NULL, updated_at = ?
		 WHERE meeting_id = ? AND status = 'pending'`,
		toMillis(now),
		meetingID,
	)
	if err != nil {
		return 0, fmt.Errorf("cancel pending events: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel pending events: %w", err)
	}
	return int(affected), nil
}

var (
	_ domain.SchedulerStore = (*Store)(nil)
	_ domain.QueueStore     = (*Store)(nil)
)
