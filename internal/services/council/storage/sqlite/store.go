// Package sqlite provides a SQLite-backed council storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencondema/condema/internal/platform/storage/sqlitemigrate"
	"github.com/opencondema/condema/internal/services/council/audit"
	"github.com/opencondema/condema/internal/services/council/domain"
	"github.com/opencondema/condema/internal/services/council/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists council state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

// Open opens a SQLite council store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutMember upserts one councillor enrollment.
func (s *Store) PutMember(ctx context.Context, member domain.Member) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(member.ID) == "" {
		return fmt.Errorf("member id is required")
	}
	if err := member.Validate(); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO members (
		   id, name, segment, seat_type, status, email, phone,
		   email_opt_in, sms_opt_in, whatsapp_opt_in,
		   mandate_start, mandate_end,
		   consecutive_absences, total_absences,
		   created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   segment = excluded.segment,
		   seat_type = excluded.seat_type,
		   status = excluded.status,
		   email = excluded.email,
		   phone = excluded.phone,
		   email_opt_in = excluded.email_opt_in,
		   sms_opt_in = excluded.sms_opt_in,
		   whatsapp_opt_in = excluded.whatsapp_opt_in,
		   mandate_start = excluded.mandate_start,
		   mandate_end = excluded.mandate_end,
		   updated_at = excluded.updated_at`,
		member.ID,
		member.Name,
		string(member.Segment),
		string(member.SeatType),
		string(member.Status),
		member.Email,
		member.Phone,
		boolToInt(member.EmailOptIn),
		boolToInt(member.SMSOptIn),
		boolToInt(member.WhatsAppOptIn),
		toMillis(member.MandateStart),
		toMillis(member.MandateEnd),
		member.ConsecutiveAbsences,
		member.TotalAbsences,
		toMillis(member.CreatedAt),
		toMillis(member.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put member: %w", err)
	}
	return nil
}

const memberColumns = `id, name, segment, seat_type, status, email, phone,
	email_opt_in, sms_opt_in, whatsapp_opt_in,
	mandate_start, mandate_end,
	consecutive_absences, total_absences,
	created_at, updated_at`

func scanMember(scan func(dest ...any) error) (domain.Member, error) {
	var member domain.Member
	var emailOptIn, smsOptIn, whatsappOptIn int64
	var mandateStart, mandateEnd, createdAt, updatedAt int64
	err := scan(
		&member.ID,
		&member.Name,
		&member.Segment,
		&member.SeatType,
		&member.Status,
		&member.Email,
		&member.Phone,
		&emailOptIn,
		&smsOptIn,
		&whatsappOptIn,
		&mandateStart,
		&mandateEnd,
		&member.ConsecutiveAbsences,
		&member.TotalAbsences,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Member{}, err
	}
	member.EmailOptIn = emailOptIn != 0
	member.SMSOptIn = smsOptIn != 0
	member.WhatsAppOptIn = whatsappOptIn != 0
	member.MandateStart = fromMillis(mandateStart)
	member.MandateEnd = fromMillis(mandateEnd)
	member.CreatedAt = fromMillis(createdAt)
	member.UpdatedAt = fromMillis(updatedAt)
	return member, nil
}

// GetMember returns one councillor enrollment.
func (s *Store) GetMember(ctx context.Context, memberID string) (domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return domain.Member{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Member{}, fmt.Errorf("storage is not configured")
	}
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return domain.Member{}, domain.ErrMemberIDRequired
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ?`,
		memberID,
	)
	member, err := scanMember(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Member{}, domain.ErrNotFound
		}
		return domain.Member{}, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}

// ListMembers returns the full roster ordered by name.
func (s *Store) ListMembers(ctx context.Context) ([]domain.Member, error) {
	return s.listMembers(ctx, `SELECT `+memberColumns+` FROM members ORDER BY name ASC, id ASC`)
}

// ListActiveMembers returns active councillors ordered by name.
func (s *Store) ListActiveMembers(ctx context.Context) ([]domain.Member, error) {
	return s.listMembers(ctx, `SELECT `+memberColumns+` FROM members WHERE status = 'active' ORDER BY name ASC, id ASC`)
}

func (s *Store) listMembers(ctx context.Context, query string) ([]domain.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		member, err := scanMember(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// UpdateMemberAbsenceCounters overwrites the cached absence counters.
func (s *Store) UpdateMemberAbsenceCounters(ctx context.Context, memberID string, consecutive, total int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return domain.ErrMemberIDRequired
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE members SET consecutive_absences = ?, total_absences = ? WHERE id = ?`,
		consecutive,
		total,
		memberID,
	)
	if err != nil {
		return fmt.Errorf("update absence counters: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update absence counters: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountActiveTitulars returns the quorum base size.
func (s *Store) CountActiveTitulars(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var count int
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM members WHERE status = 'active' AND seat_type = 'titular'`,
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count active titulars: %w", err)
	}
	return count, nil
}

// PutMeeting upserts one council session.
func (s *Store) PutMeeting(ctx context.Context, meeting domain.Meeting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(meeting.ID) == "" {
		return domain.ErrMeetingIDRequired
	}
	if !meeting.Type.Valid() {
		return domain.ErrInvalidMeetingType
	}
	if !meeting.Status.Valid() {
		return domain.ErrInvalidMeetingStatus
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO meetings (id, type, scheduled_at, location, agenda, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   type = excluded.type,
		   scheduled_at = excluded.scheduled_at,
		   location = excluded.location,
		   agenda = excluded.agenda,
		   status = excluded.status,
		   updated_at = excluded.updated_at`,
		meeting.ID,
		string(meeting.Type),
		toMillis(meeting.ScheduledAt),
		meeting.Location,
		meeting.Agenda,
		string(meeting.Status),
		toMillis(meeting.CreatedAt),
		toMillis(meeting.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put meeting: %w", err)
	}
	return nil
}

// GetMeeting returns one council session.
func (s *Store) GetMeeting(ctx context.Context, meetingID string) (domain.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return domain.Meeting{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Meeting{}, fmt.Errorf("storage is not configured")
	}
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return domain.Meeting{}, domain.ErrMeetingIDRequired
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, type, scheduled_at, location, agenda, status, created_at, updated_at
		 FROM meetings WHERE id = ?`,
		meetingID,
	)
	meeting, err := scanMeeting(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Meeting{}, domain.ErrNotFound
		}
		return domain.Meeting{}, fmt.Errorf("get meeting: %w", err)
	}
	return meeting, nil
}

func scanMeeting(scan func(dest ...any) error) (domain.Meeting, error) {
	var meeting domain.Meeting
	var scheduledAt, createdAt, updatedAt int64
	err := scan(
		&meeting.ID,
		&meeting.Type,
		&scheduledAt,
		&meeting.Location,
		&meeting.Agenda,
		&meeting.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Meeting{}, err
	}
	meeting.ScheduledAt = fromMillis(scheduledAt)
	meeting.CreatedAt = fromMillis(createdAt)
	meeting.UpdatedAt = fromMillis(updatedAt)
	return meeting, nil
}

// UpdateMeetingStatus applies a one-way lifecycle transition. The guard is
// enforced in the UPDATE itself so concurrent transitions cannot both win.
func (s *Store) UpdateMeetingStatus(ctx context.Context, meetingID string, next domain.MeetingStatus, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return domain.ErrMeetingIDRequired
	}
	if !domain.MeetingScheduled.CanTransitionTo(next) {
		return domain.ErrMeetingStatusTransition
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE meetings SET status = ?, updated_at = ? WHERE id = ? AND status = 'scheduled'`,
		string(next),
		toMillis(now),
		meetingID,
	)
	if err != nil {
		return fmt.Errorf("update meeting status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update meeting status: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetMeeting(ctx, meetingID); getErr != nil {
			return getErr
		}
		return domain.ErrMeetingStatusTransition
	}
	return nil
}

// ListRecentHeldMeetings returns held sessions newest first.
func (s *Store) ListRecentHeldMeetings(ctx context.Context, limit int) ([]domain.Meeting, error) {
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
		`SELECT id, type, scheduled_at, location, agenda, status, created_at, updated_at
		 FROM meetings
		 WHERE status = 'held'
		 ORDER BY scheduled_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent held meetings: %w", err)
	}
	defer rows.Close()

	var meetings []domain.Meeting
	for rows.Next() {
		meeting, err := scanMeeting(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list recent held meetings: %w", err)
		}
		meetings = append(meetings, meeting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recent held meetings: %w", err)
	}
	return meetings, nil
}

// AppendAuditEntry appends one administrative audit record.
func (s *Store) AppendAuditEntry(ctx context.Context, entry audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("audit entry id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO audit_entries (id, action, entity_type, entity_id, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Details,
		toMillis(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

var (
	_ domain.LedgerStore  = (*Store)(nil)
	_ domain.MonitorStore = (*Store)(nil)
	_ domain.Roster       = (*Store)(nil)
	_ audit.Store         = (*Store)(nil)
)
