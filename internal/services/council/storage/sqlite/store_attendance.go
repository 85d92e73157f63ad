package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/opencondema/condema/internal/services/council/domain"
)

// PutAttendance upserts the single record for a (meeting, member) pair.
func (s *Store) PutAttendance(ctx context.Context, record domain.AttendanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.MeetingID) == "" {
		return domain.ErrMeetingIDRequired
	}
	if strings.TrimSpace(record.MemberID) == "" {
		return domain.ErrMemberIDRequired
	}

	var arrival any
	if record.ArrivalTime != nil {
		arrival = toMillis(*record.ArrivalTime)
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO attendance_records (meeting_id, member_id, present, arrival_time, justification, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(meeting_id, member_id) DO UPDATE SET
		   present = excluded.present,
		   arrival_time = excluded.arrival_time,
		   justification = excluded.justification,
		   recorded_at = excluded.recorded_at`,
		record.MeetingID,
		record.MemberID,
		boolToInt(record.Present),
		arrival,
		record.Justification,
		toMillis(record.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("put attendance: %w", err)
	}
	return nil
}

// GetAttendance returns the record for a (meeting, member) pair.
func (s *Store) GetAttendance(ctx context.Context, meetingID, memberID string) (domain.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AttendanceRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.AttendanceRecord{}, fmt.Errorf("storage is not configured")
	}
	meetingID = strings.TrimSpace(meetingID)
	memberID = strings.TrimSpace(memberID)
	if meetingID == "" {
		return domain.AttendanceRecord{}, domain.ErrMeetingIDRequired
	}
	if memberID == "" {
		return domain.AttendanceRecord{}, domain.ErrMemberIDRequired
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT meeting_id, member_id, present, arrival_time, justification, recorded_at
		 FROM attendance_records
		 WHERE meeting_id = ? AND member_id = ?`,
		meetingID,
		memberID,
	)

	var record domain.AttendanceRecord
	var present int64
	var arrival sql.NullInt64
	var recordedAt int64
	err := row.Scan(
		&record.MeetingID,
		&record.MemberID,
		&present,
		&arrival,
		&record.Justification,
		&recordedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AttendanceRecord{}, domain.ErrNotFound
		}
		return domain.AttendanceRecord{}, fmt.Errorf("get attendance: %w", err)
	}
	record.Present = present != 0
	if arrival.Valid {
		at := fromMillis(arrival.Int64)
		record.ArrivalTime = &at
	}
	record.RecordedAt = fromMillis(recordedAt)
	return record, nil
}

// CountPresentTitulars counts active titulars marked present at the meeting.
func (s *Store) CountPresentTitulars(ctx context.Context, meetingID string) (int, error) {
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

	var count int
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*)
		 FROM attendance_records a
		 JOIN members m ON m.id = a.member_id
		 WHERE a.meeting_id = ? AND a.present = 1
		   AND m.status = 'active' AND m.seat_type = 'titular'`,
		meetingID,
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count present titulars: %w", err)
	}
	return count, nil
}

// AppendAlert appends one escalation record. Alerts are never mutated.
func (s *Store) AppendAlert(ctx context.Context, alert domain.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(alert.ID) == "" {
		return fmt.Errorf("alert id is required")
	}
	if strings.TrimSpace(alert.MemberID) == "" {
		return domain.ErrMemberIDRequired
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO alerts (id, member_id, kind, severity, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.MemberID,
		string(alert.Kind),
		string(alert.Severity),
		alert.Message,
		toMillis(alert.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append alert: %w", err)
	}
	return nil
}

// ListAlertsByMember returns a member's alerts newest first.
func (s *Store) ListAlertsByMember(ctx context.Context, memberID string) ([]domain.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, domain.ErrMemberIDRequired
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, member_id, kind, severity, message, created_at
		 FROM alerts
		 WHERE member_id = ?
		 ORDER BY created_at DESC, id DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var alert domain.Alert
		var createdAt int64
		if err := rows.Scan(
			&alert.ID,
			&alert.MemberID,
			&alert.Kind,
			&alert.Severity,
			&alert.Message,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("list alerts: %w", err)
		}
		alert.CreatedAt = fromMillis(createdAt)
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}
