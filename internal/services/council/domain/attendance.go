package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opencondema/condema/internal/platform/id"
	"github.com/opencondema/condema/internal/services/council/audit"
)

var (
	// ErrNotFound indicates a requested record is missing from the store.
	ErrNotFound = errors.New("record not found")
	// ErrLedgerStoreNotConfigured indicates the ledger is missing persistence wiring.
	ErrLedgerStoreNotConfigured = errors.New("attendance store is not configured")
	// ErrMeetingIDRequired indicates a meeting ID is required.
	ErrMeetingIDRequired = errors.New("meeting id is required")
	// ErrMemberIDRequired indicates a member ID is required.
	ErrMemberIDRequired = errors.New("member id is required")
)

// heldMeetingScanDepth is how many recent held meetings the trailing-absence
// recomputation inspects.
const heldMeetingScanDepth = 3

// AttendanceRecord is one member's attendance for one meeting. One record
// exists per (meeting, member) pair; repeated marks overwrite it.
type AttendanceRecord struct {
	MeetingID     string
	MemberID      string
	Present       bool
	ArrivalTime   *time.Time
	Justification string
	RecordedAt    time.Time
}

// LedgerStore is the persistence boundary for attendance bookkeeping.
type LedgerStore interface {
	GetMeeting(ctx context.Context, meetingID string) (Meeting, error)
	GetMember(ctx context.Context, memberID string) (Member, error)
	GetAttendance(ctx context.Context, meetingID, memberID string) (AttendanceRecord, error)
	PutAttendance(ctx context.Context, record AttendanceRecord) error
	ListRecentHeldMeetings(ctx context.Context, limit int) ([]Meeting, error)
	UpdateMemberAbsenceCounters(ctx context.Context, memberID string, consecutive, total int) error
	CountActiveTitulars(ctx context.Context) (int, error)
	CountPresentTitulars(ctx context.Context, meetingID string) (int, error)
	AppendAlert(ctx context.Context, alert Alert) error
}

// Ledger tracks per-meeting attendance and escalates consecutive absences.
type Ledger struct {
	store LedgerStore
	audit *audit.Logger
	clock func() time.Time
	newID func() (string, error)
}

// NewLedger constructs the attendance ledger use-cases.
func NewLedger(store LedgerStore, auditLog *audit.Logger, clock func() time.Time, newID func() (string, error)) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Ledger{store: store, audit: auditLog, clock: clock, newID: newID}
}

// MarkPresent upserts a presence record and resets the member's
// consecutive-absence counter.
func (l *Ledger) MarkPresent(ctx context.Context, meetingID, memberID string, arrivalTime time.Time) (AttendanceRecord, error) {
	meeting, member, err := l.loadPair(ctx, meetingID, memberID)
	if err != nil {
		return AttendanceRecord{}, err
	}
	if !meeting.AcceptsAttendance() {
		return AttendanceRecord{}, ErrMeetingNotOpen
	}

	arrival := arrivalTime.UTC()
	record := AttendanceRecord{
		MeetingID:   meeting.ID,
		MemberID:    member.ID,
		Present:     true,
		ArrivalTime: &arrival,
		RecordedAt:  l.nowUTC(),
	}
	if err := l.store.PutAttendance(ctx, record); err != nil {
		return AttendanceRecord{}, fmt.Errorf("put attendance record: %w", err)
	}
	if err := l.updateCounters(ctx, member.ID, 0, member.TotalAbsences); err != nil {
		return AttendanceRecord{}, err
	}

	l.audit.Record(ctx, "attendance.mark_present", "meeting", meeting.ID, "member="+member.ID)
	return record, nil
}

// MarkAbsent upserts an absence record, recomputes the member's trailing
// absence count over recent held meetings, and escalates per the alert
// policy. The attendance write and the counter update form one logical
// operation; the counter leg is retried once before an error surfaces.
func (l *Ledger) MarkAbsent(ctx context.Context, meetingID, memberID, justification string) (AttendanceRecord, error) {
	meeting, member, err := l.loadPair(ctx, meetingID, memberID)
	if err != nil {
		return AttendanceRecord{}, err
	}
	if !meeting.AcceptsAttendance() {
		return AttendanceRecord{}, ErrMeetingNotOpen
	}

	alreadyAbsent := false
	if prior, priorErr := l.store.GetAttendance(ctx, meeting.ID, member.ID); priorErr == nil {
		alreadyAbsent = !prior.Present
	} else if !errors.Is(priorErr, ErrNotFound) {
		return AttendanceRecord{}, fmt.Errorf("load prior attendance: %w", priorErr)
	}

	record := AttendanceRecord{
		MeetingID:     meeting.ID,
		MemberID:      member.ID,
		Present:       false,
		Justification: strings.TrimSpace(justification),
		RecordedAt:    l.nowUTC(),
	}
	if err := l.store.PutAttendance(ctx, record); err != nil {
		return AttendanceRecord{}, fmt.Errorf("put attendance record: %w", err)
	}

	consecutive, err := l.trailingAbsences(ctx, member.ID)
	if err != nil {
		return AttendanceRecord{}, err
	}
	total := member.TotalAbsences
	if !alreadyAbsent {
		total++
	}
	if err := l.updateCounters(ctx, member.ID, consecutive, total); err != nil {
		return AttendanceRecord{}, err
	}

	if kind, severity, message, ok := absenceAlertPayload(member, consecutive); ok {
		alertID, idErr := l.newID()
		if idErr != nil {
			return AttendanceRecord{}, fmt.Errorf("new alert id: %w", idErr)
		}
		alert := Alert{
			ID:        alertID,
			MemberID:  member.ID,
			Kind:      kind,
			Severity:  severity,
			Message:   message,
			CreatedAt: l.nowUTC(),
		}
		if err := l.store.AppendAlert(ctx, alert); err != nil {
			return AttendanceRecord{}, fmt.Errorf("append absence alert: %w", err)
		}
	}

	l.audit.Record(ctx, "attendance.mark_absent", "meeting", meeting.ID, "member="+member.ID)
	return record, nil
}

// QuorumStatus joins the active titular roster with the meeting's presence
// records and delegates to the quorum computation.
func (l *Ledger) QuorumStatus(ctx context.Context, meetingID string) (QuorumStatus, error) {
	if l == nil || l.store == nil {
		return QuorumStatus{}, ErrLedgerStoreNotConfigured
	}
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return QuorumStatus{}, ErrMeetingIDRequired
	}
	if _, err := l.store.GetMeeting(ctx, meetingID); err != nil {
		return QuorumStatus{}, fmt.Errorf("load meeting: %w", err)
	}

	activeTitulars, err := l.store.CountActiveTitulars(ctx)
	if err != nil {
		return QuorumStatus{}, fmt.Errorf("count active titulars: %w", err)
	}
	present, err := l.store.CountPresentTitulars(ctx, meetingID)
	if err != nil {
		return QuorumStatus{}, fmt.Errorf("count present titulars: %w", err)
	}
	return ComputeQuorum(activeTitulars, present), nil
}

func (l *Ledger) loadPair(ctx context.Context, meetingID, memberID string) (Meeting, Member, error) {
	if l == nil || l.store == nil {
		return Meeting{}, Member{}, ErrLedgerStoreNotConfigured
	}
	meetingID = strings.TrimSpace(meetingID)
	memberID = strings.TrimSpace(memberID)
	if meetingID == "" {
		return Meeting{}, Member{}, ErrMeetingIDRequired
	}
	if memberID == "" {
		return Meeting{}, Member{}, ErrMemberIDRequired
	}

	meeting, err := l.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return Meeting{}, Member{}, fmt.Errorf("load meeting: %w", err)
	}
	member, err := l.store.GetMember(ctx, memberID)
	if err != nil {
		return Meeting{}, Member{}, fmt.Errorf("load member: %w", err)
	}
	return meeting, member, nil
}

// trailingAbsences counts consecutive recorded absences over the most
// recent held meetings, newest first. A presence record or a missing
// record ends the run. The stored member counter is only a cache of this
// scan.
func (l *Ledger) trailingAbsences(ctx context.Context, memberID string) (int, error) {
	meetings, err := l.store.ListRecentHeldMeetings(ctx, heldMeetingScanDepth)
	if err != nil {
		return 0, fmt.Errorf("list recent held meetings: %w", err)
	}

	count := 0
	for _, meeting := range meetings {
		record, err := l.store.GetAttendance(ctx, meeting.ID, memberID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				break
			}
			return 0, fmt.Errorf("load attendance for meeting %s: %w", meeting.ID, err)
		}
		if record.Present {
			break
		}
		count++
	}
	return count, nil
}

// updateCounters writes the absence counters, retrying once so a transient
// store failure does not leave the attendance record and the cached counter
// out of step.
func (l *Ledger) updateCounters(ctx context.Context, memberID string, consecutive, total int) error {
	if err := l.store.UpdateMemberAbsenceCounters(ctx, memberID, consecutive, total); err != nil {
		if retryErr := l.store.UpdateMemberAbsenceCounters(ctx, memberID, consecutive, total); retryErr != nil {
			return fmt.Errorf("update absence counters for member %s: %w", memberID, retryErr)
		}
	}
	return nil
}

func (l *Ledger) nowUTC() time.Time {
	if l.clock == nil {
		return time.Now().UTC()
	}
	return l.clock().UTC()
}
