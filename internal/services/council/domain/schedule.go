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
	// ErrSchedulerStoreNotConfigured indicates the scheduler is missing persistence wiring.
	ErrSchedulerStoreNotConfigured = errors.New("notification event store is not configured")
	// ErrMeetingNotSchedulable indicates convocations for a non-scheduled meeting.
	ErrMeetingNotSchedulable = errors.New("meeting is not in scheduled status")
	// ErrMeetingNotCancelled indicates cancellation notices for a meeting that is not cancelled.
	ErrMeetingNotCancelled = errors.New("meeting is not cancelled")
	// ErrLeadDaysNegative indicates a negative convocation lead time.
	ErrLeadDaysNegative = errors.New("lead days must not be negative")
)

// NotificationKind identifies what a queued notification announces.
type NotificationKind string

const (
	KindConvocation  NotificationKind = "convocation"
	KindReminder24h  NotificationKind = "reminder_24h"
	KindReminder2h   NotificationKind = "reminder_2h"
	KindCancellation NotificationKind = "cancellation"
)

// EventStatus tracks one queue entry's lifecycle. Transitions are monotonic:
// pending moves to exactly one of sent, failed, or cancelled, and terminal
// states are never re-applied.
type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventSent      EventStatus = "sent"
	EventFailed    EventStatus = "failed"
	EventCancelled EventStatus = "cancelled"
)

// NotificationEvent is one queued (kind, channel) notification for a meeting.
type NotificationEvent struct {
	ID             string
	MeetingID      string
	Kind           NotificationKind
	Channel        Channel
	DueAt          time.Time
	Status         EventStatus
	RecipientCount int
	LastError      string
	// ClaimedAt marks the short-lived dispatch lease taken by a queue
	// processing pass; it is not a status.
	ClaimedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChannelToggles enables outbound channels for a convocation run.
type ChannelToggles struct {
	Email    bool
	SMS      bool
	WhatsApp bool
}

// Enabled returns the toggled-on channels in dispatch order.
func (t ChannelToggles) Enabled() []Channel {
	var channels []Channel
	if t.Email {
		channels = append(channels, ChannelEmail)
	}
	if t.SMS {
		channels = append(channels, ChannelSMS)
	}
	if t.WhatsApp {
		channels = append(channels, ChannelWhatsApp)
	}
	return channels
}

// ScheduleConfig controls which notification events a meeting produces.
type ScheduleConfig struct {
	LeadDays      int
	Reminder24h   bool
	Reminder2h    bool
	Channels      ChannelToggles
	IncludeAgenda bool
}

// SchedulerStore is the persistence boundary for the notification queue's
// producing side.
type SchedulerStore interface {
	PutNotificationEvent(ctx context.Context, event NotificationEvent) error
	// CancelPendingEventsByMeeting transitions only still-pending events;
	// sent and failed history is immutable.
	CancelPendingEventsByMeeting(ctx context.Context, meetingID string, now time.Time) (int, error)
}

// Scheduler derives convocation and reminder notification events for a
// meeting and enqueues them as pending queue entries.
type Scheduler struct {
	store SchedulerStore
	audit *audit.Logger
	clock func() time.Time
	newID func() (string, error)
}

// NewScheduler constructs the convocation scheduler use-cases.
func NewScheduler(store SchedulerStore, auditLog *audit.Logger, clock func() time.Time, newID func() (string, error)) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Scheduler{store: store, audit: auditLog, clock: clock, newID: newID}
}

// Schedule computes the notification events a meeting requires and persists
// them as pending. One event exists per (kind, enabled channel) pair with at
// least one opted-in invitee; zero-recipient channels enqueue nothing.
func (s *Scheduler) Schedule(ctx context.Context, meeting Meeting, invitees []Member, cfg ScheduleConfig) ([]NotificationEvent, error) {
	if s == nil || s.store == nil {
		return nil, ErrSchedulerStoreNotConfigured
	}
	if strings.TrimSpace(meeting.ID) == "" {
		return nil, ErrMeetingIDRequired
	}
	if meeting.Status != MeetingScheduled {
		return nil, ErrMeetingNotSchedulable
	}
	if cfg.LeadDays < 0 {
		return nil, ErrLeadDaysNegative
	}

	now := s.nowUTC()
	scheduledAt := meeting.ScheduledAt.UTC()

	type slot struct {
		kind  NotificationKind
		dueAt time.Time
	}
	slots := make([]slot, 0, 3)

	// A late-scheduled meeting still gets its convocation; the due time
	// collapses to now instead of being skipped.
	convocationDue := scheduledAt.AddDate(0, 0, -cfg.LeadDays)
	if convocationDue.Before(now) {
		convocationDue = now
	}
	slots = append(slots, slot{kind: KindConvocation, dueAt: convocationDue})

	if cfg.Reminder24h {
		if due := scheduledAt.Add(-24 * time.Hour); due.After(now) {
			slots = append(slots, slot{kind: KindReminder24h, dueAt: due})
		}
	}
	if cfg.Reminder2h {
		if due := scheduledAt.Add(-2 * time.Hour); due.After(now) {
			slots = append(slots, slot{kind: KindReminder2h, dueAt: due})
		}
	}

	events := make([]NotificationEvent, 0, len(slots)*3)
	for _, entry := range slots {
		for _, channel := range cfg.Channels.Enabled() {
			recipientCount := countOptedIn(invitees, channel)
			if recipientCount == 0 {
				continue
			}
			eventID, err := s.newID()
			if err != nil {
				return nil, fmt.Errorf("new notification event id: %w", err)
			}
			event := NotificationEvent{
				ID:             eventID,
				MeetingID:      meeting.ID,
				Kind:           entry.kind,
				Channel:        channel,
				DueAt:          entry.dueAt,
				Status:         EventPending,
				RecipientCount: recipientCount,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := s.store.PutNotificationEvent(ctx, event); err != nil {
				return nil, fmt.Errorf("put %s event: %w", entry.kind, err)
			}
			events = append(events, event)
		}
	}

	s.audit.Record(ctx, "notifications.schedule", "meeting", meeting.ID, fmt.Sprintf("events=%d", len(events)))
	return events, nil
}

// Cancel transitions all still-pending events for the meeting to cancelled.
// Sent and failed events are untouched.
func (s *Scheduler) Cancel(ctx context.Context, meetingID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrSchedulerStoreNotConfigured
	}
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return 0, ErrMeetingIDRequired
	}

	cancelled, err := s.store.CancelPendingEventsByMeeting(ctx, meetingID, s.nowUTC())
	if err != nil {
		return 0, fmt.Errorf("cancel pending events: %w", err)
	}
	s.audit.Record(ctx, "notifications.cancel", "meeting", meetingID, fmt.Sprintf("cancelled=%d", cancelled))
	return cancelled, nil
}

// ScheduleCancellation supersedes a cancelled meeting's pending queue: it
// cancels still-pending events and enqueues immediate cancellation notices
// on every enabled channel with opted-in invitees.
func (s *Scheduler) ScheduleCancellation(ctx context.Context, meeting Meeting, invitees []Member, cfg ScheduleConfig) ([]NotificationEvent, error) {
	if s == nil || s.store == nil {
		return nil, ErrSchedulerStoreNotConfigured
	}
	if strings.TrimSpace(meeting.ID) == "" {
		return nil, ErrMeetingIDRequired
	}
	if meeting.Status != MeetingCancelled {
		return nil, ErrMeetingNotCancelled
	}

	if _, err := s.Cancel(ctx, meeting.ID); err != nil {
		return nil, err
	}

	now := s.nowUTC()
	events := make([]NotificationEvent, 0, 3)
	for _, channel := range cfg.Channels.Enabled() {
		recipientCount := countOptedIn(invitees, channel)
		if recipientCount == 0 {
			continue
		}
		eventID, err := s.newID()
		if err != nil {
			return nil, fmt.Errorf("new notification event id: %w", err)
		}
		event := NotificationEvent{
			ID:             eventID,
			MeetingID:      meeting.ID,
			Kind:           KindCancellation,
			Channel:        channel,
			DueAt:          now,
			Status:         EventPending,
			RecipientCount: recipientCount,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.store.PutNotificationEvent(ctx, event); err != nil {
			return nil, fmt.Errorf("put cancellation event: %w", err)
		}
		events = append(events, event)
	}

	s.audit.Record(ctx, "notifications.schedule_cancellation", "meeting", meeting.ID, fmt.Sprintf("events=%d", len(events)))
	return events, nil
}

func countOptedIn(invitees []Member, channel Channel) int {
	count := 0
	for _, invitee := range invitees {
		if invitee.OptedIn(channel) {
			count++
		}
	}
	return count
}

func (s *Scheduler) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
