package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opencondema/condema/internal/platform/timeouts"
	"github.com/opencondema/condema/internal/services/council/audit"
)

var (
	// ErrQueueStoreNotConfigured indicates the processor is missing queue wiring.
	ErrQueueStoreNotConfigured = errors.New("notification queue store is not configured")
	// ErrRosterNotConfigured indicates the processor is missing roster wiring.
	ErrRosterNotConfigured = errors.New("roster store is not configured")
	// ErrEventClaimed indicates another processing pass holds the dispatch
	// lease for this event. Losing the claim race is a no-op, not a failure.
	ErrEventClaimed = errors.New("notification event is claimed")
	// ErrEventFinalized indicates the event already reached a terminal
	// status; the first terminal transition wins and later writes are no-ops.
	ErrEventFinalized = errors.New("notification event is finalized")
)

const (
	defaultBatchLimit = 50
	defaultLeaseTTL   = 2 * time.Minute
)

// QueueStore is the persistence boundary for the notification queue's
// consuming side.
type QueueStore interface {
	ListDueEvents(ctx context.Context, now time.Time, limit int) ([]NotificationEvent, error)
	// ClaimEvent takes the dispatch lease for one pending event. It returns
	// ErrEventClaimed when the event is not pending or another pass holds an
	// unexpired lease.
	ClaimEvent(ctx context.Context, eventID string, now time.Time, leaseTTL time.Duration) error
	// MarkEventSent finalizes a dispatched event. Returns ErrEventFinalized
	// when the event already left pending (e.g. cancelled mid-dispatch).
	MarkEventSent(ctx context.Context, eventID string, at time.Time) error
	// MarkEventFailed finalizes a failed dispatch with its error text.
	MarkEventFailed(ctx context.Context, eventID string, at time.Time, lastError string) error
}

// Roster resolves the meeting and recipient set for a dispatch.
type Roster interface {
	GetMeeting(ctx context.Context, meetingID string) (Meeting, error)
	ListActiveMembers(ctx context.Context) ([]Member, error)
}

// ProcessorConfig tunes one queue processing pass.
type ProcessorConfig struct {
	BatchLimit      int
	LeaseTTL        time.Duration
	DispatchTimeout time.Duration
	// IncludeAgenda forwards the meeting agenda text in the content payload.
	IncludeAgenda bool
}

func (c ProcessorConfig) normalized() ProcessorConfig {
	if c.BatchLimit <= 0 {
		c.BatchLimit = defaultBatchLimit
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaultLeaseTTL
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = timeouts.ChannelDispatch
	}
	return c
}

// ProcessReport summarizes one queue processing pass.
type ProcessReport struct {
	// Processed counts events dispatched and finalized as sent.
	Processed int
	// Errors aggregates per-event dispatch failures; they never abort the pass.
	Errors []error
}

// Processor drains due pending notification events through the channel
// sender. Failed events are terminal: there is no automatic retry, a failed
// event is surfaced in the report and left for administrative re-trigger.
type Processor struct {
	queue  QueueStore
	roster Roster
	sender ChannelSender
	audit  *audit.Logger
	clock  func() time.Time
	cfg    ProcessorConfig
}

// NewProcessor constructs the queue processor.
func NewProcessor(queue QueueStore, roster Roster, sender ChannelSender, auditLog *audit.Logger, clock func() time.Time, cfg ProcessorConfig) *Processor {
	if clock == nil {
		clock = time.Now
	}
	return &Processor{
		queue:  queue,
		roster: roster,
		sender: sender,
		audit:  auditLog,
		clock:  clock,
		cfg:    cfg.normalized(),
	}
}

// ProcessQueue selects due pending events, claims each before dispatching,
// and finalizes their status. One event's failure never blocks the rest,
// and channel errors never escape the pass.
func (p *Processor) ProcessQueue(ctx context.Context) (ProcessReport, error) {
	var report ProcessReport
	if p == nil || p.queue == nil {
		return report, ErrQueueStoreNotConfigured
	}
	if p.roster == nil {
		return report, ErrRosterNotConfigured
	}
	if p.sender == nil {
		return report, ErrSenderNotConfigured
	}

	events, err := p.queue.ListDueEvents(ctx, p.nowUTC(), p.cfg.BatchLimit)
	if err != nil {
		return report, fmt.Errorf("list due events: %w", err)
	}

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := p.queue.ClaimEvent(ctx, event.ID, p.nowUTC(), p.cfg.LeaseTTL); err != nil {
			if errors.Is(err, ErrEventClaimed) {
				// Lost the claim race; another pass owns this event.
				continue
			}
			report.Errors = append(report.Errors, fmt.Errorf("claim event %s: %w", event.ID, err))
			continue
		}

		if dispatchErr := p.dispatch(ctx, event); dispatchErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("event %s (%s %s): %w", event.ID, event.Kind, event.Channel, dispatchErr))
			if err := p.queue.MarkEventFailed(ctx, event.ID, p.nowUTC(), dispatchErr.Error()); err != nil && !errors.Is(err, ErrEventFinalized) {
				report.Errors = append(report.Errors, fmt.Errorf("mark event %s failed: %w", event.ID, err))
			}
			continue
		}

		if err := p.queue.MarkEventSent(ctx, event.ID, p.nowUTC()); err != nil {
			if errors.Is(err, ErrEventFinalized) {
				// Cancelled while dispatching; the terminal status stands.
				continue
			}
			report.Errors = append(report.Errors, fmt.Errorf("mark event %s sent: %w", event.ID, err))
			continue
		}
		report.Processed++
		p.audit.Record(ctx, "notifications.dispatch", "notification_event", event.ID, string(event.Kind)+"/"+string(event.Channel))
	}
	return report, nil
}

func (p *Processor) dispatch(ctx context.Context, event NotificationEvent) error {
	meeting, err := p.roster.GetMeeting(ctx, event.MeetingID)
	if err != nil {
		return fmt.Errorf("load meeting: %w", err)
	}
	members, err := p.roster.ListActiveMembers(ctx)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	recipients := make([]Recipient, 0, len(members))
	for _, member := range members {
		if member.OptedIn(event.Channel) {
			recipients = append(recipients, member.Recipient())
		}
	}
	if len(recipients) == 0 {
		// Every recipient opted out since scheduling; nothing to deliver.
		return nil
	}

	data := TemplateData{
		Kind:        event.Kind,
		MeetingID:   meeting.ID,
		MeetingType: meeting.Type,
		ScheduledAt: meeting.ScheduledAt,
		Location:    meeting.Location,
		Message:     eventMessage(event.Kind, meeting),
	}
	if p.cfg.IncludeAgenda {
		data.Agenda = meeting.Agenda
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, p.cfg.DispatchTimeout)
	defer cancel()
	return p.sender.Send(dispatchCtx, event.Channel, recipients, data)
}

func eventMessage(kind NotificationKind, meeting Meeting) string {
	when := meeting.ScheduledAt.Format("02/01/2006 15:04")
	switch kind {
	case KindConvocation:
		return fmt.Sprintf("Convocation: %s council meeting on %s at %s", meeting.Type, when, meeting.Location)
	case KindReminder24h:
		return fmt.Sprintf("Reminder: council meeting tomorrow, %s at %s", when, meeting.Location)
	case KindReminder2h:
		return fmt.Sprintf("Reminder: council meeting today at %s, %s", when, meeting.Location)
	case KindCancellation:
		return fmt.Sprintf("Cancelled: the council meeting of %s will not take place", when)
	}
	return fmt.Sprintf("Council meeting update for %s", when)
}

func (p *Processor) nowUTC() time.Time {
	if p.clock == nil {
		return time.Now().UTC()
	}
	return p.clock().UTC()
}
