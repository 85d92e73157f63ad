package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/opencondema/condema/internal/platform/id"
)

var (
	// ErrMonitorStoreNotConfigured indicates the monitor is missing persistence wiring.
	ErrMonitorStoreNotConfigured = errors.New("mandate store is not configured")
	// ErrSenderNotConfigured indicates a channel sender is required.
	ErrSenderNotConfigured = errors.New("channel sender is not configured")
)

// nearExpirationWindowDays is how far ahead mandate expiration warnings fire.
const nearExpirationWindowDays = 90

// MandateStatus classifies one member's mandate window against a reference day.
type MandateStatus struct {
	Expired        bool
	NearExpiration bool
	// DaysRemaining is ceil((mandateEnd - today) / 1 day); negative once
	// the mandate has lapsed.
	DaysRemaining int
}

// ClassifyMandate evaluates a mandate window against today. Pure.
func ClassifyMandate(member Member, today time.Time) MandateStatus {
	days := int(math.Ceil(member.MandateEnd.Sub(today).Hours() / 24))
	return MandateStatus{
		Expired:        days < 0,
		NearExpiration: days > 0 && days <= nearExpirationWindowDays,
		DaysRemaining:  days,
	}
}

// StatusReport aggregates roster health for dashboards.
type StatusReport struct {
	Total    int
	Active   int
	Inactive int
	// NearExpiration lists active members whose mandate is near or past its end.
	NearExpiration []Member
	// AbsenceRisk lists active members at or above the absence warning threshold.
	AbsenceRisk []Member
	GeneratedAt time.Time
	// Degraded flags a report built from an incomplete roster read.
	Degraded bool
}

// MonitorStore is the persistence boundary for mandate monitoring.
type MonitorStore interface {
	ListMembers(ctx context.Context) ([]Member, error)
	AppendAlert(ctx context.Context, alert Alert) error
}

// Monitor evaluates mandate windows and absence conditions over the roster
// and feeds the alerting path.
type Monitor struct {
	store  MonitorStore
	sender ChannelSender
	clock  func() time.Time
	newID  func() (string, error)
}

// NewMonitor constructs the mandate monitor use-cases.
func NewMonitor(store MonitorStore, sender ChannelSender, clock func() time.Time, newID func() (string, error)) *Monitor {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Monitor{store: store, sender: sender, clock: clock, newID: newID}
}

// StatusReport builds the roster health summary. This path is informational:
// a store failure degrades to an empty report instead of propagating.
func (m *Monitor) StatusReport(ctx context.Context) StatusReport {
	report := StatusReport{GeneratedAt: m.nowUTC()}
	if m == nil || m.store == nil {
		report.Degraded = true
		return report
	}

	members, err := m.store.ListMembers(ctx)
	if err != nil {
		log.Printf("mandate status report roster read: %v", err)
		report.Degraded = true
		return report
	}

	today := report.GeneratedAt
	for _, member := range members {
		report.Total++
		switch member.Status {
		case MemberActive:
			report.Active++
		case MemberInactive:
			report.Inactive++
		}
		if member.Status != MemberActive {
			continue
		}
		if status := ClassifyMandate(member, today); status.Expired || status.NearExpiration {
			report.NearExpiration = append(report.NearExpiration, member)
		}
		if member.ConsecutiveAbsences >= absenceWarningThreshold {
			report.AbsenceRisk = append(report.AbsenceRisk, member)
		}
	}
	return report
}

// SendAlerts evaluates both mandate and absence conditions for one member,
// persists each resulting alert, and forwards it to the channel sender.
// A persistence failure aborts the channel send for that alert; the engine
// never notifies about an alert that was not durably recorded.
func (m *Monitor) SendAlerts(ctx context.Context, member Member) ([]Alert, error) {
	if m == nil || m.store == nil {
		return nil, ErrMonitorStoreNotConfigured
	}
	if m.sender == nil {
		return nil, ErrSenderNotConfigured
	}

	now := m.nowUTC()
	payloads := m.alertPayloads(member, now)
	if len(payloads) == 0 {
		return nil, nil
	}

	channel := preferredAlertChannel(member)
	recipients := []Recipient{member.Recipient()}

	var sent []Alert
	var errs []error
	for _, payload := range payloads {
		alertID, err := m.newID()
		if err != nil {
			errs = append(errs, fmt.Errorf("new alert id: %w", err))
			continue
		}
		alert := Alert{
			ID:        alertID,
			MemberID:  member.ID,
			Kind:      payload.kind,
			Severity:  payload.severity,
			Message:   payload.message,
			CreatedAt: now,
		}
		if err := m.store.AppendAlert(ctx, alert); err != nil {
			// Fail closed: skip the send when the record did not persist.
			errs = append(errs, fmt.Errorf("append %s alert: %w", alert.Kind, err))
			continue
		}
		if err := m.sender.Send(ctx, channel, recipients, TemplateData{Message: alert.Message}); err != nil {
			errs = append(errs, fmt.Errorf("send %s alert: %w", alert.Kind, err))
		}
		sent = append(sent, alert)
	}
	return sent, errors.Join(errs...)
}

type alertPayload struct {
	kind     AlertKind
	severity AlertSeverity
	message  string
}

func (m *Monitor) alertPayloads(member Member, now time.Time) []alertPayload {
	var payloads []alertPayload

	status := ClassifyMandate(member, now)
	switch {
	case status.Expired:
		payloads = append(payloads, alertPayload{
			kind:     AlertMandateExpired,
			severity: SeverityCritical,
			message:  fmt.Sprintf("%s's mandate expired %d days ago", member.Name, -status.DaysRemaining),
		})
	case status.NearExpiration:
		payloads = append(payloads, alertPayload{
			kind:     AlertMandateExpiring,
			severity: SeverityWarning,
			message:  fmt.Sprintf("%s's mandate expires in %d days", member.Name, status.DaysRemaining),
		})
	}

	// The stored counter is the cached result of the ledger's held-meeting
	// scan; the roster sweep trusts the cache rather than rescanning.
	if kind, severity, message, ok := absenceAlertPayload(member, member.ConsecutiveAbsences); ok {
		payloads = append(payloads, alertPayload{kind: kind, severity: severity, message: message})
	}
	return payloads
}

// preferredAlertChannel picks the member's first opted-in channel, falling
// back to email.
func preferredAlertChannel(member Member) Channel {
	for _, channel := range []Channel{ChannelEmail, ChannelSMS, ChannelWhatsApp} {
		if member.OptedIn(channel) {
			return channel
		}
	}
	return ChannelEmail
}

func (m *Monitor) nowUTC() time.Time {
	if m.clock == nil {
		return time.Now().UTC()
	}
	return m.clock().UTC()
}
