package app

import (
	"context"
	"testing"
	"time"

	"github.com/opencondema/condema/internal/services/council/domain"
	councilsqlite "github.com/opencondema/condema/internal/services/council/storage/sqlite"
)

func openTempCouncilStore(t *testing.T) *councilsqlite.Store {
	t.Helper()
	store, err := councilsqlite.Open(t.TempDir() + "/council.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedMember(t *testing.T, store *councilsqlite.Store, member domain.Member) {
	t.Helper()
	if err := store.PutMember(context.Background(), member); err != nil {
		t.Fatalf("put member %s: %v", member.ID, err)
	}
}

func activeMember(id string, mandateEnd time.Time) domain.Member {
	return domain.Member{
		ID:           id,
		Name:         "Ana Souza",
		Segment:      domain.SegmentCivilSociety,
		SeatType:     domain.SeatTitular,
		Status:       domain.MemberActive,
		Email:        "ana@example.org",
		EmailOptIn:   true,
		MandateStart: mandateEnd.AddDate(-2, 0, 0),
		MandateEnd:   mandateEnd,
	}
}

func TestRunMandateSweepPersistsAlerts(t *testing.T) {
	store := openTempCouncilStore(t)
	now := time.Now().UTC()

	seedMember(t, store, activeMember("mem-expiring", now.AddDate(0, 0, 30)))
	healthy := activeMember("mem-healthy", now.AddDate(3, 0, 0))
	healthy.MandateStart = now.AddDate(-1, 0, 0)
	seedMember(t, store, healthy)
	inactive := activeMember("mem-inactive", now.AddDate(0, 0, 10))
	inactive.Status = domain.MemberInactive
	seedMember(t, store, inactive)

	monitor := domain.NewMonitor(store, LogSender{}, nil, nil)
	runMandateSweep(context.Background(), store, monitor)

	alerts, err := store.ListAlertsByMember(context.Background(), "mem-expiring")
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Kind != domain.AlertMandateExpiring {
		t.Fatalf("unexpected alerts for expiring member: %+v", alerts)
	}

	for _, id := range []string{"mem-healthy", "mem-inactive"} {
		alerts, err := store.ListAlertsByMember(context.Background(), id)
		if err != nil {
			t.Fatalf("list alerts for %s: %v", id, err)
		}
		if len(alerts) != 0 {
			t.Fatalf("alerts for %s = %d, want 0", id, len(alerts))
		}
	}
}

func TestRunQueuePassDrainsDueEvents(t *testing.T) {
	store := openTempCouncilStore(t)
	now := time.Now().UTC()
	ctx := context.Background()

	if err := store.PutMeeting(ctx, domain.Meeting{
		ID:          "meet-1",
		Type:        domain.MeetingOrdinary,
		ScheduledAt: now.AddDate(0, 0, 2),
		Location:    "city hall",
		Status:      domain.MeetingScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("put meeting: %v", err)
	}
	seedMember(t, store, activeMember("mem-1", now.AddDate(1, 0, 0)))

	if err := store.PutNotificationEvent(ctx, domain.NotificationEvent{
		ID:             "evt-1",
		MeetingID:      "meet-1",
		Kind:           domain.KindConvocation,
		Channel:        domain.ChannelEmail,
		DueAt:          now.Add(-time.Minute),
		Status:         domain.EventPending,
		RecipientCount: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		t.Fatalf("put event: %v", err)
	}

	processor := domain.NewProcessor(store, store, LogSender{}, nil, nil, domain.ProcessorConfig{})
	runQueuePass(ctx, processor)

	event, err := store.GetNotificationEvent(ctx, "evt-1")
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if event.Status != domain.EventSent {
		t.Fatalf("event status = %s, want sent", event.Status)
	}
}

func TestLogSenderHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := LogSender{}.Send(ctx, domain.ChannelEmail, nil, domain.TemplateData{})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
