package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func sequentialIDGenerator(ids ...string) func() (string, error) {
	index := 0
	return func() (string, error) {
		if index >= len(ids) {
			return "", errors.New("id generator exhausted")
		}
		value := ids[index]
		index++
		return value, nil
	}
}

func autoIDGenerator(prefix string) func() (string, error) {
	index := 0
	return func() (string, error) {
		index++
		return fmt.Sprintf("%s-%d", prefix, index), nil
	}
}

// fakeStore is an in-memory implementation of every domain store boundary,
// guarded by one mutex so concurrency tests exercise real claim races.
type fakeStore struct {
	mu         sync.Mutex
	meetings   map[string]Meeting
	members    map[string]Member
	attendance map[string]AttendanceRecord
	events     map[string]NotificationEvent
	alerts     []Alert

	putAttendanceErr error
	counterErrs      []error
	listMembersErr   error
	appendAlertErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		meetings:   make(map[string]Meeting),
		members:    make(map[string]Member),
		attendance: make(map[string]AttendanceRecord),
		events:     make(map[string]NotificationEvent),
	}
}

func attendanceKey(meetingID, memberID string) string {
	return meetingID + "|" + memberID
}

func (s *fakeStore) addMeeting(meeting Meeting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[meeting.ID] = meeting
}

func (s *fakeStore) addMember(member Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[member.ID] = member
}

func (s *fakeStore) memberByID(memberID string) Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[memberID]
}

func (s *fakeStore) eventByID(eventID string) NotificationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[eventID]
}

func (s *fakeStore) alertsBySeverity(severity AlertSeverity) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []Alert
	for _, alert := range s.alerts {
		if alert.Severity == severity {
			matched = append(matched, alert)
		}
	}
	return matched
}

func (s *fakeStore) GetMeeting(_ context.Context, meetingID string) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meeting, ok := s.meetings[meetingID]
	if !ok {
		return Meeting{}, ErrNotFound
	}
	return meeting, nil
}

func (s *fakeStore) GetMember(_ context.Context, memberID string) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	member, ok := s.members[memberID]
	if !ok {
		return Member{}, ErrNotFound
	}
	return member, nil
}

func (s *fakeStore) GetAttendance(_ context.Context, meetingID, memberID string) (AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.attendance[attendanceKey(meetingID, memberID)]
	if !ok {
		return AttendanceRecord{}, ErrNotFound
	}
	return record, nil
}

func (s *fakeStore) PutAttendance(_ context.Context, record AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putAttendanceErr != nil {
		return s.putAttendanceErr
	}
	s.attendance[attendanceKey(record.MeetingID, record.MemberID)] = record
	return nil
}

func (s *fakeStore) ListRecentHeldMeetings(_ context.Context, limit int) ([]Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var held []Meeting
	for _, meeting := range s.meetings {
		if meeting.Status == MeetingHeld {
			held = append(held, meeting)
		}
	}
	sort.Slice(held, func(i, j int) bool {
		return held[i].ScheduledAt.After(held[j].ScheduledAt)
	})
	if len(held) > limit {
		held = held[:limit]
	}
	return held, nil
}

func (s *fakeStore) UpdateMemberAbsenceCounters(_ context.Context, memberID string, consecutive, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.counterErrs) > 0 {
		err := s.counterErrs[0]
		s.counterErrs = s.counterErrs[1:]
		if err != nil {
			return err
		}
	}
	member, ok := s.members[memberID]
	if !ok {
		return ErrNotFound
	}
	member.ConsecutiveAbsences = consecutive
	member.TotalAbsences = total
	s.members[memberID] = member
	return nil
}

func (s *fakeStore) CountActiveTitulars(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, member := range s.members {
		if member.CountsTowardQuorum() {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) CountPresentTitulars(_ context.Context, meetingID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, record := range s.attendance {
		if record.MeetingID != meetingID || !record.Present {
			continue
		}
		if member, ok := s.members[record.MemberID]; ok && member.CountsTowardQuorum() {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) AppendAlert(_ context.Context, alert Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendAlertErr != nil {
		return s.appendAlertErr
	}
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *fakeStore) ListMembers(_ context.Context) ([]Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listMembersErr != nil {
		return nil, s.listMembersErr
	}
	members := make([]Member, 0, len(s.members))
	for _, member := range s.members {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (s *fakeStore) ListActiveMembers(_ context.Context) ([]Member, error) {
	members, err := s.ListMembers(context.Background())
	if err != nil {
		return nil, err
	}
	active := members[:0]
	for _, member := range members {
		if member.Status == MemberActive {
			active = append(active, member)
		}
	}
	return active, nil
}

func (s *fakeStore) PutNotificationEvent(_ context.Context, event NotificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = event
	return nil
}

func (s *fakeStore) CancelPendingEventsByMeeting(_ context.Context, meetingID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancelled := 0
	for id, event := range s.events {
		if event.MeetingID != meetingID || event.Status != EventPending {
			continue
		}
		event.Status = EventCancelled
		event.UpdatedAt = now
		s.events[id] = event
		cancelled++
	}
	return cancelled, nil
}

func (s *fakeStore) ListDueEvents(_ context.Context, now time.Time, limit int) ([]NotificationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []NotificationEvent
	for _, event := range s.events {
		if event.Status == EventPending && !event.DueAt.After(now) {
			due = append(due, event)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].DueAt.Equal(due[j].DueAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].DueAt.Before(due[j].DueAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *fakeStore) ClaimEvent(_ context.Context, eventID string, now time.Time, leaseTTL time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return ErrNotFound
	}
	if event.Status != EventPending {
		return ErrEventClaimed
	}
	if event.ClaimedAt != nil && now.Sub(*event.ClaimedAt) < leaseTTL {
		return ErrEventClaimed
	}
	claimed := now
	event.ClaimedAt = &claimed
	s.events[eventID] = event
	return nil
}

func (s *fakeStore) MarkEventSent(_ context.Context, eventID string, at time.Time) error {
	return s.finalizeEvent(eventID, EventSent, at, "")
}

func (s *fakeStore) MarkEventFailed(_ context.Context, eventID string, at time.Time, lastError string) error {
	return s.finalizeEvent(eventID, EventFailed, at, lastError)
}

func (s *fakeStore) finalizeEvent(eventID string, status EventStatus, at time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return ErrNotFound
	}
	if event.Status != EventPending {
		return ErrEventFinalized
	}
	event.Status = status
	event.LastError = lastError
	event.UpdatedAt = at
	s.events[eventID] = event
	return nil
}

type senderCall struct {
	channel    Channel
	recipients []Recipient
	data       TemplateData
}

// fakeSender records channel dispatches and can inject per-channel failures.
type fakeSender struct {
	mu     sync.Mutex
	calls  []senderCall
	errFor map[Channel]error
	onSend func(channel Channel)
}

func (f *fakeSender) Send(_ context.Context, channel Channel, recipients []Recipient, data TemplateData) error {
	f.mu.Lock()
	onSend := f.onSend
	err := f.errFor[channel]
	if err == nil {
		f.calls = append(f.calls, senderCall{channel: channel, recipients: recipients, data: data})
	}
	f.mu.Unlock()
	if onSend != nil {
		onSend(channel)
	}
	return err
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
