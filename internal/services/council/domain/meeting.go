package domain

import (
	"errors"
	"time"
)

var (
	// ErrInvalidMeetingType indicates an unknown meeting type.
	ErrInvalidMeetingType = errors.New("invalid meeting type")
	// ErrInvalidMeetingStatus indicates an unknown meeting status.
	ErrInvalidMeetingStatus = errors.New("invalid meeting status")
	// ErrMeetingStatusTransition indicates a disallowed status change.
	ErrMeetingStatusTransition = errors.New("invalid meeting status transition")
	// ErrMeetingNotOpen indicates attendance writes on a cancelled meeting.
	ErrMeetingNotOpen = errors.New("meeting does not accept attendance records")
)

// MeetingType identifies the convocation regime for a session.
type MeetingType string

const (
	MeetingOrdinary      MeetingType = "ordinary"
	MeetingExtraordinary MeetingType = "extraordinary"
	MeetingPublic        MeetingType = "public"
)

// Valid reports whether the meeting type is known.
func (t MeetingType) Valid() bool {
	switch t {
	case MeetingOrdinary, MeetingExtraordinary, MeetingPublic:
		return true
	}
	return false
}

// MeetingStatus tracks the session lifecycle. Transitions are one-way:
// scheduled meetings may be held or cancelled, and both outcomes are final.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingHeld      MeetingStatus = "held"
	MeetingCancelled MeetingStatus = "cancelled"
)

// Valid reports whether the meeting status is known.
func (s MeetingStatus) Valid() bool {
	switch s {
	case MeetingScheduled, MeetingHeld, MeetingCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether status may move to next.
func (s MeetingStatus) CanTransitionTo(next MeetingStatus) bool {
	if s == MeetingScheduled {
		return next == MeetingHeld || next == MeetingCancelled
	}
	return false
}

// Meeting is one council session.
type Meeting struct {
	ID          string
	Type        MeetingType
	ScheduledAt time.Time
	Location    string
	Agenda      string
	Status      MeetingStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AcceptsAttendance reports whether attendance records may still be
// created or overwritten for this meeting.
func (m Meeting) AcceptsAttendance() bool {
	return m.Status == MeetingScheduled || m.Status == MeetingHeld
}
