package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrMemberNameRequired indicates a member name is required.
	ErrMemberNameRequired = errors.New("member name is required")
	// ErrInvalidSegment indicates an unknown council segment.
	ErrInvalidSegment = errors.New("invalid council segment")
	// ErrInvalidSeatType indicates an unknown seat type.
	ErrInvalidSeatType = errors.New("invalid seat type")
	// ErrInvalidMemberStatus indicates an unknown member status.
	ErrInvalidMemberStatus = errors.New("invalid member status")
	// ErrMandateRange indicates the mandate end does not follow its start.
	ErrMandateRange = errors.New("mandate end must be after mandate start")
	// ErrMandateTooLong indicates a mandate span over the legal maximum.
	ErrMandateTooLong = errors.New("mandate span exceeds four years")
)

// maxMandateYears is the legal ceiling for one appointment window.
const maxMandateYears = 4

// Segment identifies which sector a council seat represents.
type Segment string

const (
	SegmentGovernment       Segment = "government"
	SegmentCivilSociety     Segment = "civil_society"
	SegmentProductiveSector Segment = "productive_sector"
	SegmentAcademic         Segment = "academic"
)

// Valid reports whether the segment is one of the known sectors.
func (s Segment) Valid() bool {
	switch s {
	case SegmentGovernment, SegmentCivilSociety, SegmentProductiveSector, SegmentAcademic:
		return true
	}
	return false
}

// SeatType distinguishes full seats from alternates.
type SeatType string

const (
	SeatTitular   SeatType = "titular"
	SeatAlternate SeatType = "alternate"
)

// Valid reports whether the seat type is known.
func (s SeatType) Valid() bool {
	return s == SeatTitular || s == SeatAlternate
}

// MemberStatus tracks a councillor's administrative standing. Members are
// never hard-deleted; removal is a status transition.
type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
	MemberLicensed MemberStatus = "licensed"
	MemberRemoved  MemberStatus = "removed"
)

// Valid reports whether the member status is known.
func (s MemberStatus) Valid() bool {
	switch s {
	case MemberActive, MemberInactive, MemberLicensed, MemberRemoved:
		return true
	}
	return false
}

// Member is one councillor enrollment with their mandate window, contact
// channels, and absence counters. The stored absence counters are a cache;
// the attendance ledger's held-meeting scan is the source of truth.
type Member struct {
	ID                  string
	Name                string
	Segment             Segment
	SeatType            SeatType
	Status              MemberStatus
	Email               string
	Phone               string
	EmailOptIn          bool
	SMSOptIn            bool
	WhatsAppOptIn       bool
	MandateStart        time.Time
	MandateEnd          time.Time
	ConsecutiveAbsences int
	TotalAbsences       int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Validate rejects malformed enrollments before any write.
func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrMemberNameRequired
	}
	if !m.Segment.Valid() {
		return ErrInvalidSegment
	}
	if !m.SeatType.Valid() {
		return ErrInvalidSeatType
	}
	if !m.Status.Valid() {
		return ErrInvalidMemberStatus
	}
	if !m.MandateEnd.After(m.MandateStart) {
		return ErrMandateRange
	}
	if m.MandateEnd.After(m.MandateStart.AddDate(maxMandateYears, 0, 0)) {
		return ErrMandateTooLong
	}
	return nil
}

// CountsTowardQuorum reports whether this member contributes to the
// active-titular quorum base.
func (m Member) CountsTowardQuorum() bool {
	return m.Status == MemberActive && m.SeatType == SeatTitular
}

// OptedIn reports whether the member accepts notifications on channel.
func (m Member) OptedIn(channel Channel) bool {
	switch channel {
	case ChannelEmail:
		return m.EmailOptIn && strings.TrimSpace(m.Email) != ""
	case ChannelSMS:
		return m.SMSOptIn && strings.TrimSpace(m.Phone) != ""
	case ChannelWhatsApp:
		return m.WhatsAppOptIn && strings.TrimSpace(m.Phone) != ""
	}
	return false
}

// Recipient returns the member's delivery identity for channel sends.
func (m Member) Recipient() Recipient {
	return Recipient{
		MemberID: m.ID,
		Name:     m.Name,
		Email:    m.Email,
		Phone:    m.Phone,
	}
}
