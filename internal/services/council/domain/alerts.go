package domain

import (
	"fmt"
	"time"
)

// AlertKind identifies what condition an alert escalates.
type AlertKind string

const (
	AlertMandateExpiring    AlertKind = "mandate_expiring"
	AlertMandateExpired     AlertKind = "mandate_expired"
	AlertConsecutiveAbsence AlertKind = "consecutive_absence"
)

// AlertSeverity tags how urgent an alert is.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Absence escalation thresholds over trailing held-meeting absences.
const (
	absenceWarningThreshold  = 2
	absenceCriticalThreshold = 3
)

// Alert is one append-only escalation record. Alerts are never mutated;
// duplicate suppression is a concern of the consuming side.
type Alert struct {
	ID        string
	MemberID  string
	Kind      AlertKind
	Severity  AlertSeverity
	Message   string
	CreatedAt time.Time
}

// absenceAlertPayload maps a trailing-absence count onto the escalation
// policy. ok is false below the warning threshold.
func absenceAlertPayload(member Member, consecutive int) (kind AlertKind, severity AlertSeverity, message string, ok bool) {
	switch {
	case consecutive >= absenceCriticalThreshold:
		return AlertConsecutiveAbsence, SeverityCritical,
			fmt.Sprintf("%s missed %d consecutive meetings and is subject to mandate loss", member.Name, consecutive),
			true
	case consecutive == absenceWarningThreshold:
		return AlertConsecutiveAbsence, SeverityWarning,
			fmt.Sprintf("%s missed %d consecutive meetings", member.Name, consecutive),
			true
	}
	return "", "", "", false
}
