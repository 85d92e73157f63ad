package domain

import "math"

// QuorumStatus is the result of a quorum computation for one meeting.
type QuorumStatus struct {
	// Minimum is the simple-majority attendee count that validates a meeting.
	Minimum int
	// Qualified is the two-thirds threshold used for votes requiring
	// qualified approval. It is distinct from meeting-validity quorum.
	Qualified int
	// HasQuorum reports whether present attendees reach Minimum.
	HasQuorum bool
	// PresencePercent is the rounded share of active titulars present.
	PresencePercent int
	// RosterEmpty flags a zero active-titular roster. The computation still
	// yields a usable result (minimum 1, no quorum) but callers should
	// surface this as a data-integrity warning.
	RosterEmpty bool
}

// ComputeQuorum derives quorum thresholds and pass/fail from council
// composition and attendance counts. Pure; negative inputs clamp to zero.
func ComputeQuorum(activeTitularCount, presentCount int) QuorumStatus {
	if activeTitularCount < 0 {
		activeTitularCount = 0
	}
	if presentCount < 0 {
		presentCount = 0
	}

	status := QuorumStatus{
		Minimum:   activeTitularCount/2 + 1,
		Qualified: (activeTitularCount*2 + 2) / 3,
	}
	if activeTitularCount == 0 {
		// An empty roster can never reach quorum.
		status.RosterEmpty = true
		return status
	}

	status.HasQuorum = presentCount >= status.Minimum
	status.PresencePercent = int(math.Round(float64(presentCount) / float64(activeTitularCount) * 100))
	return status
}
