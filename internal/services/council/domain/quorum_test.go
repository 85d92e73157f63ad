package domain

import "testing"

func TestComputeQuorum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		activeTitulars  int
		present         int
		wantMinimum     int
		wantQualified   int
		wantHasQuorum   bool
		wantPercent     int
		wantRosterEmpty bool
	}{
		{
			name:           "thirteen titulars six present lacks quorum",
			activeTitulars: 13,
			present:        6,
			wantMinimum:    7,
			wantQualified:  9,
			wantHasQuorum:  false,
			wantPercent:    46,
		},
		{
			name:           "thirteen titulars seven present reaches quorum",
			activeTitulars: 13,
			present:        7,
			wantMinimum:    7,
			wantQualified:  9,
			wantHasQuorum:  true,
			wantPercent:    54,
		},
		{
			name:           "even roster simple majority",
			activeTitulars: 12,
			present:        7,
			wantMinimum:    7,
			wantQualified:  8,
			wantHasQuorum:  true,
			wantPercent:    58,
		},
		{
			name:           "full attendance",
			activeTitulars: 9,
			present:        9,
			wantMinimum:    5,
			wantQualified:  6,
			wantHasQuorum:  true,
			wantPercent:    100,
		},
		{
			name:            "empty roster can never reach quorum",
			activeTitulars:  0,
			present:         3,
			wantMinimum:     1,
			wantQualified:   0,
			wantHasQuorum:   false,
			wantPercent:     0,
			wantRosterEmpty: true,
		},
		{
			name:            "negative counts clamp to zero",
			activeTitulars:  -4,
			present:         -1,
			wantMinimum:     1,
			wantQualified:   0,
			wantHasQuorum:   false,
			wantPercent:     0,
			wantRosterEmpty: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ComputeQuorum(tc.activeTitulars, tc.present)
			if got.Minimum != tc.wantMinimum {
				t.Errorf("Minimum = %d, want %d", got.Minimum, tc.wantMinimum)
			}
			if got.Qualified != tc.wantQualified {
				t.Errorf("Qualified = %d, want %d", got.Qualified, tc.wantQualified)
			}
			if got.HasQuorum != tc.wantHasQuorum {
				t.Errorf("HasQuorum = %v, want %v", got.HasQuorum, tc.wantHasQuorum)
			}
			if got.PresencePercent != tc.wantPercent {
				t.Errorf("PresencePercent = %d, want %d", got.PresencePercent, tc.wantPercent)
			}
			if got.RosterEmpty != tc.wantRosterEmpty {
				t.Errorf("RosterEmpty = %v, want %v", got.RosterEmpty, tc.wantRosterEmpty)
			}
		})
	}
}

func TestComputeQuorumMinimumIsSimpleMajority(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 40; n++ {
		status := ComputeQuorum(n, 0)
		if status.Minimum != n/2+1 {
			t.Fatalf("minimum for %d titulars = %d, want %d", n, status.Minimum, n/2+1)
		}
		below := ComputeQuorum(n, status.Minimum-1)
		if below.HasQuorum {
			t.Fatalf("%d of %d should not reach quorum", status.Minimum-1, n)
		}
		at := ComputeQuorum(n, status.Minimum)
		if !at.HasQuorum {
			t.Fatalf("%d of %d should reach quorum", status.Minimum, n)
		}
	}
}
