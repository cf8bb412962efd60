package intersection

import (
	"errors"
	"fmt"
	"time"
)

// PhaseCount is the length of the signal cycle.
const PhaseCount = 6

var ErrUnsafePhase = errors.New("unsafe phase")

// Timing holds the phase durations. Defaults come from DefaultTiming.
type Timing struct {
	Green  time.Duration
	Yellow time.Duration
	// Buffer is the all-red gap between conflicting greens.
	Buffer time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Green:  5 * time.Second,
		Yellow: 1 * time.Second,
		Buffer: 1 * time.Second,
	}
}

func (t Timing) Validate() error {
	if t.Green <= 0 || t.Yellow <= 0 || t.Buffer <= 0 {
		return fmt.Errorf("phase durations must be positive (green %s, yellow %s, buffer %s)",
			t.Green, t.Yellow, t.Buffer)
	}
	return nil
}

type Phase struct {
	A        Color
	B        Color
	Duration time.Duration
	// Buffer marks the all-red settling phases.
	Buffer bool
}

// Lit returns the roles that are on during the phase, street A first.
func (p Phase) Lit() []Role {
	return []Role{RoleFor(StreetA, p.A), RoleFor(StreetB, p.B)}
}

func (p Phase) String() string {
	return fmt.Sprintf("A=%s B=%s for %s", p.A, p.B, p.Duration)
}

// Safe reports whether the phase lets at most one street move. A street is
// moving while it shows green or yellow.
func Safe(p Phase) bool {
	return p.A == Red || p.B == Red
}

// NewCycle builds the six phases of the intersection.
func NewCycle(t Timing) ([]Phase, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	phases := []Phase{
		{A: Green, B: Red, Duration: t.Green},
		{A: Yellow, B: Red, Duration: t.Yellow},
		{A: Red, B: Red, Duration: t.Buffer, Buffer: true},
		{A: Red, B: Green, Duration: t.Green},
		{A: Red, B: Yellow, Duration: t.Yellow},
		{A: Red, B: Red, Duration: t.Buffer, Buffer: true},
	}
	for i, p := range phases {
		if !Safe(p) {
			return nil, fmt.Errorf("%w: phase %d (%s)", ErrUnsafePhase, i, p)
		}
	}
	return phases, nil
}

// Advance returns the phase that follows i.
func Advance(i int) int {
	return (i + 1) % PhaseCount
}
