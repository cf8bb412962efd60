package gpio

import (
	"errors"
	"fmt"
)

// Candidate is one way of getting a Backend, tried during acquisition.
type Candidate struct {
	Name string
	Open func() (Backend, error)
}

// Acquire opens the first candidate that works. Candidates after the
// successful one are never touched. A permission failure stops the search
// since every other candidate needs the same privilege.
func Acquire(candidates []Candidate) (Backend, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates configured", ErrBackendUnsupported)
	}

	var errs []error
	for i, c := range candidates {
		glog.Debug().Str("candidate", c.Name).Msg("Trying GPIO backend")

		b, err := c.Open()
		if err == nil {
			glog.Info().
				Str("backend", b.Name()).
				Int("attempt", i+1).
				Msg("GPIO backend acquired")
			return b, nil
		}

		glog.Warn().Err(err).Str("candidate", c.Name).Msg("GPIO backend unavailable")
		if errors.Is(err, ErrPermissionDenied) {
			return nil, err
		}
		errs = append(errs, err)
	}

	return nil, fmt.Errorf("%w: %w", ErrBackendUnsupported, errors.Join(errs...))
}

// ChardevCandidates yields one candidate per GPIO character device path.
func ChardevCandidates(paths []string, consumer string) []Candidate {
	candidates := make([]Candidate, 0, len(paths))
	for _, path := range paths {
		path := path
		candidates = append(candidates, Candidate{
			Name: "chardev " + path,
			Open: func() (Backend, error) {
				b, err := OpenChardev(path, consumer)
				if err != nil {
					return nil, err
				}
				return b, nil
			},
		})
	}
	return candidates
}

// RegisterCandidates yields one candidate per physical base address of the
// GPIO register block behind device.
func RegisterCandidates(device string, bases []int64) []Candidate {
	candidates := make([]Candidate, 0, len(bases))
	for _, base := range bases {
		base := base
		candidates = append(candidates, Candidate{
			Name: fmt.Sprintf("registers %s@%#x", device, base),
			Open: func() (Backend, error) {
				b, err := OpenRegisters(device, base)
				if err != nil {
					return nil, err
				}
				return b, nil
			},
		})
	}
	return candidates
}

func RpioCandidate() Candidate {
	return Candidate{
		Name: "rpio",
		Open: func() (Backend, error) {
			b, err := OpenRpio()
			if err != nil {
				return nil, err
			}
			return b, nil
		},
	}
}

func SimulatedCandidate() Candidate {
	return Candidate{
		Name: "simulated",
		Open: func() (Backend, error) {
			return NewSimulatedBackend(), nil
		},
	}
}
