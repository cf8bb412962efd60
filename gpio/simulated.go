package gpio

import (
	"strings"
	"sync"
)

// SimulatedBackend keeps pin levels in memory and logs every change at debug
// level. It stands in for hardware on development machines.
type SimulatedBackend struct {
	mu     sync.Mutex
	state  outputState
	writes int
	closed bool
}

func NewSimulatedBackend() *SimulatedBackend {
	glog.Debug().Msg("GPIO will be simulated")
	return &SimulatedBackend{}
}

func (b *SimulatedBackend) Name() string {
	return "simulated"
}

func (b *SimulatedBackend) ConfigureOutput(pins ...Pin) error {
	if err := checkPins(pins); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.state.configured |= MaskOf(pins...)
	b.state.levels &^= MaskOf(pins...)
	b.printStates()
	return nil
}

func (b *SimulatedBackend) SetHigh(pin Pin) error {
	return b.SetMask(MaskOf(pin))
}

func (b *SimulatedBackend) SetLow(pin Pin) error {
	return b.ClearMask(MaskOf(pin))
}

func (b *SimulatedBackend) SetMask(m Mask) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(m); err != nil {
		return err
	}
	b.state.levels |= m
	b.writes++
	b.printStates()
	return nil
}

func (b *SimulatedBackend) ClearMask(m Mask) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(m); err != nil {
		return err
	}
	b.state.levels &^= m
	b.writes++
	b.printStates()
	return nil
}

func (b *SimulatedBackend) check(m Mask) error {
	if b.closed {
		return ErrClosed
	}
	return b.state.require(m)
}

func (b *SimulatedBackend) Level(pin Pin) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, ErrClosed
	}
	return b.state.level(pin)
}

// Levels returns every configured pin that is currently high.
func (b *SimulatedBackend) Levels() Mask {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state.levels
}

// Writes counts SetMask and ClearMask calls, including single-pin ones.
func (b *SimulatedBackend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.writes
}

func (b *SimulatedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.closed = true
	glog.Debug().Msg("Simulated GPIO closing")
	return nil
}

func (b *SimulatedBackend) printStates() {
	var sb strings.Builder
	for _, p := range b.state.configured.Pins() {
		if b.state.levels.Has(p) {
			sb.WriteByte('#')
		} else {
			sb.WriteByte(' ')
		}
	}
	glog.Debug().Str("pins", sb.String()).Msg("GPIO")
}
