package gpio

import (
	"fmt"
	"sync"

	"gregoryjjb/stoplight/regmap"
)

// minRegisterWords covers the function-select, set and clear registers for
// both banks.
const minRegisterWords = regmap.ClearBase + 2

// RegisterBackend writes a BCM283x-style GPIO register block directly. The
// block is usually a page of /dev/gpiomem or /dev/mem mapped by
// OpenRegisters, but any []uint32 window with the same layout works.
type RegisterBackend struct {
	name    string
	release func() error

	// mu covers the read-modify-write of function-select words and keeps
	// levels in step with the set and clear stores.
	mu     sync.Mutex
	regs   []uint32
	state  outputState
	closed bool
}

// NewRegisterBackend wraps regs. release is called once by Close and may
// be nil.
func NewRegisterBackend(name string, regs []uint32, release func() error) (*RegisterBackend, error) {
	if len(regs) < minRegisterWords {
		return nil, fmt.Errorf("%w: register window of %d words is smaller than %d",
			ErrResourceUnavailable, len(regs), minRegisterWords)
	}
	return &RegisterBackend{
		name:    name,
		release: release,
		regs:    regs,
	}, nil
}

func (b *RegisterBackend) Name() string {
	return b.name
}

func (b *RegisterBackend) ConfigureOutput(pins ...Pin) error {
	if err := checkPins(pins); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	for _, p := range pins {
		index, _ := regmap.SelectField(int(p))
		if index >= len(b.regs) || regmap.ClearRegister(int(p)) >= len(b.regs) {
			return fmt.Errorf("%w: %d outside register window", ErrInvalidPin, p)
		}
	}

	for _, p := range pins {
		pin := int(p)
		// Drive low before switching to output so the line never glitches high.
		b.regs[regmap.ClearRegister(pin)] = regmap.Bit(pin)

		index, shift := regmap.SelectField(pin)
		b.regs[index] = regmap.WithFunction(b.regs[index], shift, regmap.FunctionOutput)

		b.state.configured |= MaskOf(p)
		b.state.levels &^= MaskOf(p)
	}

	glog.Debug().Str("backend", b.name).Stringer("pins", MaskOf(pins...)).Msg("Configured outputs")
	return nil
}

func (b *RegisterBackend) SetHigh(pin Pin) error {
	return b.SetMask(MaskOf(pin))
}

func (b *RegisterBackend) SetLow(pin Pin) error {
	return b.ClearMask(MaskOf(pin))
}

func (b *RegisterBackend) SetMask(m Mask) error {
	return b.write(regmap.SetBase, m, true)
}

func (b *RegisterBackend) ClearMask(m Mask) error {
	return b.write(regmap.ClearBase, m, false)
}

// write stores m into the register starting at base, one word per bank
// that has any pin in the mask.
func (b *RegisterBackend) write(base int, m Mask, high bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if err := b.state.require(m); err != nil {
		return err
	}

	if low := uint32(m); low != 0 {
		b.regs[base] = low
	}
	if upper := uint32(m >> regmap.PinsPerBank); upper != 0 {
		b.regs[base+1] = upper
	}

	if high {
		b.state.levels |= m
	} else {
		b.state.levels &^= m
	}
	return nil
}

func (b *RegisterBackend) Level(pin Pin) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, ErrClosed
	}
	return b.state.level(pin)
}

func (b *RegisterBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.closed = true
	b.regs = nil

	glog.Debug().Str("backend", b.name).Msg("Releasing register window")
	if b.release != nil {
		return b.release()
	}
	return nil
}
