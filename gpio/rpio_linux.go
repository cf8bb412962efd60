//go:build linux

package gpio

import (
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// RpioBackend uses go-rpio, which finds the register block of Pi 1-4 boards
// on its own. The library writes one pin at a time, so masks are applied pin
// by pin; ClearMask still completes before any SetMask that follows it.
type RpioBackend struct {
	mu     sync.Mutex
	state  outputState
	closed bool
}

func OpenRpio() (*RpioBackend, error) {
	if err := rpio.Open(); err != nil {
		return nil, classify("rpio open", err)
	}
	return &RpioBackend{}, nil
}

func (b *RpioBackend) Name() string {
	return "rpio"
}

func (b *RpioBackend) ConfigureOutput(pins ...Pin) error {
	if err := checkPins(pins); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	for _, p := range pins {
		pin := rpio.Pin(p)
		pin.Low()
		pin.Output()
	}
	b.state.configured |= MaskOf(pins...)
	b.state.levels &^= MaskOf(pins...)
	return nil
}

func (b *RpioBackend) SetHigh(pin Pin) error {
	return b.SetMask(MaskOf(pin))
}

func (b *RpioBackend) SetLow(pin Pin) error {
	return b.ClearMask(MaskOf(pin))
}

func (b *RpioBackend) SetMask(m Mask) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(m); err != nil {
		return err
	}
	for _, p := range m.Pins() {
		rpio.Pin(p).High()
	}
	b.state.levels |= m
	return nil
}

func (b *RpioBackend) ClearMask(m Mask) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(m); err != nil {
		return err
	}
	for _, p := range m.Pins() {
		rpio.Pin(p).Low()
	}
	b.state.levels &^= m
	return nil
}

func (b *RpioBackend) check(m Mask) error {
	if b.closed {
		return ErrClosed
	}
	return b.state.require(m)
}

func (b *RpioBackend) Level(pin Pin) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, ErrClosed
	}
	return b.state.level(pin)
}

func (b *RpioBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.closed = true
	return rpio.Close()
}
