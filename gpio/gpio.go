// Package gpio drives output lines through one of several access strategies:
// memory-mapped BCM283x-style registers, the kernel GPIO character device, the
// go-rpio library, or an in-memory simulation. All of them satisfy Backend.
package gpio

import (
	"errors"
	"fmt"
	"io/fs"
	"math/bits"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var glog zerolog.Logger

func init() {
	glog = log.With().Str("component", "gpio").Logger()
}

var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrResourceUnavailable = errors.New("resource unavailable")
	ErrInvalidPin          = errors.New("invalid pin")
	ErrBackendUnsupported  = errors.New("no supported GPIO backend")
	ErrClosed              = errors.New("backend closed")
)

// MaxPin is the highest line number any backend accepts.
const MaxPin = 57

// Pin is a GPIO line number (BCM numbering, or line offset on a chip).
type Pin int

func (p Pin) Valid() bool {
	return p >= 0 && p <= MaxPin
}

// Mask is a set of pins; bit n addresses pin n.
type Mask uint64

func MaskOf(pins ...Pin) Mask {
	var m Mask
	for _, p := range pins {
		m |= 1 << uint(p)
	}
	return m
}

func (m Mask) Has(p Pin) bool {
	return p.Valid() && m&(1<<uint(p)) != 0
}

// Pins lists the pins in m in ascending order.
func (m Mask) Pins() []Pin {
	pins := make([]Pin, 0, bits.OnesCount64(uint64(m)))
	for m != 0 {
		p := bits.TrailingZeros64(uint64(m))
		pins = append(pins, Pin(p))
		m &^= 1 << uint(p)
	}
	return pins
}

func (m Mask) String() string {
	parts := make([]string, 0, bits.OnesCount64(uint64(m)))
	for _, p := range m.Pins() {
		parts = append(parts, strconv.Itoa(int(p)))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Backend is the capability every GPIO access strategy provides. A Backend
// is not shared: one goroutine owns it from open to Close.
type Backend interface {
	// Name identifies the strategy and resource, e.g. "/dev/gpiochip4".
	Name() string

	// ConfigureOutput switches pins to outputs driven low.
	ConfigureOutput(pins ...Pin) error

	SetHigh(pin Pin) error
	SetLow(pin Pin) error

	// SetMask drives every pin in the mask high in a single write.
	SetMask(m Mask) error
	// ClearMask drives every pin in the mask low in a single write.
	ClearMask(m Mask) error

	// Level reports the last level commanded for pin.
	Level(pin Pin) (bool, error)

	// Close releases the underlying resource. It must be called exactly once.
	Close() error
}

// outputState is the bookkeeping shared by all backends: which pins are
// outputs and what each was last driven to.
type outputState struct {
	configured Mask
	levels     Mask
}

func (s *outputState) require(m Mask) error {
	if unknown := m &^ s.configured; unknown != 0 {
		return fmt.Errorf("%w: %s not configured as output", ErrInvalidPin, unknown)
	}
	return nil
}

func (s *outputState) level(pin Pin) (bool, error) {
	if err := s.require(MaskOf(pin)); err != nil {
		return false, err
	}
	return s.levels.Has(pin), nil
}

func checkPins(pins []Pin) error {
	for _, p := range pins {
		if !p.Valid() {
			return fmt.Errorf("%w: %d out of range 0-%d", ErrInvalidPin, p, MaxPin)
		}
	}
	return nil
}

// classify turns an error from opening or mapping a resource into one of
// the acquisition sentinels while keeping the cause.
func classify(op string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%s: %w: %w", op, ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrResourceUnavailable, err)
}
