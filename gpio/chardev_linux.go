//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// ChardevBackend drives lines through the kernel GPIO character device. All
// configured pins live in one line request so every write is a single
// SetValues call covering the whole batch.
type ChardevBackend struct {
	path     string
	consumer string

	mu      sync.Mutex
	chip    *gpiocdev.Chip
	lines   *gpiocdev.Lines
	offsets lineSet
	state   outputState
	closed  bool
}

// OpenChardev opens the GPIO chip at path, e.g. /dev/gpiochip4 or gpiochip0.
// consumer labels the requested lines in gpioinfo output.
func OpenChardev(path, consumer string) (*ChardevBackend, error) {
	chip, err := gpiocdev.NewChip(path, gpiocdev.WithConsumer(consumer))
	if err != nil {
		if errors.Is(err, gpiocdev.ErrPermissionDenied) {
			err = fmt.Errorf("%w: %w", fs.ErrPermission, err)
		}
		return nil, classify("open "+path, err)
	}

	glog.Debug().
		Str("path", path).
		Str("chip", chip.Name).
		Str("label", chip.Label).
		Int("lines", chip.Lines()).
		Msg("Opened GPIO chip")

	return &ChardevBackend{
		path:     path,
		consumer: consumer,
		chip:     chip,
	}, nil
}

func (b *ChardevBackend) Name() string {
	return b.path
}

// ConfigureOutput requests pins as outputs driven inactive. Pins already in
// the request keep their level; adding new ones re-requests the union.
func (b *ChardevBackend) ConfigureOutput(pins ...Pin) error {
	if err := checkPins(pins); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	for _, p := range pins {
		if int(p) >= b.chip.Lines() {
			return fmt.Errorf("%w: %d beyond the %d lines of %s", ErrInvalidPin, p, b.chip.Lines(), b.path)
		}
	}
	offsets, grown := b.offsets.union(pins)
	if !grown && (b.lines != nil || len(offsets) == 0) {
		return nil
	}

	if b.lines != nil {
		if err := b.lines.Close(); err != nil {
			return fmt.Errorf("release previous request: %w", err)
		}
		b.lines = nil
	}

	lines, err := b.chip.RequestLines(
		offsets.offsets(),
		gpiocdev.AsOutput(offsets.values(b.state.levels)...),
	)
	if err != nil {
		b.offsets = nil
		b.state = outputState{}
		if errors.Is(err, gpiocdev.ErrInvalidOffset) {
			return fmt.Errorf("%w: %w", ErrInvalidPin, err)
		}
		return classify("request lines on "+b.path, err)
	}

	b.lines = lines
	b.offsets = offsets
	b.state.configured = offsets.mask()
	b.state.levels &= b.state.configured

	glog.Debug().Str("backend", b.path).Stringer("pins", b.state.configured).Msg("Requested output lines")
	return nil
}

func (b *ChardevBackend) SetHigh(pin Pin) error {
	return b.SetMask(MaskOf(pin))
}

func (b *ChardevBackend) SetLow(pin Pin) error {
	return b.ClearMask(MaskOf(pin))
}

func (b *ChardevBackend) SetMask(m Mask) error {
	return b.apply(m, func(levels Mask) Mask { return levels | m })
}

func (b *ChardevBackend) ClearMask(m Mask) error {
	return b.apply(m, func(levels Mask) Mask { return levels &^ m })
}

func (b *ChardevBackend) apply(m Mask, next func(Mask) Mask) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if err := b.state.require(m); err != nil {
		return err
	}
	if b.lines == nil {
		return fmt.Errorf("%w: no lines requested on %s", ErrInvalidPin, b.path)
	}

	levels := next(b.state.levels)
	if err := b.lines.SetValues(b.offsets.values(levels)); err != nil {
		return fmt.Errorf("set values on %s: %w", b.path, err)
	}
	b.state.levels = levels
	return nil
}

func (b *ChardevBackend) Level(pin Pin) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, ErrClosed
	}
	return b.state.level(pin)
}

func (b *ChardevBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.closed = true

	var errs []error
	if b.lines != nil {
		errs = append(errs, b.lines.Close())
	}
	errs = append(errs, b.chip.Close())

	glog.Debug().Str("backend", b.path).Msg("Released GPIO chip")
	return errors.Join(errs...)
}
