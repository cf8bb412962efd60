package intersection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/stoplight/circularbuffer"
	"gregoryjjb/stoplight/gpio"
	"gregoryjjb/stoplight/pubsub"
)

var clog zerolog.Logger

func init() {
	clog = log.With().Str("component", "intersection").Logger()
}

var ErrAlreadyRun = errors.New("controller already run")

const defaultHistory = 32

// Status describes the phase the intersection is showing.
type Status struct {
	Cycle     int           `json:"cycle"`
	Phase     int           `json:"phase"`
	StreetA   Color         `json:"street_a"`
	StreetB   Color         `json:"street_b"`
	Duration  time.Duration `json:"duration_ns"`
	EnteredAt time.Time     `json:"entered_at"`
}

type Option func(*Controller)

// WithObserver registers fn to run on the controller goroutine right after
// each phase's lights are set.
func WithObserver(fn func(Status)) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, fn)
	}
}

// WithHistory keeps the last n phase transitions for History.
func WithHistory(n int) Option {
	return func(c *Controller) {
		c.history = circularbuffer.New[Status](n)
	}
}

// Controller owns the backend and drives the lights through the cycle.
type Controller struct {
	backend gpio.Backend
	pinout  Pinout
	cycle   *cycle

	observers []func(Status)
	history   *circularbuffer.CircularBuffer[Status]
	ps        *pubsub.Pubsub[Status]

	running atomic.Bool

	statusMu sync.RWMutex
	status   Status
}

func NewController(backend gpio.Backend, pinout Pinout, timing Timing, opts ...Option) (*Controller, error) {
	phases, err := NewCycle(timing)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		backend: backend,
		pinout:  pinout,
		cycle:   newCycle(phases),
		history: circularbuffer.New[Status](defaultHistory),
		ps:      pubsub.New[Status](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run configures the lights and cycles them until ctx is cancelled. It owns
// the backend: on every return path the lights are switched off once and
// the backend is closed once. Cancellation is a normal stop and returns nil.
func (c *Controller) Run(ctx context.Context) (err error) {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	defer c.ps.Close()

	all := c.pinout.All()

	if err := c.backend.ConfigureOutput(c.pinout.Pins()...); err != nil {
		err = fmt.Errorf("configure outputs: %w", err)
		if cerr := c.backend.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close backend: %w", cerr))
		}
		return err
	}

	defer func() {
		err = errors.Join(err, c.shutdown(all))
	}()

	// Whatever a previous run left lit goes dark first.
	if err := c.backend.ClearMask(all); err != nil {
		return fmt.Errorf("switch off lights: %w", err)
	}

	clog.Info().
		Str("backend", c.backend.Name()).
		Stringer("pins", all).
		Msg("Starting traffic light sequence")

	cycleCount := 0
	for {
		if ctx.Err() != nil {
			clog.Info().Int("phase", c.cycle.Position()).Msg("Stop requested")
			return nil
		}

		if c.cycle.Position() == 0 {
			cycleCount++
		}
		phase := c.cycle.Current()

		if err := c.show(phase); err != nil {
			return err
		}
		c.publish(Status{
			Cycle:     cycleCount,
			Phase:     c.cycle.Position(),
			StreetA:   phase.A,
			StreetB:   phase.B,
			Duration:  phase.Duration,
			EnteredAt: time.Now(),
		})

		if !wait(ctx, phase.Duration) {
			clog.Info().Int("phase", c.cycle.Position()).Msg("Stop requested")
			return nil
		}
		c.cycle.Advance()
	}
}

// show switches everything off, then lights exactly the phase's roles.
// Nothing from the previous phase can still be lit when the new lamps come on.
func (c *Controller) show(p Phase) error {
	if err := c.backend.ClearMask(c.pinout.All()); err != nil {
		return fmt.Errorf("clear lights for %s: %w", p, err)
	}
	if err := c.backend.SetMask(c.pinout.Mask(p.Lit()...)); err != nil {
		return fmt.Errorf("set lights for %s: %w", p, err)
	}
	return nil
}

func (c *Controller) shutdown(all gpio.Mask) error {
	clog.Info().Msg("Switching off lights")

	var errs []error
	if err := c.backend.ClearMask(all); err != nil {
		errs = append(errs, fmt.Errorf("switch off lights: %w", err))
	}
	if err := c.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close backend: %w", err))
	}
	return errors.Join(errs...)
}

// wait sleeps for d and reports false if ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Controller) publish(s Status) {
	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()

	c.history.Push(s)
	c.ps.Publish(s)

	clog.Debug().
		Int("cycle", s.Cycle).
		Int("phase", s.Phase).
		Stringer("street_a", s.StreetA).
		Stringer("street_b", s.StreetB).
		Msg("Entered phase")

	for _, fn := range c.observers {
		fn(s)
	}
}

// Status returns the phase being shown. The zero Status means Run has not
// lit anything yet.
func (c *Controller) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()

	return c.status
}

// History returns recent phase transitions, oldest first.
func (c *Controller) History() []Status {
	return c.history.Slice()
}

// Subscribe streams phase transitions. The returned func unsubscribes. The
// channel closes when Run returns.
func (c *Controller) Subscribe() (func(), <-chan Status) {
	id, ch := c.ps.Subscribe(8)
	return func() {
		c.ps.Unsubscribe(id)
	}, ch
}
