package intersection_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gregoryjjb/stoplight/gpio"
	"gregoryjjb/stoplight/intersection"
)

var errWrite = errors.New("bus fault")

// recordingBackend wraps the simulation and logs every call in order.
type recordingBackend struct {
	*gpio.SimulatedBackend

	mu    sync.Mutex
	calls []string

	failConfigure bool
	failSetAfter  int
	sets          int
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{SimulatedBackend: gpio.NewSimulatedBackend()}
}

func (r *recordingBackend) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recordingBackend) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingBackend) count(call string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (r *recordingBackend) ConfigureOutput(pins ...gpio.Pin) error {
	r.record("configure %s", gpio.MaskOf(pins...))
	if r.failConfigure {
		return gpio.ErrInvalidPin
	}
	return r.SimulatedBackend.ConfigureOutput(pins...)
}

func (r *recordingBackend) SetMask(m gpio.Mask) error {
	r.record("set %s", m)
	r.sets++
	if r.failSetAfter > 0 && r.sets >= r.failSetAfter {
		return errWrite
	}
	return r.SimulatedBackend.SetMask(m)
}

func (r *recordingBackend) ClearMask(m gpio.Mask) error {
	r.record("clear %s", m)
	return r.SimulatedBackend.ClearMask(m)
}

func (r *recordingBackend) Close() error {
	r.record("close")
	return r.SimulatedBackend.Close()
}

var (
	pinout   = intersection.DefaultPinout()
	allPins  = pinout.All().String()
	fastTime = intersection.Timing{
		Green:  2 * time.Millisecond,
		Yellow: time.Millisecond,
		Buffer: time.Millisecond,
	}
)

func TestControllerSequence(t *testing.T) {
	backend := newRecordingBackend()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var seen []intersection.Status
	var lit []gpio.Mask
	var writes []int
	c, err := intersection.NewController(backend, pinout, fastTime,
		intersection.WithObserver(func(s intersection.Status) {
			seen = append(seen, s)
			lit = append(lit, backend.Levels())
			writes = append(writes, backend.Writes())
			if len(seen) == 2*intersection.PhaseCount+1 {
				cancel()
			}
		}),
	)
	require.NoError(t, err)

	require.NoError(t, c.Run(ctx))
	require.Len(t, seen, 2*intersection.PhaseCount+1)

	for i, s := range seen {
		assert.Equal(t, i%intersection.PhaseCount, s.Phase)
		assert.Equal(t, i/intersection.PhaseCount+1, s.Cycle)
	}

	a, b := intersection.StreetA, intersection.StreetB
	role := intersection.RoleFor
	assert.Equal(t, pinout.Mask(role(a, intersection.Green), role(b, intersection.Red)), lit[0])
	assert.Equal(t, pinout.Mask(role(a, intersection.Yellow), role(b, intersection.Red)), lit[1])
	assert.Equal(t, pinout.Mask(role(a, intersection.Red), role(b, intersection.Red)), lit[2])
	assert.Equal(t, pinout.Mask(role(a, intersection.Red), role(b, intersection.Green)), lit[3])
	assert.Equal(t, pinout.Mask(role(a, intersection.Red), role(b, intersection.Yellow)), lit[4])
	assert.Equal(t, pinout.Mask(role(a, intersection.Red), role(b, intersection.Red)), lit[5])
	assert.Equal(t, lit[0], lit[6])

	// One initial clear, then exactly two writes per phase.
	for i, n := range writes {
		assert.Equal(t, 1+2*(i+1), n, "phase %d", i)
	}

	// Every phase change is all-off then one set of at most two pins.
	calls := backend.Calls()
	require.GreaterOrEqual(t, len(calls), 4)
	assert.Equal(t, "configure "+allPins, calls[0])
	assert.Equal(t, "clear "+allPins, calls[1])
	for i := 2; i < len(calls)-2; i += 2 {
		assert.Equal(t, "clear "+allPins, calls[i])
		assert.Regexp(t, `^set \[\d+ \d+\]$`, calls[i+1])
	}
	assert.Equal(t, []string{"clear " + allPins, "close"}, calls[len(calls)-2:])

	assert.Equal(t, seen[len(seen)-1], c.Status())
	assert.Equal(t, seen, c.History())
}

func TestControllerCancelDuringEachPhase(t *testing.T) {
	for phase := 0; phase < intersection.PhaseCount; phase++ {
		t.Run(fmt.Sprintf("Phase%d", phase), func(t *testing.T) {
			backend := newRecordingBackend()
			ctx, cancel := context.WithCancel(context.Background())
			t.Cleanup(cancel)

			c, err := intersection.NewController(backend, pinout, fastTime,
				intersection.WithObserver(func(s intersection.Status) {
					if s.Phase == phase {
						cancel()
					}
				}),
			)
			require.NoError(t, err)
			require.NoError(t, c.Run(ctx))

			calls := backend.Calls()
			assert.Equal(t, []string{"clear " + allPins, "close"}, calls[len(calls)-2:])
			assert.Equal(t, 1, backend.count("close"))
			assert.Equal(t, phase+1, backend.sets, "no phase skipped or repeated")
			assert.Equal(t, phase, c.Status().Phase)
			assert.Zero(t, backend.Levels())
		})
	}
}

func TestControllerCancelledBeforeStart(t *testing.T) {
	backend := newRecordingBackend()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := intersection.NewController(backend, pinout, fastTime)
	require.NoError(t, err)
	require.NoError(t, c.Run(ctx))

	assert.Equal(t, []string{
		"configure " + allPins,
		"clear " + allPins,
		"clear " + allPins,
		"close",
	}, backend.Calls())
	assert.Zero(t, c.Status())
}

func TestControllerWaitIsPreemptible(t *testing.T) {
	backend := newRecordingBackend()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c, err := intersection.NewController(backend, pinout, intersection.Timing{
		Green:  time.Hour,
		Yellow: time.Hour,
		Buffer: time.Hour,
	})
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	require.NoError(t, c.Run(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, backend.count("close"))
}

func TestControllerWriteFailure(t *testing.T) {
	backend := newRecordingBackend()
	backend.failSetAfter = 3

	c, err := intersection.NewController(backend, pinout, fastTime)
	require.NoError(t, err)

	err = c.Run(context.Background())
	assert.ErrorIs(t, err, errWrite)

	calls := backend.Calls()
	assert.Equal(t, []string{"clear " + allPins, "close"}, calls[len(calls)-2:])
	assert.Equal(t, 1, backend.count("close"))
	assert.Equal(t, 3, backend.sets)
}

func TestControllerConfigureFailure(t *testing.T) {
	backend := newRecordingBackend()
	backend.failConfigure = true

	c, err := intersection.NewController(backend, pinout, fastTime)
	require.NoError(t, err)

	err = c.Run(context.Background())
	assert.ErrorIs(t, err, gpio.ErrInvalidPin)
	assert.Equal(t, []string{"configure " + allPins, "close"}, backend.Calls())
}

func TestControllerRunsOnce(t *testing.T) {
	backend := newRecordingBackend()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := intersection.NewController(backend, pinout, fastTime)
	require.NoError(t, err)
	require.NoError(t, c.Run(ctx))
	assert.ErrorIs(t, c.Run(ctx), intersection.ErrAlreadyRun)
}

func TestControllerConcurrentRun(t *testing.T) {
	backend := newRecordingBackend()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c, err := intersection.NewController(backend, pinout, fastTime)
	require.NoError(t, err)

	const runners = 4
	errs := make(chan error, runners)
	for i := 0; i < runners; i++ {
		go func() { errs <- c.Run(ctx) }()
	}

	// Losers return straight away; the winner runs until cancelled.
	for i := 0; i < runners-1; i++ {
		assert.ErrorIs(t, <-errs, intersection.ErrAlreadyRun)
	}
	cancel()
	assert.NoError(t, <-errs)
	assert.Equal(t, 1, backend.count("close"))
}

func TestControllerSubscribe(t *testing.T) {
	backend := newRecordingBackend()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c, err := intersection.NewController(backend, pinout, fastTime,
		intersection.WithObserver(func(s intersection.Status) {
			if s.Phase == 2 {
				cancel()
			}
		}),
	)
	require.NoError(t, err)

	unsubscribe, ch := c.Subscribe()
	defer unsubscribe()

	require.NoError(t, c.Run(ctx))

	var phases []int
	for s := range ch {
		phases = append(phases, s.Phase)
	}
	assert.Equal(t, []int{0, 1, 2}, phases)
}
