package gpio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gregoryjjb/stoplight/gpio"
)

func TestSimulatedBackend(t *testing.T) {
	b := gpio.NewSimulatedBackend()
	require.NoError(t, b.ConfigureOutput(lightPins...))

	for _, p := range lightPins {
		require.NoError(t, b.SetHigh(p))
		require.NoError(t, b.SetLow(p))

		high, err := b.Level(p)
		require.NoError(t, err)
		assert.False(t, high, "pin %d", p)
	}

	require.NoError(t, b.SetMask(gpio.MaskOf(17, 23)))
	assert.Equal(t, gpio.MaskOf(17, 23), b.Levels())

	assert.ErrorIs(t, b.SetHigh(4), gpio.ErrInvalidPin)

	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Close(), gpio.ErrClosed)
}

func TestMask(t *testing.T) {
	m := gpio.MaskOf(25, 17, 22)
	assert.Equal(t, []gpio.Pin{17, 22, 25}, m.Pins())
	assert.True(t, m.Has(22))
	assert.False(t, m.Has(23))
	assert.False(t, m.Has(-1))
	assert.Equal(t, "[17 22 25]", m.String())
	assert.Equal(t, "[]", gpio.Mask(0).String())
}
