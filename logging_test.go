package main_test

import (
	"bytes"
	stoplight "gregoryjjb/stoplight"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusLineBreaksBeforeLogs(t *testing.T) {
	var buf bytes.Buffer
	w := stoplight.NewThreadSafeWriter(&buf)

	stoplight.WriteStatusLine(&buf, "[Cycle 001] green")
	stoplight.WriteStatusLine(&buf, "[Cycle 001] yellow")

	_, err := w.Write([]byte("log one\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("log two\n"))
	require.NoError(t, err)

	assert.Equal(t, "\r[Cycle 001] green\r[Cycle 001] yellow\nlog one\nlog two\n", buf.String())
}
