package main_test

import (
	"bufio"
	"bytes"
	stoplight "gregoryjjb/stoplight"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderUnit(t *testing.T, env map[string]string) string {
	var buf bytes.Buffer
	require.NoError(t, stoplight.SystemdServiceFile(&buf, func(s string) string { return env[s] }))
	return buf.String()
}

// unitEnvironment collects the Environment= assignments of a unit file.
func unitEnvironment(unit string) map[string]string {
	env := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(unit))
	for scanner.Scan() {
		assignment, ok := strings.CutPrefix(scanner.Text(), "Environment=")
		if !ok {
			continue
		}
		if key, value, ok := strings.Cut(assignment, "="); ok {
			env[key] = value
		}
	}
	return env
}

func TestSystemdServiceFile(t *testing.T) {
	unit := renderUnit(t, map[string]string{})

	assert.Contains(t, unit, "ExecStart=/")
	assert.Contains(t, unit, "User=root")
	assert.Contains(t, unit, "KillSignal=SIGINT")
	assert.NotContains(t, unit, "{{")
	assert.NotContains(t, unit, "STOPLIGHT_CONFIG")
}

func TestSystemdServiceStartsWithoutConfigFile(t *testing.T) {
	for _, configured := range []string{"", stoplight.DefaultConfigPath} {
		unit := renderUnit(t, map[string]string{"STOPLIGHT_CONFIG": configured})
		env := unitEnvironment(unit)

		c, err := stoplight.NewConfig(stoplight.NewMemFS(), func(s string) string { return env[s] })
		require.NoError(t, err, "STOPLIGHT_CONFIG=%q", configured)
		assert.Equal(t, "", c.Path)
	}
}

func TestSystemdServiceCarriesCustomConfig(t *testing.T) {
	unit := renderUnit(t, map[string]string{"STOPLIGHT_CONFIG": "/opt/stoplight/stoplight.toml"})

	assert.Equal(t,
		map[string]string{"STOPLIGHT_CONFIG": "/opt/stoplight/stoplight.toml"},
		unitEnvironment(unit))
}
