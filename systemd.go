package main

import (
	_ "embed"
	"io"
	"os"
	"text/template"
)

//go:embed stoplight.service
var stoplightServiceEmbed string

type StoplightServiceParams struct {
	BinaryPath string
	User       string
	ConfigPath string
}

// SystemdServiceFile writes a unit file that starts the current binary.
// GPIO access needs root, so the unit runs as root. STOPLIGHT_CONFIG is
// carried into the unit only when it names a non-default file, so a fresh
// install without a config file still starts on defaults.
func SystemdServiceFile(w io.Writer, getenv func(string) string) error {
	path, err := os.Executable()
	if err != nil {
		return err
	}

	configPath := getenv("STOPLIGHT_CONFIG")
	if configPath == DefaultConfigPath {
		configPath = ""
	}

	return writeServiceFile(w, StoplightServiceParams{
		BinaryPath: path,
		User:       "root",
		ConfigPath: configPath,
	})
}

func writeServiceFile(w io.Writer, params StoplightServiceParams) error {
	tmpl, err := template.New("stoplight.service").Parse(stoplightServiceEmbed)
	if err != nil {
		return err
	}
	return tmpl.Execute(w, params)
}
