package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"gregoryjjb/stoplight/gpio"
	"gregoryjjb/stoplight/intersection"
)

const DefaultConfigPath = "/etc/stoplight.toml"

// Backend strategy names accepted in the backends list.
const (
	BackendChardev   = "chardev"
	BackendGPIOMem   = "gpiomem"
	BackendMem       = "mem"
	BackendRpio      = "rpio"
	BackendSimulated = "simulated"
)

var (
	defaultBackends = []string{BackendChardev, BackendGPIOMem, BackendMem}
	// Pi 5 exposes the header on gpiochip4 with older kernels and on
	// gpiochip0 with newer ones.
	defaultChips = []string{"/dev/gpiochip4", "/dev/gpiochip0"}
	// Physical GPIO block addresses to try through /dev/mem.
	defaultMemBases = []int64{0x1f00000000 + 0xd0000, 0xfe000000 + 0xd0000}
)

func GetEnvOr(getenv func(string) string, key string, fallback string) string {
	value := getenv(key)
	if value == "" {
		value = fallback
	}
	return value
}

// Config is read once at startup and never changes afterwards.
type Config struct {
	Path       string
	Backends   []string
	Chips      []string
	MemBases   []int64
	Consumer   string
	StatusAddr string
	LogLevel   zerolog.Level
	Pinout     intersection.Pinout
	Timing     intersection.Timing
}

type tomlConfig struct {
	Backends   []string   `toml:"backends"`
	Chips      []string   `toml:"chips"`
	MemBases   []int64    `toml:"mem_bases"`
	Consumer   string     `toml:"consumer"`
	StatusAddr string     `toml:"status_addr"`
	LogLevel   string     `toml:"log_level"`
	Pins       tomlPins   `toml:"pins"`
	Timing     tomlTiming `toml:"timing"`
}

type tomlPins struct {
	ARed    int `toml:"a_red"`
	AYellow int `toml:"a_yellow"`
	AGreen  int `toml:"a_green"`
	BRed    int `toml:"b_red"`
	BYellow int `toml:"b_yellow"`
	BGreen  int `toml:"b_green"`
}

type tomlTiming struct {
	Green  duration `toml:"green"`
	Yellow duration `toml:"yellow"`
	Buffer duration `toml:"buffer"`
}

// duration reads Go duration strings such as "5s" or "750ms".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func defaultTomlConfig() tomlConfig {
	pinout := intersection.DefaultPinout()
	pin := func(r intersection.Role) int { return int(pinout.Pin(r)) }
	timing := intersection.DefaultTiming()

	return tomlConfig{
		Backends: append([]string(nil), defaultBackends...),
		Chips:    append([]string(nil), defaultChips...),
		MemBases: append([]int64(nil), defaultMemBases...),
		Consumer: "stoplight",
		LogLevel: zerolog.LevelInfoValue,
		Pins: tomlPins{
			ARed:    pin(intersection.StreetARed),
			AYellow: pin(intersection.StreetAYellow),
			AGreen:  pin(intersection.StreetAGreen),
			BRed:    pin(intersection.StreetBRed),
			BYellow: pin(intersection.StreetBYellow),
			BGreen:  pin(intersection.StreetBGreen),
		},
		Timing: tomlTiming{
			Green:  duration{timing.Green},
			Yellow: duration{timing.Yellow},
			Buffer: duration{timing.Buffer},
		},
	}
}

// NewConfig loads the TOML file named by STOPLIGHT_CONFIG (default
// /etc/stoplight.toml) from fsys and applies environment overrides. A
// missing default file means built-in defaults.
func NewConfig(fsys afero.Fs, getenv func(string) string) (*Config, error) {
	raw := defaultTomlConfig()

	path := GetEnvOr(getenv, "STOPLIGHT_CONFIG", DefaultConfigPath)
	data, err := afero.ReadFile(fsys, path)
	switch {
	case err == nil:
		dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && getenv("STOPLIGHT_CONFIG") == "":
		path = ""
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	raw.StatusAddr = GetEnvOr(getenv, "STOPLIGHT_STATUS_ADDR", raw.StatusAddr)
	raw.LogLevel = GetEnvOr(getenv, "LOG_LEVEL", raw.LogLevel)
	if backends := getenv("STOPLIGHT_BACKENDS"); backends != "" {
		raw.Backends = splitList(backends)
	}

	return raw.build(path)
}

func (raw tomlConfig) build(path string) (*Config, error) {
	if len(raw.Backends) == 0 {
		return nil, errors.New("at least one backend is required")
	}
	for _, b := range raw.Backends {
		switch b {
		case BackendChardev, BackendGPIOMem, BackendMem, BackendRpio, BackendSimulated:
		default:
			return nil, fmt.Errorf("unknown backend %q", b)
		}
	}

	level, err := zerolog.ParseLevel(raw.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	pinout, err := intersection.NewPinout(map[intersection.Role]gpio.Pin{
		intersection.StreetARed:    gpio.Pin(raw.Pins.ARed),
		intersection.StreetAYellow: gpio.Pin(raw.Pins.AYellow),
		intersection.StreetAGreen:  gpio.Pin(raw.Pins.AGreen),
		intersection.StreetBRed:    gpio.Pin(raw.Pins.BRed),
		intersection.StreetBYellow: gpio.Pin(raw.Pins.BYellow),
		intersection.StreetBGreen:  gpio.Pin(raw.Pins.BGreen),
	})
	if err != nil {
		return nil, err
	}

	timing := intersection.Timing{
		Green:  raw.Timing.Green.Duration,
		Yellow: raw.Timing.Yellow.Duration,
		Buffer: raw.Timing.Buffer.Duration,
	}
	if err := timing.Validate(); err != nil {
		return nil, err
	}

	return &Config{
		Path:       path,
		Backends:   raw.Backends,
		Chips:      raw.Chips,
		MemBases:   raw.MemBases,
		Consumer:   raw.Consumer,
		StatusAddr: raw.StatusAddr,
		LogLevel:   level,
		Pinout:     pinout,
		Timing:     timing,
	}, nil
}

// Candidates lists the acquisition attempts in configured order.
func (c *Config) Candidates() []gpio.Candidate {
	var candidates []gpio.Candidate
	for _, b := range c.Backends {
		switch b {
		case BackendChardev:
			candidates = append(candidates, gpio.ChardevCandidates(c.Chips, c.Consumer)...)
		case BackendGPIOMem:
			candidates = append(candidates, gpio.RegisterCandidates("/dev/gpiomem", []int64{0})...)
		case BackendMem:
			candidates = append(candidates, gpio.RegisterCandidates("/dev/mem", c.MemBases)...)
		case BackendRpio:
			candidates = append(candidates, gpio.RpioCandidate())
		case BackendSimulated:
			candidates = append(candidates, gpio.SimulatedCandidate())
		}
	}
	return candidates
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
