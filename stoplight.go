package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/stoplight/gpio"
	"gregoryjjb/stoplight/intersection"
	"gregoryjjb/stoplight/status"
)

func init() {
	InitializeLogger()
}

// Populated by ldflags
var (
	version            string
	buildUnixTimestamp string
	commitHash         string
)

func main() {
	os.Exit(run())
}

func run() int {
	ts, _ := strconv.ParseInt(buildUnixTimestamp, 10, 64)
	buildTime := time.Unix(ts, 0)

	versionFlag := flag.Bool("version", false, "Print version")
	systemdFlag := flag.Bool("systemd", false, "Print systemd service file")
	flag.Parse()

	if *versionFlag {
		fmt.Println("Stoplight version:", version)
		fmt.Println("Built on:", buildTime)
		fmt.Println("Commit hash:", commitHash)
		return 0
	}

	if *systemdFlag {
		if err := SystemdServiceFile(os.Stdout, os.Getenv); err != nil {
			log.Err(err).Msg("Could not render service file")
			return 1
		}
		return 0
	}

	// The signal only cancels ctx; all cleanup runs on the controller path.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", version).
		Str("build_timestamp", buildTime.Format(time.RFC3339)).
		Str("commit_hash", commitHash).
		Msg("Initializing Stoplight")

	config, err := NewConfig(newOSFS(), os.Getenv)
	if err != nil {
		log.Err(err).Msg("Config initialization failed")
		return 1
	}
	zerolog.SetGlobalLevel(config.LogLevel)

	logConfig(config)

	backend, err := gpio.Acquire(config.Candidates())
	if err != nil {
		log.Err(err).Msg("No GPIO backend could be opened. Run as root (or a member of the gpio group) and check that /dev/gpiochip* or /dev/gpiomem exist")
		return 1
	}

	controller, err := intersection.NewController(backend, config.Pinout, config.Timing,
		intersection.WithObserver(consoleObserver(os.Stdout)),
	)
	if err != nil {
		log.Err(err).Msg("Controller initialization failed")
		backend.Close()
		return 1
	}

	if config.StatusAddr != "" {
		router := status.NewRouter(controller, LoggerMiddleware(&log.Logger))
		go func() {
			if err := status.Serve(ctx, config.StatusAddr, router); err != nil {
				log.Err(err).Msg("Status server closed with error")
			}
		}()
	}

	log.Info().Msg("Press Ctrl+C to exit")
	if err := controller.Run(ctx); err != nil {
		log.Err(err).Msg("Traffic light stopped on error")
		return 1
	}

	log.Info().Msg("Traffic light stopped. Stay safe out there!")
	return 0
}

func logConfig(config *Config) {
	pins := zerolog.Dict()
	for _, r := range intersection.Roles() {
		pins.Int(r.String(), int(config.Pinout.Pin(r)))
	}

	log.Info().
		Str("config", config.Path).
		Strs("backends", config.Backends).
		Dict("pins", pins).
		Dur("green", config.Timing.Green).
		Dur("yellow", config.Timing.Yellow).
		Dur("buffer", config.Timing.Buffer).
		Msg("Configuration loaded")
}
