package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35
	colorBold    = 1
)

func colorize(s interface{}, c int, disabled bool) string {
	if disabled {
		return fmt.Sprintf("%s", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// levelStyles maps zerolog levels to a fixed-width label and its colors,
// applied innermost first.
var levelStyles = map[string]struct {
	label  string
	colors []int
}{
	zerolog.LevelTraceValue: {"TRACE", []int{colorMagenta}},
	zerolog.LevelDebugValue: {"DEBUG", []int{colorYellow}},
	zerolog.LevelInfoValue:  {"INFO ", []int{colorGreen}},
	zerolog.LevelWarnValue:  {"WARN ", []int{colorRed}},
	zerolog.LevelErrorValue: {"ERROR", []int{colorRed, colorBold}},
	zerolog.LevelFatalValue: {"FATAL", []int{colorRed, colorBold}},
	zerolog.LevelPanicValue: {"PANIC", []int{colorRed, colorBold}},
}

func formatLevel(noColor bool) zerolog.Formatter {
	return func(i interface{}) string {
		ll, ok := i.(string)
		if !ok {
			if i == nil {
				return fmt.Sprintf("| %s |", colorize("???  ", colorBold, noColor))
			}
			return fmt.Sprintf("| %s |", strings.ToUpper(fmt.Sprintf("%-5s", i))[0:5])
		}

		style, known := levelStyles[ll]
		if !known {
			return fmt.Sprintf("| %s |", colorize(ll, colorBold, noColor))
		}
		l := style.label
		for _, c := range style.colors {
			l = colorize(l, c, noColor)
		}
		return fmt.Sprintf("| %s |", l)
	}
}

// stdout is shared by the log writer and the live status line. While the
// status line is showing, the cursor sits at its end, so a log entry first
// moves to a fresh line.
var (
	globalStdoutMutex sync.Mutex
	statusLineOpen    bool
)

type ThreadSafeWriter struct {
	w io.Writer
}

func (tsw ThreadSafeWriter) Write(p []byte) (int, error) {
	globalStdoutMutex.Lock()
	defer globalStdoutMutex.Unlock()

	if statusLineOpen {
		statusLineOpen = false
		if _, err := io.WriteString(tsw.w, "\n"); err != nil {
			return 0, err
		}
	}
	return tsw.w.Write(p)
}

func NewThreadSafeWriter(w io.Writer) ThreadSafeWriter {
	return ThreadSafeWriter{w: w}
}

// WriteStatusLine redraws the in-place status line on w.
func WriteStatusLine(w io.Writer, line string) {
	globalStdoutMutex.Lock()
	defer globalStdoutMutex.Unlock()

	io.WriteString(w, "\r"+line)
	statusLineOpen = true
}

func InitializeLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Journald and pipes get plain text.
	noColor := !isatty.IsTerminal(os.Stdout.Fd())

	output := zerolog.ConsoleWriter{
		Out:         NewThreadSafeWriter(colorable.NewColorable(os.Stdout)),
		TimeFormat:  time.RFC3339,
		NoColor:     noColor,
		FormatLevel: formatLevel(noColor),
	}

	log.Logger = log.Output(output)
}

// LoggerMiddleware logs each status API request and turns handler panics
// into 500s.
func LoggerMiddleware(logger *zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			log := logger.With().Str("component", "http").Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			t1 := time.Now()
			defer func() {
				t2 := time.Now()

				if rec := recover(); rec != nil {
					log.Error().
						Interface("recover_info", rec).
						Bytes("debug_stack", debug.Stack()).
						Msg("HTTP endpoint panic")

					http.Error(ww, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}

				log.Debug().
					Str("remote_ip", r.RemoteAddr).
					Str("url", r.URL.Path).
					Str("method", r.Method).
					Int("status", ww.Status()).
					Float64("latency_ms", float64(t2.Sub(t1).Nanoseconds())/1000000.0).
					Int("bytes_out", ww.BytesWritten()).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
