package probe

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"llmprobe/internal/config"
)

// logger writes diagnostics to stderr. Pass/fail report lines never go
// through it; they are written to the command's stdout by the Reporter.
var logger = newLogger(os.Stderr)

func init() {
	// default from env if present
	SetLogLevel(config.EnvStr("LLMPROBE_LOG_LEVEL", "info"))
}

func newLogger(w io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: !isTerminal(w)}
	return zerolog.New(cw).With().Timestamp().Logger()
}

// isTerminal is false for pipes and files so CI logs stay free of ANSI codes.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetLogLevel accepts debug|info|warn|error; anything else means info.
func SetLogLevel(level string) {
	logger = logger.Level(parseLevel(level))
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error", "err":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func debug(format string, a ...any) { logger.Debug().Msgf(format, a...) }
func info(format string, a ...any)  { logger.Info().Msgf(format, a...) }
func warn(format string, a ...any)  { logger.Warn().Msgf(format, a...) }
