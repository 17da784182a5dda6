package utils

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger. Logging is off unless
// debug is set or a logFile is given; the live display owns the terminal.
// Logs go to stderr unless logFile is set, in which case they are appended
// to that file.
func InitLogger(debug bool, logFile string) error {
	switch {
	case debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case logFile != "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}
	var out io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		out = f
	}
	SetLogOutput(out)
	return nil
}

// GetLogger returns a logger tagged with op, the same key call sites use.
func GetLogger(op string) zerolog.Logger {
	return log.With().Str("op", op).Logger()
}

func SetLogOutput(w io.Writer) {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
		NoColor:    w != os.Stderr,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}
