package mfsk

// Leveled logging for the modem and its programs.
//
// Library code takes a *log.Logger through an option and is silent apart
// from warnings when not given one.  Programs turn the level up with -d.

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

func NewLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{ //nolint:exhaustruct
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{ //nolint:exhaustruct
		Level: log.WarnLevel,
	})
}

func ParseLogLevel(s string) (log.Level, error) {
	return log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
}

// LevelForVerbosity maps a count of -d options to a level.
func LevelForVerbosity(debugCount int) log.Level {
	if debugCount > 0 {
		return log.DebugLevel
	}

	return log.InfoLevel
}
