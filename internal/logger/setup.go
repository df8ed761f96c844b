package logger

import (
	"io"
	"os"

	"github.com/seqrelay/seqrelay/internal/errors"
)

// Setup initializes the default logger from CLI flags. Quiet wins over
// verbose. When a log file is given it replaces stderr as the sink and
// colors are disabled.
func Setup(verbose, quiet, jsonFormat, noColor bool, logFile string) error {
	level := InfoLevel
	if verbose {
		level = DebugLevel
	}
	if quiet {
		level = ErrorLevel
	}

	var out io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.E(errors.Op("logger.Setup"), errors.KindIO, err, "opening log file")
		}
		out = f
		noColor = true
	}

	return Init(&Config{
		Level:      level,
		Output:     out,
		JSON:       jsonFormat,
		NoColor:    noColor,
		TimeFormat: "15:04:05",
	})
}
