package gfs

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates a logger instance with a specified level and
// output, following the teacher's NewLogger shape.
func NewLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("lib", "gfs").
		Logger()
}

var (
	loggerMu sync.RWMutex
	logger   = NewLogger(os.Stderr, zerolog.WarnLevel)
)

// Logger returns the package-wide logger. The staging-engine and merge
// operations do not write log records to it themselves.
func Logger() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetLogger replaces the package-wide logger, e.g. to raise verbosity
// or redirect output in an embedding application.
func SetLogger(l zerolog.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}
