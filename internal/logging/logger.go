// Package logging provides structured logging for factgate using zerolog.
//
//	log := logging.Default()
//	log.Info().Str("claim_id", id).Str("status", "PASS").Msg("reconciled")
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu            sync.RWMutex
	defaultLogger = NewLoggerFromConfig(envConfig())
)

// envConfig reads LOG_LEVEL and LOG_FORMAT for the process-start logger
func envConfig() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Format = v
	}
	return cfg
}

// Default returns the default logger
func Default() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := defaultLogger
	return &l
}

// SetDefault sets the default logger
func SetDefault(logger zerolog.Logger) {
	mu.Lock()
	defaultLogger = logger
	mu.Unlock()
	log.Logger = logger
}

// New creates a JSON logger writing to w, used by tests to capture output
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
