// Package logger provides JSON structured logging using zerolog: a
// Config loaded once per process and a small
// wrapper that component constructors take by value instead of reaching
// for a package-level global.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the process-wide logger.
type Config struct {
	Level  string `json:"level"`
	Debug  bool   `json:"debug"`
	Output string `json:"output"`
}

// Logger wraps a zerolog.Logger so component code depends on this package,
// not directly on zerolog.
type Logger struct {
	zerolog.Logger
}

// New builds a Logger from cfg. An empty/zero Config yields a sane default
// (info level, stdout).
func New(cfg Config) Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	level := zerolog.InfoLevel

	if cfg.Debug {
		level = zerolog.DebugLevel
	} else if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	return Logger{Logger: zerolog.New(out).Level(level).With().Timestamp().Logger()}
}

// Component returns a sub-logger tagged with the owning component name,
// so every line in a worker process is attributable to its class.
func (l Logger) Component(name string) Logger {
	return Logger{Logger: l.With().Str("component", name).Logger()}
}
