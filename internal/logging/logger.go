// README: zerolog logger construction from config (level, format, output).
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"staybook/internal/config"
)

// New constructs a zerolog logger from config.
// Defaults to JSON, info level, stdout when fields are empty or unknown.
func New(cfg config.LoggingConfig, app config.AppConfig) zerolog.Logger {
	return newWithWriter(cfg, app, nil)
}

func newWithWriter(cfg config.LoggingConfig, app config.AppConfig, w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}

	output := w
	if output == nil {
		output = io.Writer(os.Stdout)
		if strings.EqualFold(strings.TrimSpace(cfg.Output), "stderr") {
			output = os.Stderr
		}
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339, NoColor: w != nil}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()
}
