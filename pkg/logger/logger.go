package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yielddelta/backtester/pkg/config"
)

// Logger wraps zerolog. Reports own stdout, so log lines go to stderr.
type Logger struct {
	zlog zerolog.Logger
}

// New builds the process logger from LOG_LEVEL, LOG_FORMAT and ENV.
// "console" and "pretty" formats are human readable; anything else is JSON.
func New(cfg *config.Config) *Logger {
	var out io.Writer = os.Stderr
	switch cfg.LogFormat {
	case "console", "pretty":
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	zerolog.SetGlobalLevel(parseLogLevel(cfg.LogLevel))

	return &Logger{
		zlog: zerolog.New(out).With().Timestamp().Str("env", cfg.Env).Logger(),
	}
}

// NewWithWriter logs JSON to w at level without touching the global level.
func NewWithWriter(w io.Writer, level string) *Logger {
	return &Logger{
		zlog: zerolog.New(w).Level(parseLogLevel(level)).With().Timestamp().Logger(),
	}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// parseLogLevel maps a level name to zerolog; unknown names mean info.
func parseLogLevel(name string) zerolog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }

func (l *Logger) Info(msg string) { l.zlog.Info().Msg(msg) }

func (l *Logger) Warn(msg string) { l.zlog.Warn().Msg(msg) }

func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }

// WithField returns a child logger carrying key.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zlog: l.zlog.With().Interface(key, value).Logger()}
}

// WithFields returns a child logger carrying every entry of fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	c := l.zlog.With()
	for k, v := range fields {
		c = c.Interface(k, v)
	}
	return &Logger{zlog: c.Logger()}
}

// WithError returns a child logger with the "error" field set.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger()}
}
