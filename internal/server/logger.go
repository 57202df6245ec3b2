package server

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
)

// Logger interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// LogConfig selects the logging backend and its output.
type LogConfig struct {
	Level   string `yaml:"level"`   // debug, info, warn, error
	Format  string `yaml:"format"`  // json or console
	Backend string `yaml:"backend"` // zerolog or logrus
}

// NewLogger builds the configured backend writing to w (stdout when nil).
func NewLogger(cfg LogConfig, w io.Writer) (Logger, error) {
	if w == nil {
		w = os.Stdout
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "zerolog":
		return newZeroLogger(cfg, w)
	case "logrus":
		return newLogrusLogger(cfg, w)
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
	}
}

// zeroLogger is the default backend
type zeroLogger struct {
	zl zerolog.Logger
}

func newZeroLogger(cfg LogConfig, w io.Writer) (*zeroLogger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}

	out := w
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05.000", NoColor: true}
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &zeroLogger{zl: zl}, nil
}

func (l *zeroLogger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }
func (l *zeroLogger) Info(msg string, fields ...Field)  { l.emit(l.zl.Info(), msg, fields) }
func (l *zeroLogger) Warn(msg string, fields ...Field)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *zeroLogger) Error(msg string, fields ...Field) { l.emit(l.zl.Error(), msg, fields) }

func (l *zeroLogger) emit(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			e = e.AnErr(f.Key, err)
			continue
		}
		e = e.Interface(f.Key, sanitizeValue(f.Value))
	}
	e.Msg(msg)
}

// logrusLogger backs Logger with logrus
type logrusLogger struct {
	l *logrus.Logger
}

func newLogrusLogger(cfg LogConfig, w io.Writer) (*logrusLogger, error) {
	l := logrus.New()
	l.SetOutput(w)

	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		l.SetLevel(level)
	}

	if cfg.Format == "console" {
		l.SetFormatter(&logrus.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return &logrusLogger{l: l}, nil
}

func (l *logrusLogger) Debug(msg string, fields ...Field) { l.entry(fields).Debug(msg) }
func (l *logrusLogger) Info(msg string, fields ...Field)  { l.entry(fields).Info(msg) }
func (l *logrusLogger) Warn(msg string, fields ...Field)  { l.entry(fields).Warn(msg) }
func (l *logrusLogger) Error(msg string, fields ...Field) { l.entry(fields).Error(msg) }

func (l *logrusLogger) entry(fields []Field) *logrus.Entry {
	lf := make(logrus.Fields, len(fields))
	for _, f := range fields {
		lf[f.Key] = sanitizeValue(f.Value)
	}
	return l.l.WithFields(lf)
}

// Don't log full values of long strings (header values, paths)
func sanitizeValue(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		if len(s) > 100 {
			return s[:100] + "...[truncated]"
		}
	}
	return v
}

// NullLogger discards all logs (for testing)
type NullLogger struct{}

func (n *NullLogger) Debug(msg string, fields ...Field) {}
func (n *NullLogger) Info(msg string, fields ...Field)  {}
func (n *NullLogger) Error(msg string, fields ...Field) {}
func (n *NullLogger) Warn(msg string, fields ...Field)  {}
