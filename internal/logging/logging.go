// Package logging backs the teacher's small Logger interface
// (Debug/Info/Warn/Error) with logrus and lumberjack-based file rotation,
// grounded on saurabh1e-entgo-microservices/pkg/logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the interface the rest of the module depends on; composer,
// superschema, and the transports take one of these rather than *logrus.Logger
// directly so tests can substitute a no-op implementation.
type Logger interface {
	Debug(msg string, tags ...interface{})
	Info(msg string, tags ...interface{})
	Warn(msg string, tags ...interface{})
	Error(msg string, tags ...interface{})
}

// Config controls log level, destination, and rotation.
type Config struct {
	Level      string // debug, info, warn, error
	FilePath   string // empty means stdout only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds a Logger per cfg. When cfg.FilePath is set, output is written
// to both stdout and a rotating file via lumberjack; otherwise stdout only.
func New(cfg Config) Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	var out io.Writer = os.Stdout
	if cfg.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
	}
	l.SetOutput(out)

	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

func (l *logrusLogger) withTags(tags ...interface{}) *logrus.Entry {
	if len(tags) == 0 {
		return l.entry
	}
	fields := make(logrus.Fields, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		key, ok := tags[i].(string)
		if !ok {
			continue
		}
		fields[key] = tags[i+1]
	}
	return l.entry.WithFields(fields)
}

func (l *logrusLogger) Debug(msg string, tags ...interface{}) { l.withTags(tags...).Debug(msg) }
func (l *logrusLogger) Info(msg string, tags ...interface{})  { l.withTags(tags...).Info(msg) }
func (l *logrusLogger) Warn(msg string, tags ...interface{})  { l.withTags(tags...).Warn(msg) }
func (l *logrusLogger) Error(msg string, tags ...interface{}) { l.withTags(tags...).Error(msg) }

// Nop is a Logger that discards everything, useful in tests.
type Nop struct{}

func (Nop) Debug(string, ...interface{}) {}
func (Nop) Info(string, ...interface{})  {}
func (Nop) Warn(string, ...interface{})  {}
func (Nop) Error(string, ...interface{}) {}

var _ Logger = (*logrusLogger)(nil)
var _ Logger = Nop{}
