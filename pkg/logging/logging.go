// Package logging is the process-wide logger: logrus with optional
// lumberjack file rotation, plus rate-limited loggers for hot paths.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the logging level
type Level logrus.Level

// Logging levels
const (
	DebugLevel Level = Level(logrus.DebugLevel)
	InfoLevel  Level = Level(logrus.InfoLevel)
	WarnLevel  Level = Level(logrus.WarnLevel)
	ErrorLevel Level = Level(logrus.ErrorLevel)
	FatalLevel Level = Level(logrus.FatalLevel)
	PanicLevel Level = Level(logrus.PanicLevel)
)

// ParseLevel maps a configuration string to a Level.
func ParseLevel(s string) (Level, error) {
	l, err := logrus.ParseLevel(s)
	if err != nil {
		return InfoLevel, err
	}
	return Level(l), nil
}

var logger = logrus.New()

func init() {
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stdout)
}

// SetLevel sets the logging level
func SetLevel(level Level) {
	logger.SetLevel(logrus.Level(level))
}

// SetFormatter sets the log formatter
func SetFormatter(formatter logrus.Formatter) {
	logger.SetFormatter(formatter)
}

// SetOutput sets the log output
func SetOutput(output io.Writer) {
	logger.SetOutput(output)
}

// EnableFileLogging tees the log into a rotated file under logDir.
func EnableFileLogging(logDir, logFile string, maxSize, maxBackups, maxAge int) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	rotateLogger := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, logFile),
		MaxSize:    maxSize,    // megabytes
		MaxBackups: maxBackups, // number of backups
		MaxAge:     maxAge,     // days
		Compress:   true,
	}

	logger.SetOutput(io.MultiWriter(os.Stdout, rotateLogger))
	return nil
}

// WithFields creates a new log entry with fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return logger.WithField("component", name)
}

// Debugf logs a debug message
func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// Infof logs an info message
func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// Warnf logs a warning message
func Warnf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// Errorf logs an error message
func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// Fatalf logs a fatal message and exits
func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

// InfoWithFields logs an info message with fields
func InfoWithFields(fields logrus.Fields, format string, args ...interface{}) {
	logger.WithFields(fields).Infof(format, args...)
}

// WarnWithFields logs a warning message with fields
func WarnWithFields(fields logrus.Fields, format string, args ...interface{}) {
	logger.WithFields(fields).Warnf(format, args...)
}

// ErrorWithFields logs an error message with fields
func ErrorWithFields(fields logrus.Fields, format string, args ...interface{}) {
	logger.WithFields(fields).Errorf(format, args...)
}

// Rate of messages a Limiter lets through, with the burst allowed on top.
var (
	limitEvery = rate.Limit(1)
	limitBurst = 5
)

// Limiter drops messages beyond a fixed rate and reports how many it
// suppressed with the next message that gets through.
type Limiter struct {
	key        string
	lim        *rate.Limiter
	mu         sync.Mutex
	suppressed uint64
}

var (
	limitersMu sync.Mutex
	limiters   = map[string]*Limiter{}
)

// Limited returns the shared Limiter for key.
func Limited(key string) *Limiter {
	limitersMu.Lock()
	defer limitersMu.Unlock()
	l, ok := limiters[key]
	if !ok {
		l = &Limiter{key: key, lim: rate.NewLimiter(limitEvery, limitBurst)}
		limiters[key] = l
	}
	return l
}

func (l *Limiter) allow() (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.lim.Allow() {
		l.suppressed++
		return 0, false
	}
	n := l.suppressed
	l.suppressed = 0
	return n, true
}

func (l *Limiter) entry(suppressed uint64) *logrus.Entry {
	e := logger.WithField("limit", l.key)
	if suppressed > 0 {
		e = e.WithField("suppressed", suppressed)
	}
	return e
}

// Warnf logs a warning unless the limiter's budget is spent.
func (l *Limiter) Warnf(format string, args ...interface{}) {
	if n, ok := l.allow(); ok {
		l.entry(n).Warnf(format, args...)
	}
}

// Infof logs an info message unless the limiter's budget is spent.
func (l *Limiter) Infof(format string, args ...interface{}) {
	if n, ok := l.allow(); ok {
		l.entry(n).Infof(format, args...)
	}
}
