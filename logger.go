// Package edgelog logs the START and END edges of HTTP exchanges, both
// incoming server requests and outgoing client calls, as structured records.
// Sensitive values are masked along configurable key paths before anything
// reaches a log sink.
package edgelog

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strings"
	"sync"
	"time"
)

// logLevel defines the severity level of a log entry.
type logLevel string

const (
	LogLevelOff      logLevel = "OFF"
	LogLevelCritical logLevel = "CRITICAL"
	LogLevelError    logLevel = "ERROR"
	LogLevelWarn     logLevel = "WARN"
	LogLevelInfo     logLevel = "INFO"
	LogLevelDebug    logLevel = "DEBUG"
	LogLevelAll      logLevel = "ALL"
)

type logLevelValue int

const (
	logLevelValueOff logLevelValue = iota
	logLevelValueCritical
	logLevelValueError
	logLevelValueWarn
	logLevelValueInfo
	logLevelValueDebug
)

const (
	logLevelValueAll logLevelValue = math.MaxInt32
)

var (
	std      = New()
	stdMutex = &sync.RWMutex{}
)

var levelMap = map[logLevel]logLevelValue{
	LogLevelOff:      logLevelValueOff,
	LogLevelCritical: logLevelValueCritical,
	LogLevelError:    logLevelValueError,
	LogLevelWarn:     logLevelValueWarn,
	LogLevelInfo:     logLevelValueInfo,
	LogLevelDebug:    logLevelValueDebug,
	LogLevelAll:      logLevelValueAll,
}

func init() {
	setupLogLevelFromEnv()
}

// setupLogLevelFromEnv reads the EDGELOG_LEVEL environment variable and
// configures the default logger's log level accordingly.
func setupLogLevelFromEnv() {
	levelStr := os.Getenv(envPrefix + "LEVEL")

	if levelStr == "" {
		return
	}

	level, err := ParseLogLevel(levelStr)
	if err != nil {
		log.Printf("edgelog: invalid %sLEVEL value %q, using default level", envPrefix, levelStr)

		return
	}

	SetDefaultLogLevel(level)
}

// ParseLogLevel parses a string into a log level.
// It is case-insensitive. It returns an error if the input string is not a valid log level.
func ParseLogLevel(levelStr string) (logLevel, error) {
	level := logLevel(strings.ToUpper(levelStr))
	if _, ok := levelMap[level]; ok {
		return level, nil
	}

	return "", errors.New("invalid log level: " + levelStr)
}

// Logger is a structured logger that emits Entry records through a Formatter
// after passing them through its filter chain.
// Instances of Logger are safe for concurrent use.
type Logger struct {
	out      io.Writer
	logLevel logLevelValue
	prefix   string
	labels   map[string]string
	payload  map[string]any
	filters  []Filter

	formatter Formatter
}

// New creates a new Logger with default settings.
// The default log level is Info and the default output is os.Stderr.
func New(opts ...Option) *Logger {
	logger := &Logger{
		out:       os.Stderr,
		logLevel:  logLevelValueInfo,
		prefix:    "",
		labels:    make(map[string]string),
		payload:   make(map[string]any),
		filters:   nil,
		formatter: NewJSONFormatter(nil),
	}

	for _, opt := range opts {
		opt(logger)
	}

	return logger
}

// Default returns the package-level default logger.
func Default() *Logger {
	stdMutex.RLock()
	defer stdMutex.RUnlock()

	return std
}

// Clone creates a new copy of the logger.
func (l *Logger) Clone() *Logger {
	newLogger := &Logger{
		out:       l.out,
		logLevel:  l.logLevel,
		prefix:    l.prefix,
		labels:    make(map[string]string, len(l.labels)),
		payload:   make(map[string]any, len(l.payload)),
		filters:   append([]Filter(nil), l.filters...),
		formatter: l.formatter,
	}

	for k, v := range l.labels {
		newLogger.labels[k] = v
	}

	for k, v := range l.payload {
		newLogger.payload[k] = v
	}

	return newLogger
}

// Debugf logs a formatted message at the Debug level.
func (l *Logger) Debugf(format string, v ...any) {
	if !l.IsDebugEnabled() {
		return
	}

	l.dispatch(LogLevelDebug, fmt.Sprintf(format, v...))
}

// Infof logs a formatted message at the Info level.
func (l *Logger) Infof(format string, v ...any) {
	if !l.IsInfoEnabled() {
		return
	}

	l.dispatch(LogLevelInfo, fmt.Sprintf(format, v...))
}

// Warnf logs a formatted message at the Warn level.
func (l *Logger) Warnf(format string, v ...any) {
	if !l.IsWarnEnabled() {
		return
	}

	l.dispatch(LogLevelWarn, fmt.Sprintf(format, v...))
}

// Errorf logs a formatted message at the Error level.
func (l *Logger) Errorf(format string, v ...any) {
	if !l.IsErrorEnabled() {
		return
	}

	l.dispatch(LogLevelError, fmt.Sprintf(format, v...))
}

// Criticalf logs a formatted message at the Critical level.
func (l *Logger) Criticalf(format string, v ...any) {
	if !l.IsCriticalEnabled() {
		return
	}

	l.dispatch(LogLevelCritical, fmt.Sprintf(format, v...))
}

// Debugw logs a message at the Debug level with structured key-value pairs.
func (l *Logger) Debugw(msg string, kvs ...any) {
	if !l.IsDebugEnabled() {
		return
	}

	l.dispatch(LogLevelDebug, msg, kvs...)
}

// Infow logs a message at the Info level with structured key-value pairs.
func (l *Logger) Infow(msg string, kvs ...any) {
	if !l.IsInfoEnabled() {
		return
	}

	l.dispatch(LogLevelInfo, msg, kvs...)
}

// Warnw logs a message at the Warn level with structured key-value pairs.
func (l *Logger) Warnw(msg string, kvs ...any) {
	if !l.IsWarnEnabled() {
		return
	}

	l.dispatch(LogLevelWarn, msg, kvs...)
}

// Errorw logs a message at the Error level with structured key-value pairs.
func (l *Logger) Errorw(msg string, kvs ...any) {
	if !l.IsErrorEnabled() {
		return
	}

	l.dispatch(LogLevelError, msg, kvs...)
}

// Criticalw logs a message at the Critical level with structured key-value pairs.
func (l *Logger) Criticalw(msg string, kvs ...any) {
	if !l.IsCriticalEnabled() {
		return
	}

	l.dispatch(LogLevelCritical, msg, kvs...)
}

// dispatch is the single, central method that handles plain log entry
// creation and printing. It is called *after* a level check has been
// performed by a public method.
func (l *Logger) dispatch(level logLevel, msg string, kvs ...any) {
	l.print(l.createEntry(level, msg, kvs...))
}

// logEvent prints a pre-assembled request/response entry, applying the level
// check its severity implies.
func (l *Logger) logEvent(e *Entry) {
	lv, ok := levelMap[logLevel(e.Severity)]
	if !ok {
		lv = logLevelValueInfo
	}

	if l.logLevel < lv {
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	if e.Labels == nil {
		e.Labels = l.labels
	}

	l.print(e)
}

// createEntry is the single, central helper for creating plain log entries.
func (l *Logger) createEntry(level logLevel, msg string, kvs ...any) *Entry {
	e := &Entry{
		Severity: string(level),
		Message:  l.prefix + msg,
		Labels:   l.labels,
		Time:     time.Now(),
		Payload:  make(map[string]any, len(l.payload)),
	}

	if len(l.payload) > 0 {
		contextKVs := make([]any, 0, len(l.payload)*2)

		for k, v := range l.payload {
			contextKVs = append(contextKVs, k, v)
		}

		e.applyKVs(contextKVs...)
	}

	if len(kvs) > 0 {
		e.applyKVs(kvs...)
	}

	return e
}

// print passes the entry through the filter chain and writes it out.
func (l *Logger) print(e *Entry) {
	for _, f := range l.filters {
		if !f.Allow(e) {
			return
		}
	}

	out, err := l.formatter.Format(e)
	if err != nil {
		log.Printf("failed to format log entry: %v", err)

		return
	}

	fmt.Fprintln(l.out, string(out))
}

// IsDebugEnabled checks if the Debug level is enabled for the logger.
func (l *Logger) IsDebugEnabled() bool {
	return l.logLevel >= logLevelValueDebug
}

// IsInfoEnabled checks if the Info level is enabled for the logger.
func (l *Logger) IsInfoEnabled() bool {
	return l.logLevel >= logLevelValueInfo
}

// IsWarnEnabled checks if the Warn level is enabled for the logger.
func (l *Logger) IsWarnEnabled() bool {
	return l.logLevel >= logLevelValueWarn
}

// IsErrorEnabled checks if the Error level is enabled for the logger.
func (l *Logger) IsErrorEnabled() bool {
	return l.logLevel >= logLevelValueError
}

// IsCriticalEnabled checks if the Critical level is enabled for the logger.
func (l *Logger) IsCriticalEnabled() bool {
	return l.logLevel >= logLevelValueCritical
}

// WithLabels returns a new logger instance with the provided labels added.
func (l *Logger) WithLabels(labels map[string]string) *Logger {
	newLogger := l.Clone()

	for k, v := range labels {
		newLogger.labels[k] = v
	}

	return newLogger
}

// WithPrefix returns a new logger instance with the specified message prefix.
func (l *Logger) WithPrefix(prefix string) *Logger {
	newLogger := l.Clone()
	newLogger.prefix = prefix

	return newLogger
}

// WithLogLevel returns a new logger instance with the specified log level.
// It panics if the level is not one of the defined log levels.
func (l *Logger) WithLogLevel(level logLevel) *Logger {
	if _, ok := levelMap[level]; !ok {
		panic(fmt.Sprintf("edgelog: invalid log level provided to (*Logger).WithLogLevel: %q", level))
	}

	newLogger := l.Clone()
	newLogger.logLevel = levelMap[level]

	return newLogger
}

// WithOutput returns a new logger instance that writes to the provided io.Writer.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	newLogger := l.Clone()

	if w != nil {
		newLogger.out = w
	}

	return newLogger
}

// WithFormatter returns a new logger instance with the specified formatter.
func (l *Logger) WithFormatter(f Formatter) *Logger {
	newLogger := l.Clone()

	if f != nil {
		newLogger.formatter = f
	}

	return newLogger
}

// WithFilter returns a new logger instance with the filter appended to its
// filter chain.
func (l *Logger) WithFilter(f Filter) *Logger {
	newLogger := l.Clone()

	if f != nil {
		newLogger.filters = append(newLogger.filters, f)
	}

	return newLogger
}

// With returns a new logger instance with the provided key-value pairs added to its context.
// It panics if the number of arguments is odd or if a key is not a string.
func (l *Logger) With(kvs ...any) *Logger {
	n := len(kvs)

	if n%2 != 0 {
		panic("edgelog.With: odd number of arguments received")
	}

	newLogger := l.Clone()

	for i := 0; i < n; i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			panic(fmt.Sprintf("edgelog.With: non-string key at argument position %d", i))
		}

		newLogger.payload[key] = kvs[i+1]
	}

	return newLogger
}

// Option configures a Logger.
type Option func(*Logger)

// WithFormatter sets the formatter for the logger.
func WithFormatter(f Formatter) Option {
	return func(l *Logger) {
		if f != nil {
			l.formatter = f
		}
	}
}

// WithOutput sets the writer for the logger.
func WithOutput(w io.Writer) Option {
	return func(l *Logger) {
		if w != nil {
			l.out = w
		}
	}
}

// WithFilter appends a filter to the logger's filter chain.
func WithFilter(f Filter) Option {
	return func(l *Logger) {
		if f != nil {
			l.filters = append(l.filters, f)
		}
	}
}

// WithLogLevel is a functional option that sets the initial log level for the logger.
func WithLogLevel(level logLevel) Option {
	return func(l *Logger) {
		lv, ok := levelMap[level]
		if !ok {
			panic(fmt.Sprintf("edgelog: invalid log level provided to WithLogLevel: %q", level))
		}

		l.logLevel = lv
	}
}

// SetDefaultLabels sets labels for the default logger.
func SetDefaultLabels(labels map[string]string) {
	stdMutex.Lock()
	defer stdMutex.Unlock()

	std = std.WithLabels(labels)
}

// SetDefaultPrefix sets the message prefix for the default logger.
func SetDefaultPrefix(prefix string) {
	stdMutex.Lock()
	defer stdMutex.Unlock()

	std = std.WithPrefix(prefix)
}

// SetDefaultOutput sets the output destination for the default logger.
func SetDefaultOutput(w io.Writer) {
	stdMutex.Lock()
	defer stdMutex.Unlock()

	std = std.WithOutput(w)
}

// SetDefaultFormatter sets the formatter for the default logger.
func SetDefaultFormatter(f Formatter) {
	stdMutex.Lock()
	defer stdMutex.Unlock()

	std = std.WithFormatter(f)
}

// SetDefaultFilter appends a filter to the default logger's filter chain.
func SetDefaultFilter(f Filter) {
	stdMutex.Lock()
	defer stdMutex.Unlock()

	std = std.WithFilter(f)
}

// SetDefaultLogLevel sets the log level for the default logger.
// The provided level should be validated with ParseLogLevel first.
func SetDefaultLogLevel(level logLevel) {
	stdMutex.Lock()
	defer stdMutex.Unlock()

	std = std.WithLogLevel(level)
}

// Debugf logs a formatted message at the Debug level using the default logger.
func Debugf(format string, v ...any) {
	stdMutex.RLock()
	defer stdMutex.RUnlock()

	std.Debugf(format, v...)
}

// Infof logs a formatted message at the Info level using the default logger.
func Infof(format string, v ...any) {
	stdMutex.RLock()
	defer stdMutex.RUnlock()

	std.Infof(format, v...)
}

// Warnf logs a formatted message at the Warn level using the default logger.
func Warnf(format string, v ...any) {
	stdMutex.RLock()
	defer stdMutex.RUnlock()

	std.Warnf(format, v...)
}

// Errorf logs a formatted message at the Error level using the default logger.
func Errorf(format string, v ...any) {
	stdMutex.RLock()
	defer stdMutex.RUnlock()

	std.Errorf(format, v...)
}

// Criticalf logs a formatted message at the Critical level using the default logger.
func Criticalf(format string, v ...any) {
	stdMutex.RLock()
	defer stdMutex.RUnlock()

	std.Criticalf(format, v...)
}

// Debugw logs a message at the Debug level using the default logger.
func Debugw(msg string, kvs ...any) {
	stdMutex.RLock()
	defer stdMutex.RUnlock()

	std.Debugw(msg, kvs...)
}

// Infow logs a message at the Info level using the default logger.
func Infow(msg string, kvs ...any) {
	stdMutex.RLock()
	defer stdMutex.RUnlock()

	std.Infow(msg, kvs...)
}

// Warnw logs a message at the Warn level using the default logger.
func Warnw(msg string, kvs ...any) {
	stdMutex.RLock()
	defer stdMutex.RUnlock()

	std.Warnw(msg, kvs...)
}

// Errorw logs a message at the Error level using the default logger.
func Errorw(msg string, kvs ...any) {
	stdMutex.RLock()
	defer stdMutex.RUnlock()

	std.Errorw(msg, kvs...)
}

// Criticalw logs a message at the Critical level using the default logger.
func Criticalw(msg string, kvs ...any) {
	stdMutex.RLock()
	defer stdMutex.RUnlock()

	std.Criticalw(msg, kvs...)
}
