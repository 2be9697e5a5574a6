// Package logging provides leveled, component-tagged logging for Omni.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Level represents log level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) Color() string {
	switch l {
	case DEBUG:
		return "\033[36m" // Cyan
	case INFO:
		return "\033[32m" // Green
	case WARN:
		return "\033[33m" // Yellow
	case ERROR:
		return "\033[31m" // Red
	default:
		return "\033[0m"
	}
}

// ParseLevel maps a config string to a Level. Unknown strings fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger is a leveled logger. The zero value is not usable; construct via
// Named, WithField, or use the package-level functions.
type Logger struct {
	component string
	level     Level
	output    io.Writer
	color     bool
	mu        *sync.Mutex
	fields    map[string]interface{}
}

var defaultLogger = &Logger{
	level:  INFO,
	output: os.Stdout,
	color:  os.Getenv("NO_COLOR") == "" && isatty.IsTerminal(os.Stdout.Fd()),
	mu:     &sync.Mutex{},
	fields: make(map[string]interface{}),
}

// SetLevel sets the global log level.
func SetLevel(level Level) {
	defaultLogger.level = level
}

// SetOutput sets the output writer for the default logger and all loggers
// derived from it afterwards.
func SetOutput(w io.Writer) {
	defaultLogger.output = w
}

// SetColor enables or disables ANSI colors.
func SetColor(on bool) {
	defaultLogger.color = on
}

// Named returns a logger tagged with a component name, e.g. "outbox".
func Named(component string) *Logger {
	l := defaultLogger.clone()
	l.component = component
	return l
}

// WithField returns a derived logger with one field added.
func WithField(key string, value interface{}) *Logger {
	return defaultLogger.WithField(key, value)
}

// WithFields returns a derived logger with multiple fields added.
func WithFields(fields map[string]interface{}) *Logger {
	return defaultLogger.WithFields(fields)
}

func (l *Logger) clone() *Logger {
	nl := &Logger{
		component: l.component,
		level:     l.level,
		output:    l.output,
		color:     l.color,
		mu:        l.mu,
		fields:    make(map[string]interface{}, len(l.fields)),
	}
	for k, v := range l.fields {
		nl.fields[k] = v
	}
	return nl
}

// Named tags the logger with a component name.
func (l *Logger) Named(component string) *Logger {
	nl := l.clone()
	nl.component = component
	return nl
}

// WithField adds a field to the logger.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	nl := l.clone()
	nl.fields[key] = value
	return nl
}

// WithFields adds multiple fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	nl := l.clone()
	for k, v := range fields {
		nl.fields[k] = v
	}
	return nl
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	// Derived loggers follow the default logger's level so SetLevel applies
	// everywhere at once.
	if level < defaultLogger.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("15:04:05")

	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}

	var tag string
	if l.component != "" {
		tag = " " + l.component + ":"
	}

	var fieldsStr string
	if len(l.fields) > 0 {
		fieldsStr = " |"
		for k, v := range l.fields {
			fieldsStr += fmt.Sprintf(" %s=%v", k, v)
		}
	}

	out := defaultLogger.output
	if defaultLogger.color {
		fmt.Fprintf(out, "%s %s[%s]%s%s %s%s\n",
			timestamp, level.Color(), level.String(), "\033[0m", tag, formatted, fieldsStr)
	} else {
		fmt.Fprintf(out, "%s [%s]%s %s%s\n",
			timestamp, level.String(), tag, formatted, fieldsStr)
	}
}

// Debug logs a debug message
func Debug(msg string, args ...interface{}) {
	defaultLogger.log(DEBUG, msg, args...)
}

// Info logs an info message
func Info(msg string, args ...interface{}) {
	defaultLogger.log(INFO, msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...interface{}) {
	defaultLogger.log(WARN, msg, args...)
}

// Error logs an error message
func Error(msg string, args ...interface{}) {
	defaultLogger.log(ERROR, msg, args...)
}

// Logger methods
func (l *Logger) Debug(msg string, args ...interface{}) { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(ERROR, msg, args...) }
