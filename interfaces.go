package inmemdb

import (
	"fmt"
	"log"
	"time"
)

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// Logger interface for custom logging implementations
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// MetricsCollector interface for metrics collection
type MetricsCollector interface {
	// RecordCommandProcessed records a processed command with its duration
	RecordCommandProcessed(cmd string, duration time.Duration)

	// RecordError records an error event
	RecordError(errorType string)

	// RecordKeyCount records the number of keys across all databases
	RecordKeyCount(count int64)

	// RecordEviction records keys removed by the eviction sweep
	RecordEviction(count int64)

	// RecordSyncDuration records the time a replica took to import a snapshot
	RecordSyncDuration(duration time.Duration)

	// RecordNetworkBytes records snapshot bytes received from a primary
	RecordNetworkBytes(bytes int64)

	// RecordReconnection records a replica reconnecting to its primary
	RecordReconnection()
}

// defaultLogger is a simple logger implementation using the standard log package
type defaultLogger struct {
	debug bool
}

func (l *defaultLogger) Debug(msg string, fields ...Field) {
	if l.debug {
		l.logWithFields("DEBUG", msg, fields...)
	}
}

func (l *defaultLogger) Info(msg string, fields ...Field) {
	l.logWithFields("INFO", msg, fields...)
}

func (l *defaultLogger) Error(msg string, fields ...Field) {
	l.logWithFields("ERROR", msg, fields...)
}

func (l *defaultLogger) logWithFields(level, msg string, fields ...Field) {
	logMsg := level + ": " + msg
	for _, field := range fields {
		logMsg += " " + field.Key + "=" + formatValue(field.Value)
	}
	log.Println(logMsg)
}

// NewLogger returns the default logger. Debug messages are dropped unless
// debug is set.
func NewLogger(debug bool) Logger {
	return &defaultLogger{debug: debug}
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	default:
		return fmt.Sprintf("%v", val)
	}
}
