package replication

import (
	"fmt"
	"time"

	"github.com/raniellyferreira/inmemdb/protocol"
)

// Logger interface for replication logging
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// MetricsCollector interface for replication metrics
type MetricsCollector interface {
	RecordSyncDuration(duration time.Duration)
	RecordNetworkBytes(bytes int64)
	RecordReconnection()
	RecordError(errorType string)
}

// Entry is a write command waiting to be streamed to replicas, tagged with
// the keyspace it ran against
type Entry struct {
	DB      int
	Command *protocol.Command
}

// SyncError reports the replication phase that failed
type SyncError struct {
	Phase string // "dial", "handshake", "snapshot", "streaming"
	Err   error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	return fmt.Sprintf("sync error in phase %s: %v", e.Phase, e.Err)
}

// Unwrap returns the wrapped error
func (e *SyncError) Unwrap() error {
	return e.Err
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
