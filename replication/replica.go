package replication

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raniellyferreira/inmemdb/protocol"
	"github.com/raniellyferreira/inmemdb/rdb"
)

// Connection states recorded by the target
const (
	StateConnected    = "connected"
	StateDisconnected = "disconnected"
)

// Target is the replica-side view of the server
type Target interface {
	// Import replaces the keyspaces listed in the snapshot
	Import(snap *rdb.Snapshot) error

	// Apply runs a command received from the primary on the replica's own
	// session, bypassing the read-only check
	Apply(cmd *protocol.Command) error

	// SetState records the connection state to the primary
	SetState(state string)
}

// Replica follows a primary: full sync through SYNC, then live command
// application, reconnecting until stopped
type Replica struct {
	host   string
	port   string
	target Target

	logger         Logger
	metrics        MetricsCollector
	connectTimeout time.Duration
	retryDelay     time.Duration

	mu   sync.Mutex
	conn net.Conn

	ctx     context.Context
	cancel  context.CancelFunc
	doneCh  chan struct{}
	stopped int32
	syncs   int64
}

// NewReplica creates a replica of host:port
func NewReplica(host, port string, target Target) *Replica {
	ctx, cancel := context.WithCancel(context.Background())
	return &Replica{
		host:           host,
		port:           port,
		target:         target,
		logger:         nopLogger{},
		connectTimeout: 5 * time.Second,
		retryDelay:     time.Second,
		ctx:            ctx,
		cancel:         cancel,
		doneCh:         make(chan struct{}),
	}
}

// SetLogger sets the logger
func (r *Replica) SetLogger(logger Logger) {
	r.logger = logger
}

// SetMetrics sets the metrics collector
func (r *Replica) SetMetrics(metrics MetricsCollector) {
	r.metrics = metrics
}

// SetRetryDelay sets the pause between reconnection attempts
func (r *Replica) SetRetryDelay(d time.Duration) {
	r.retryDelay = d
}

// Addr returns the primary address
func (r *Replica) Addr() string {
	return net.JoinHostPort(r.host, r.port)
}

// Start launches the replication loop
func (r *Replica) Start() {
	r.logger.Info("Starting replication", "master", r.Addr())
	go r.run()
}

// Stop asks the loop to exit and closes the current connection. It does not
// wait, so it is safe to call from the server's executor.
func (r *Replica) Stop() {
	if !atomic.CompareAndSwapInt32(&r.stopped, 0, 1) {
		return
	}
	r.logger.Info("Stopping replication", "master", r.Addr())
	r.cancel()
	r.closeConn()
}

// Wait blocks until the loop has exited
func (r *Replica) Wait() {
	<-r.doneCh
}

// Syncs returns the number of completed full synchronizations
func (r *Replica) Syncs() int64 {
	return atomic.LoadInt64(&r.syncs)
}

func (r *Replica) run() {
	defer close(r.doneCh)

	for {
		err := r.follow()
		if r.ctx.Err() != nil {
			return
		}

		var syncErr *SyncError
		if errors.As(err, &syncErr) {
			r.recordMetricError(syncErr.Phase)
		}
		r.logger.Error("Replication connection lost", "master", r.Addr(), "error", err)
		r.target.SetState(StateDisconnected)

		select {
		case <-time.After(r.retryDelay):
		case <-r.ctx.Done():
			return
		}
	}
}

// follow runs one connection from dial to disconnect
func (r *Replica) follow() error {
	dialer := &net.Dialer{Timeout: r.connectTimeout}
	conn, err := dialer.DialContext(r.ctx, "tcp", r.Addr())
	if err != nil {
		return &SyncError{Phase: "dial", Err: err}
	}
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	defer r.closeConn()

	// Stop may have run between the dial and the store above
	if err := r.ctx.Err(); err != nil {
		return err
	}

	reader := protocol.NewReader(conn)
	writer := protocol.NewWriter(conn)

	if err := r.fullSync(reader, writer); err != nil {
		return err
	}
	return r.stream(reader)
}

func (r *Replica) fullSync(reader *protocol.Reader, writer *protocol.Writer) error {
	start := time.Now()

	if err := writer.WriteCommand("SYNC"); err != nil {
		return &SyncError{Phase: "handshake", Err: err}
	}
	if err := writer.Flush(); err != nil {
		return &SyncError{Phase: "handshake", Err: err}
	}

	var buf bytes.Buffer
	err := reader.ReadBulkString(func(chunk []byte) error {
		_, err := buf.Write(chunk)
		return err
	})
	if err != nil {
		return &SyncError{Phase: "snapshot", Err: err}
	}

	size := int64(buf.Len())
	snap, err := rdb.Decode(&buf, time.Now())
	if err != nil {
		return &SyncError{Phase: "snapshot", Err: err}
	}
	if err := r.target.Import(snap); err != nil {
		return &SyncError{Phase: "snapshot", Err: fmt.Errorf("import failed: %w", err)}
	}

	if atomic.AddInt64(&r.syncs, 1) > 1 && r.metrics != nil {
		r.metrics.RecordReconnection()
	}
	r.target.SetState(StateConnected)

	duration := time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordSyncDuration(duration)
		r.metrics.RecordNetworkBytes(size)
	}
	r.logger.Info("Initial synchronization completed",
		"master", r.Addr(), "bytes", size, "duration", duration, "expired", snap.Expired)
	return nil
}

func (r *Replica) stream(reader *protocol.Reader) error {
	for {
		value, err := reader.ReadNext()
		if err != nil {
			return &SyncError{Phase: "streaming", Err: err}
		}

		cmd, err := protocol.ParseCommand(value)
		if err != nil {
			r.logger.Debug("Skipping malformed replication frame", "error", err)
			continue
		}
		if err := r.target.Apply(cmd); err != nil {
			return &SyncError{Phase: "streaming", Err: err}
		}
	}
}

func (r *Replica) closeConn() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

func (r *Replica) recordMetricError(errorType string) {
	if r.metrics != nil {
		r.metrics.RecordError(errorType)
	}
}
