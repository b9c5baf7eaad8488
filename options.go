package inmemdb

import (
	"net"
	"strconv"
	"time"
)

// config holds the configuration for a DB
type config struct {
	addr      string
	databases int

	cleanPeriod       time.Duration
	replicationPeriod time.Duration

	// Replies and messages queued per client before it is disconnected
	outputLimit int

	// Snapshot file
	persistence bool
	dumpFile    string
	syncPeriod  time.Duration

	notifications bool
	offHeap       bool

	// Primary to follow on start, empty for a primary
	replicaOf string

	// Observability
	logger  Logger
	metrics MetricsCollector
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	return &config{
		addr:              "localhost:7081",
		databases:         10,
		cleanPeriod:       30 * time.Second,
		replicationPeriod: 2 * time.Second,
		outputLimit:       1024,
		dumpFile:          "dump.rdb",
		syncPeriod:        60 * time.Second,
		logger:            &defaultLogger{},
	}
}

// Option represents a configuration option for a DB
type Option func(*config) error

// WithAddr sets the listen address
//
// Example:
//
//	WithAddr(":7081")
//	WithAddr("127.0.0.1:0") // pick a free port
func WithAddr(addr string) Option {
	return func(c *config) error {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return &ConnectionError{Addr: addr, Err: ErrInvalidConfig}
		}
		c.addr = addr
		return nil
	}
}

// WithDatabases sets the number of numbered keyspaces
func WithDatabases(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return ErrInvalidConfig
		}
		c.databases = n
		return nil
	}
}

// WithCleanPeriod sets how often expired keys are swept
func WithCleanPeriod(period time.Duration) Option {
	return func(c *config) error {
		if period <= 0 {
			return ErrInvalidConfig
		}
		c.cleanPeriod = period
		return nil
	}
}

// WithReplicationPeriod sets how often queued writes are streamed to slaves
func WithReplicationPeriod(period time.Duration) Option {
	return func(c *config) error {
		if period <= 0 {
			return ErrInvalidConfig
		}
		c.replicationPeriod = period
		return nil
	}
}

// WithOutputLimit sets how many replies and pub/sub messages may wait for one
// client. A client that falls further behind is disconnected.
func WithOutputLimit(limit int) Option {
	return func(c *config) error {
		if limit <= 0 {
			return ErrInvalidConfig
		}
		c.outputLimit = limit
		return nil
	}
}

// WithPersistence enables the snapshot file. It is loaded on start, written
// every period and once more on Close.
//
// Example:
//
//	WithPersistence("/var/lib/inmemdb/dump.rdb", time.Minute)
func WithPersistence(path string, period time.Duration) Option {
	return func(c *config) error {
		if path == "" || period <= 0 {
			return ErrInvalidConfig
		}
		c.persistence = true
		c.dumpFile = path
		c.syncPeriod = period
		return nil
	}
}

// WithNotifications enables keyspace notifications
func WithNotifications(enabled bool) Option {
	return func(c *config) error {
		c.notifications = enabled
		return nil
	}
}

// WithOffHeap is accepted for configuration compatibility and has no effect
func WithOffHeap(enabled bool) Option {
	return func(c *config) error {
		c.offHeap = enabled
		return nil
	}
}

// WithReplicaOf makes the DB follow the primary at addr once started
//
// Example:
//
//	WithReplicaOf("primary.internal:7081")
func WithReplicaOf(addr string) Option {
	return func(c *config) error {
		host, port, err := net.SplitHostPort(addr)
		if err != nil || host == "" {
			return &ConnectionError{Addr: addr, Err: ErrInvalidConfig}
		}
		if _, err := strconv.Atoi(port); err != nil {
			return &ConnectionError{Addr: addr, Err: ErrInvalidConfig}
		}
		c.replicaOf = addr
		return nil
	}
}

// WithLogger sets a custom logger
//
// Example:
//
//	WithLogger(myCustomLogger)
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return ErrInvalidConfig
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics enables metrics collection with the provided collector
//
// Example:
//
//	WithMetrics(metrics.NewCollector())
func WithMetrics(collector MetricsCollector) Option {
	return func(c *config) error {
		if collector == nil {
			return ErrInvalidConfig
		}
		c.metrics = collector
		return nil
	}
}
