package inmemdb

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/raniellyferreira/inmemdb/persistence"
	"github.com/raniellyferreira/inmemdb/protocol"
	"github.com/raniellyferreira/inmemdb/server"
)

// DB is an embeddable inmemdb server
type DB struct {
	config *config

	server      *server.Server
	persistence *persistence.Manager

	// session backs Do
	session *server.Session

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a DB with the given options
//
// The DB accepts commands through Do right away but does not listen or load
// its snapshot file until Start.
//
// Example:
//
//	db, err := inmemdb.New(
//		inmemdb.WithAddr(":7081"),
//		inmemdb.WithPersistence("dump.rdb", time.Minute),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
func New(opts ...Option) (*DB, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := &loggerAdapter{logger: cfg.logger}
	srv := server.New(server.Config{
		Addr:              cfg.addr,
		Databases:         cfg.databases,
		CleanPeriod:       cfg.cleanPeriod,
		ReplicationPeriod: cfg.replicationPeriod,
		OutputLimit:       cfg.outputLimit,
		Notifications:     cfg.notifications,
		Version:           Version,
		Logger:            logger,
		Metrics:           cfg.metrics,
	})

	db := &DB{
		config:  cfg,
		server:  srv,
		session: server.NewSession("embedded"),
	}

	if cfg.persistence {
		db.persistence = persistence.NewManager(srv, cfg.dumpFile, cfg.syncPeriod)
		db.persistence.SetLogger(logger)
		srv.SetPersister(db.persistence)
	}
	if cfg.offHeap {
		cfg.logger.Debug("Off-heap storage is not supported, flag ignored")
	}

	return db, nil
}

// Start loads the snapshot file, starts listening and, when configured,
// begins following the primary
//
// Example:
//
//	if err := db.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
func (db *DB) Start(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	if db.started {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if db.persistence != nil {
		if err := db.persistence.Start(); err != nil {
			return err
		}
	}

	if err := db.server.Start(); err != nil {
		if db.persistence != nil {
			_ = db.persistence.Stop()
		}
		return &ConnectionError{Addr: db.config.addr, Err: err}
	}
	db.started = true

	if db.config.replicaOf != "" {
		host, port, _ := net.SplitHostPort(db.config.replicaOf)
		reply, err := db.server.Execute(db.session, protocol.NewCommand("SLAVEOF", host, port))
		if err != nil {
			return err
		}
		if reply.IsError() {
			return fmt.Errorf("failed to follow %s: %s", db.config.replicaOf, reply.Error())
		}
	}

	db.config.logger.Info("inmemdb started",
		Field{Key: "addr", Value: db.server.Addr()},
		Field{Key: "version", Value: Version})
	return nil
}

// Do runs one command and returns its reply. Every call shares one session,
// so SELECT persists across calls. A write rejected by a replica returns
// ErrReadOnly along with the reply.
func (db *DB) Do(name string, args ...string) (protocol.Value, error) {
	if db.isClosed() {
		return protocol.Value{}, ErrClosed
	}
	reply, err := db.server.Execute(db.session, protocol.NewCommand(name, args...))
	if err != nil {
		return reply, ErrClosed
	}
	if reply.IsError() && strings.HasPrefix(reply.Error(), "READONLY") {
		return reply, ErrReadOnly
	}
	return reply, nil
}

// Close writes the final snapshot, when persistence is on, and stops the
// server
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	var firstErr error
	if db.persistence != nil && db.started {
		if err := db.persistence.Stop(); err != nil {
			db.config.logger.Error("Final snapshot failed", Field{Key: "error", Value: err})
			firstErr = err
		}
	}
	if err := db.server.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Save writes the snapshot file now. It needs a started DB so the file on
// disk has been loaded before it is replaced.
func (db *DB) Save() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch {
	case db.closed:
		return ErrClosed
	case !db.started:
		return ErrNotStarted
	case db.persistence == nil:
		return fmt.Errorf("persistence is disabled: %w", ErrInvalidConfig)
	}
	return db.persistence.Dump()
}

// Addr returns the listening address
func (db *DB) Addr() string {
	return db.server.Addr()
}

// Server returns the underlying server, for registering extra commands
func (db *DB) Server() *server.Server {
	return db.server
}

// IsStarted reports whether Start succeeded and Close was not called
func (db *DB) IsStarted() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.started && !db.closed
}

func (db *DB) isClosed() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.closed
}
