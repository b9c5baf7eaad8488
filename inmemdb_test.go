package inmemdb_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/raniellyferreira/inmemdb"
	"github.com/raniellyferreira/inmemdb/metrics"
)

// testLogger records log lines
type testLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *testLogger) Debug(msg string, fields ...inmemdb.Field) { l.add(msg) }
func (l *testLogger) Info(msg string, fields ...inmemdb.Field)  { l.add(msg) }
func (l *testLogger) Error(msg string, fields ...inmemdb.Field) { l.add(msg) }

func (l *testLogger) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, msg)
}

func startDB(t *testing.T, opts ...inmemdb.Option) *inmemdb.DB {
	t.Helper()
	opts = append([]inmemdb.Option{inmemdb.WithAddr("127.0.0.1:0"), inmemdb.WithLogger(&testLogger{})}, opts...)
	db, err := inmemdb.New(opts...)
	if err != nil {
		t.Fatalf("Failed to create db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start db: %v", err)
	}
	return db
}

func do(t *testing.T, db *inmemdb.DB, name string, args ...string) string {
	t.Helper()
	reply, err := db.Do(name, args...)
	if err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
	return reply.String()
}

func TestNew(t *testing.T) {
	db, err := inmemdb.New()
	if err != nil {
		t.Fatalf("Failed to create db: %v", err)
	}
	defer db.Close()

	if got := do(t, db, "SET", "a", "1"); got != "OK" {
		t.Fatalf("Expected OK before Start, got %q", got)
	}
	if db.IsStarted() {
		t.Fatal("Expected db not to be started")
	}
}

func TestNewWithInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  inmemdb.Option
	}{
		{"bad addr", inmemdb.WithAddr("nope")},
		{"zero databases", inmemdb.WithDatabases(0)},
		{"negative clean period", inmemdb.WithCleanPeriod(-time.Second)},
		{"zero replication period", inmemdb.WithReplicationPeriod(0)},
		{"zero output limit", inmemdb.WithOutputLimit(0)},
		{"empty dump path", inmemdb.WithPersistence("", time.Second)},
		{"bad primary", inmemdb.WithReplicaOf("localhost")},
		{"nil logger", inmemdb.WithLogger(nil)},
		{"nil metrics", inmemdb.WithMetrics(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inmemdb.New(tt.opt)
			if !errors.Is(err, inmemdb.ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestStartAndClose(t *testing.T) {
	db := startDB(t, inmemdb.WithDatabases(4), inmemdb.WithOffHeap(true))
	if !db.IsStarted() {
		t.Fatal("Expected db to be started")
	}
	if db.Addr() == "127.0.0.1:0" {
		t.Fatal("Expected a bound port")
	}

	if got := do(t, db, "SELECT", "4"); got != "ERR invalid DB index" {
		t.Fatalf("Expected invalid DB index, got %q", got)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if _, err := db.Do("PING"); !errors.Is(err, inmemdb.ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}
	if err := db.Start(context.Background()); !errors.Is(err, inmemdb.ErrClosed) {
		t.Fatalf("Expected ErrClosed on Start, got %v", err)
	}
}

func TestStartListenFailure(t *testing.T) {
	first := startDB(t)

	db, err := inmemdb.New(inmemdb.WithAddr(first.Addr()), inmemdb.WithLogger(&testLogger{}))
	if err != nil {
		t.Fatalf("Failed to create db: %v", err)
	}
	defer db.Close()

	err = db.Start(context.Background())
	var connErr *inmemdb.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Expected ConnectionError, got %v", err)
	}
}

func TestPersistenceAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.rdb")

	db, err := inmemdb.New(
		inmemdb.WithAddr("127.0.0.1:0"),
		inmemdb.WithPersistence(path, time.Hour),
		inmemdb.WithLogger(&testLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to create db: %v", err)
	}
	if err := db.Save(); !errors.Is(err, inmemdb.ErrNotStarted) {
		t.Fatalf("Expected ErrNotStarted, got %v", err)
	}
	if err := db.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start db: %v", err)
	}
	do(t, db, "HSET", "h", "f", "v")
	do(t, db, "SELECT", "1")
	do(t, db, "SADD", "s", "m")
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected snapshot file: %v", err)
	}

	restored := startDB(t, inmemdb.WithPersistence(path, time.Hour))
	if got := do(t, restored, "HGET", "h", "f"); got != "v" {
		t.Fatalf("Expected v, got %q", got)
	}
	do(t, restored, "SELECT", "1")
	if got := do(t, restored, "SISMEMBER", "s", "m"); got != "1" {
		t.Fatalf("Expected member, got %q", got)
	}
	if err := restored.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
}

func TestSaveWithoutPersistence(t *testing.T) {
	db := startDB(t)
	if err := db.Save(); !errors.Is(err, inmemdb.ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
	if got := do(t, db, "SAVE"); got != "ERR persistence is disabled" {
		t.Fatalf("Expected SAVE to fail, got %q", got)
	}
}

func TestReplicaOf(t *testing.T) {
	primary := startDB(t, inmemdb.WithReplicationPeriod(20*time.Millisecond))
	do(t, primary, "SET", "before", "1")

	replica := startDB(t, inmemdb.WithReplicaOf(primary.Addr()))

	waitFor(t, func() bool {
		reply, err := replica.Do("GET", "before")
		return err == nil && reply.String() == "1"
	})

	do(t, primary, "RPUSH", "l", "a", "b")
	waitFor(t, func() bool {
		reply, err := replica.Do("LLEN", "l")
		return err == nil && reply.String() == "2"
	})

	if _, err := replica.Do("SET", "x", "1"); !errors.Is(err, inmemdb.ErrReadOnly) {
		t.Fatalf("Expected ErrReadOnly, got %v", err)
	}
}

func TestMetricsWiring(t *testing.T) {
	collector := metrics.NewCollector()
	db := startDB(t, inmemdb.WithMetrics(collector), inmemdb.WithCleanPeriod(10*time.Millisecond))

	do(t, db, "SET", "a", "1")
	do(t, db, "SET", "b", "1", "PX", "1")

	waitFor(t, func() bool { return collector.KeyCount() == 1 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}
