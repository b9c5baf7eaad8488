package persistence

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raniellyferreira/inmemdb/protocol"
	"github.com/raniellyferreira/inmemdb/server"
)

// memorySource hands out a fixed payload and records what it restores
type memorySource struct {
	mu       sync.Mutex
	payload  []byte
	restored []byte
	dumps    int
	fail     error
}

func (m *memorySource) Snapshot(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.dumps++
	_, err := w.Write(m.payload)
	return err
}

func (m *memorySource) Restore(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.restored = data
	m.mu.Unlock()
	return nil
}

func (m *memorySource) dumpCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dumps
}

func TestLoadMissingFile(t *testing.T) {
	source := &memorySource{}
	m := NewManager(source, filepath.Join(t.TempDir(), "dump.rdb"), time.Hour)

	require.NoError(t, m.Load())
	assert.Nil(t, source.restored)
}

func TestStoreReplacesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.rdb")
	m := NewManager(&memorySource{}, path, time.Hour)

	require.NoError(t, m.Store([]byte("first")))
	require.NoError(t, m.Store([]byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestDumpAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.rdb")
	require.NoError(t, NewManager(&memorySource{payload: []byte("snapshot")}, path, time.Hour).Dump())

	target := &memorySource{}
	require.NoError(t, NewManager(target, path, time.Hour).Load())
	assert.Equal(t, "snapshot", string(target.restored))
}

func TestDumpError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.rdb")
	boom := errors.New("boom")
	m := NewManager(&memorySource{fail: boom}, path, time.Hour)

	err := m.Dump()
	assert.ErrorIs(t, err, boom)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPeriodicDumpAndFinalDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.rdb")
	source := &memorySource{payload: []byte("data")}
	m := NewManager(source, path, 10*time.Millisecond)

	require.NoError(t, m.Start())
	require.NoError(t, m.Start())
	assert.Eventually(t, func() bool { return source.dumpCount() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Stop())
	after := source.dumpCount()
	require.NoError(t, m.Stop())
	assert.Equal(t, after, source.dumpCount())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestServerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.rdb")

	src := server.New(server.Config{Databases: 4})
	t.Cleanup(func() { _ = src.Stop() })
	session := server.NewSession("c1")
	for _, cmd := range []*protocol.Command{
		protocol.NewCommand("SET", "a", "1"),
		protocol.NewCommand("SELECT", "2"),
		protocol.NewCommand("RPUSH", "l", "x", "y"),
		protocol.NewCommand("ZADD", "z", "1.5", "m"),
		protocol.NewCommand("SET", "t", "v", "EX", "100"),
	} {
		_, err := src.Execute(session, cmd)
		require.NoError(t, err)
	}

	src.SetPersister(NewManager(src, path, time.Hour))
	reply, err := src.Execute(session, protocol.NewCommand("SAVE"))
	require.NoError(t, err)
	require.Equal(t, "OK", reply.String())

	dst := server.New(server.Config{Databases: 4})
	t.Cleanup(func() { _ = dst.Stop() })
	require.NoError(t, NewManager(dst, path, time.Hour).Load())

	other := server.NewSession("c2")
	get := func(name string, args ...string) string {
		t.Helper()
		v, err := dst.Execute(other, protocol.NewCommand(name, args...))
		require.NoError(t, err)
		return v.String()
	}
	assert.Equal(t, "1", get("GET", "a"))
	get("SELECT", "2")
	assert.Equal(t, "[x, y]", get("LRANGE", "l", "0", "-1"))
	assert.Equal(t, "1.5", get("ZSCORE", "z", "m"))
	ttl, err := dst.Execute(other, protocol.NewCommand("TTL", "t"))
	require.NoError(t, err)
	assert.InDelta(t, 100, ttl.Integer, 1)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.rdb")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xff}, 16), 0o644))

	dst := server.New(server.Config{})
	t.Cleanup(func() { _ = dst.Stop() })
	assert.Error(t, NewManager(dst, path, time.Hour).Load())
}
