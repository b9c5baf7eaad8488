package persistence

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Source produces and consumes snapshots. The server implements it by
// running export and import on its executor.
type Source interface {
	Snapshot(w io.Writer) error
	Restore(r io.Reader) error
}

// Logger interface for persistence logging
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Manager keeps a snapshot file in sync with a Source: load on start, dump
// every period and once more on stop
type Manager struct {
	source Source
	path   string
	period time.Duration
	logger Logger

	// mu serializes writes to path
	mu sync.Mutex

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stateMu sync.Mutex
}

// NewManager creates a manager for the snapshot file at path
func NewManager(source Source, path string, period time.Duration) *Manager {
	return &Manager{
		source: source,
		path:   path,
		period: period,
		logger: nopLogger{},
	}
}

// SetLogger sets the logger
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Path returns the snapshot file path
func (m *Manager) Path() string {
	return m.path
}

// Load imports the snapshot file if it exists. A missing file is not an error.
func (m *Manager) Load() error {
	f, err := os.Open(m.path)
	if errors.Is(err, os.ErrNotExist) {
		m.logger.Debug("No snapshot to load", "path", m.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	start := time.Now()
	if err := m.source.Restore(f); err != nil {
		return fmt.Errorf("failed to load snapshot %s: %w", m.path, err)
	}
	m.logger.Info("Snapshot loaded", "path", m.path, "duration", time.Since(start))
	return nil
}

// Start loads the snapshot file and launches the periodic dump
func (m *Manager) Start() error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.running {
		return nil
	}

	if err := m.Load(); err != nil {
		return err
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.loop(m.stopCh, m.doneCh)
	return nil
}

// Stop ends the periodic dump and writes a final snapshot
func (m *Manager) Stop() error {
	m.stateMu.Lock()
	if !m.running {
		m.stateMu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	done := m.doneCh
	m.stateMu.Unlock()

	<-done
	return m.Dump()
}

func (m *Manager) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := m.Dump(); err != nil {
				m.logger.Error("Periodic snapshot failed", "path", m.path, "error", err)
			}
		}
	}
}

// Dump writes a fresh snapshot of the source to the file
func (m *Manager) Dump() error {
	var buf bytes.Buffer
	if err := m.source.Snapshot(&buf); err != nil {
		return fmt.Errorf("failed to export snapshot: %w", err)
	}
	return m.Store(buf.Bytes())
}

// Store replaces the snapshot file with data, through a temp file in the same
// directory followed by a rename
func (m *Manager) Store(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(m.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	m.logger.Debug("Snapshot written", "path", m.path, "bytes", len(data))
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
