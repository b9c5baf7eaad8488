package rdb

import (
	"io"
	"time"

	"github.com/raniellyferreira/inmemdb/storage"
)

// Snapshot is the decoded content of a snapshot stream
type Snapshot struct {
	// Databases maps keyspace index to its entries
	Databases map[int]map[string]*storage.Value

	// Expired counts entries dropped because their expiry had passed
	Expired int
}

// Decode reads a complete snapshot. Nothing is returned unless the checksum
// matches.
func Decode(r io.Reader, now time.Time) (*Snapshot, error) {
	h := &mapHandler{staged: make(map[int]map[string]*storage.Value)}
	parser := NewParser(r, h, now)
	if err := parser.Parse(); err != nil {
		return nil, err
	}
	return &Snapshot{
		Databases: h.databases,
		Expired:   parser.Stats().Expired,
	}, nil
}

// mapHandler stages entries per keyspace and publishes them on OnEnd
type mapHandler struct {
	current   int
	staged    map[int]map[string]*storage.Value
	databases map[int]map[string]*storage.Value
}

func (h *mapHandler) OnDatabase(index int) error {
	h.current = index
	if _, ok := h.staged[index]; !ok {
		h.staged[index] = make(map[string]*storage.Value)
	}
	return nil
}

func (h *mapHandler) OnKey(key string, value *storage.Value) error {
	db, ok := h.staged[h.current]
	if !ok {
		db = make(map[string]*storage.Value)
		h.staged[h.current] = db
	}
	db[key] = value
	return nil
}

func (h *mapHandler) OnEnd() error {
	h.databases = h.staged
	return nil
}
