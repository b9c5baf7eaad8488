package server

import (
	"io"
	"time"

	"github.com/raniellyferreira/inmemdb/protocol"
	"github.com/raniellyferreira/inmemdb/rdb"
	"github.com/raniellyferreira/inmemdb/replication"
	"github.com/raniellyferreira/inmemdb/storage"
)

// Well-known keys of the admin keyspace
const (
	adminSlaves  = "slaves"
	adminScripts = "scripts"
	adminMaster  = "master"

	subscriptionPrefix  = "subscription:"
	psubscriptionPrefix = "psubscription:"
)

// State is the shared root of the server: the numbered keyspaces, the admin
// keyspace, the replication queue and the primary flag. It is only touched
// from the executor.
type State struct {
	databases []*storage.Keyspace
	admin     *storage.Keyspace
	queue     []replication.Entry
	master    bool
}

// NewState creates a state with n numbered keyspaces
func NewState(n int) *State {
	s := &State{
		databases: make([]*storage.Keyspace, n),
		admin:     storage.NewKeyspace(),
		master:    true,
	}
	for i := range s.databases {
		s.databases[i] = storage.NewKeyspace()
	}
	return s
}

// Len returns the number of numbered keyspaces
func (s *State) Len() int {
	return len(s.databases)
}

// DB returns keyspace i, or nil when i is out of range
func (s *State) DB(i int) *storage.Keyspace {
	if i < 0 || i >= len(s.databases) {
		return nil
	}
	return s.databases[i]
}

// Admin returns the admin keyspace
func (s *State) Admin() *storage.Keyspace {
	return s.admin
}

// IsMaster reports whether the server accepts writes from clients
func (s *State) IsMaster() bool {
	return s.master
}

// SetMaster flips the primary flag
func (s *State) SetMaster(master bool) {
	s.master = master
}

// Append queues a write for replication
func (s *State) Append(db int, cmd *protocol.Command) {
	s.queue = append(s.queue, replication.Entry{DB: db, Command: cmd})
}

// Drain returns and clears the replication queue
func (s *State) Drain() []replication.Entry {
	entries := s.queue
	s.queue = nil
	return entries
}

// Slaves returns the registered slave ids
func (s *State) Slaves() []string {
	return s.setMembers(adminSlaves)
}

// HasSlaves reports whether at least one slave is registered
func (s *State) HasSlaves() bool {
	return s.admin.Exists(adminSlaves)
}

// AddSlave registers a slave id
func (s *State) AddSlave(id string) {
	s.admin.Merge(adminSlaves, storage.NewSet([]byte(id)), storage.SetUnion)
}

// RemoveSlave unregisters a slave id
func (s *State) RemoveSlave(id string) bool {
	if !s.hasMember(adminSlaves, id) {
		return false
	}
	s.admin.Merge(adminSlaves, storage.NewSet([]byte(id)), storage.SetDifference)
	return true
}

// Script returns a cached script body by its SHA1
func (s *State) Script(sha string) (string, bool) {
	body, ok := s.admin.Get(adminScripts).Hash()[sha]
	return string(body), ok
}

// PutScript caches a script body under its SHA1
func (s *State) PutScript(sha, body string) {
	s.admin.Merge(adminScripts, storage.NewHashPairs([]byte(sha), []byte(body)), storage.HashUnion)
}

// FlushScripts drops every cached script
func (s *State) FlushScripts() {
	s.admin.Remove(adminScripts)
}

// MasterInfo returns the upstream recorded by SLAVEOF
func (s *State) MasterInfo() (host, port, state string, ok bool) {
	v := s.admin.Get(adminMaster)
	if v == nil {
		return "", "", "", false
	}
	fields := v.Hash()
	return string(fields["host"]), string(fields["port"]), string(fields["state"]), true
}

// SetMasterInfo records the upstream and its connection state
func (s *State) SetMasterInfo(host, port, state string) {
	s.admin.Put(adminMaster, storage.NewHashPairs(
		[]byte("host"), []byte(host),
		[]byte("port"), []byte(port),
		[]byte("state"), []byte(state),
	))
}

// ClearMasterInfo forgets the upstream
func (s *State) ClearMasterInfo() {
	s.admin.Remove(adminMaster)
}

// Export writes a snapshot of every numbered keyspace
func (s *State) Export(w io.Writer) error {
	dbs := make(map[int]*storage.Keyspace, len(s.databases))
	for i, db := range s.databases {
		dbs[i] = db
	}
	return rdb.Export(w, dbs)
}

// Import overrides every keyspace listed in the snapshot. Indexes beyond the
// configured count are skipped and reported.
func (s *State) Import(snap *rdb.Snapshot) (skipped []int) {
	for idx, entries := range snap.Databases {
		db := s.DB(idx)
		if db == nil {
			skipped = append(skipped, idx)
			continue
		}
		db.Override(entries)
	}
	return skipped
}

// EvictExpired removes every key whose expiry is at or before now and
// returns how many were removed
func (s *State) EvictExpired(now time.Time) int {
	removed := 0
	for _, db := range s.databases {
		for _, key := range db.EvictableKeys(now) {
			db.Remove(key)
			removed++
		}
	}
	return removed
}

// KeyCount returns the number of live keys over all keyspaces
func (s *State) KeyCount() int {
	n := 0
	for _, db := range s.databases {
		n += db.Len()
	}
	return n
}

// FlushAll empties the numbered keyspaces
func (s *State) FlushAll() {
	for _, db := range s.databases {
		db.Clear()
	}
}

// Clear empties every keyspace and the queue
func (s *State) Clear() {
	s.FlushAll()
	s.admin.Clear()
	s.queue = nil
}

func (s *State) setMembers(key string) []string {
	members := s.admin.Get(key).Set()
	out := make([]string, 0, len(members))
	for m := range members {
		out = append(out, m)
	}
	return out
}

func (s *State) hasMember(key, member string) bool {
	_, ok := s.admin.Get(key).Set()[member]
	return ok
}
