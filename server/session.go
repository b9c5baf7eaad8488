package server

import (
	"sort"

	"github.com/raniellyferreira/inmemdb/protocol"
)

// Session is the per-connection state: selected keyspace, subscriptions and
// the queue of an open transaction. It is only touched from the executor.
type Session struct {
	id       string
	db       int
	channels map[string]struct{}
	patterns map[string]struct{}
	tx       []*protocol.Command
	inTx     bool
}

// NewSession creates a session identified by id, usually the remote address
func NewSession(id string) *Session {
	return &Session{
		id:       id,
		channels: make(map[string]struct{}),
		patterns: make(map[string]struct{}),
	}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// DB returns the selected keyspace index
func (s *Session) DB() int {
	return s.db
}

// Select changes the selected keyspace index
func (s *Session) Select(db int) {
	s.db = db
}

// Subscriptions returns the number of channels and patterns subscribed
func (s *Session) Subscriptions() int {
	return len(s.channels) + len(s.patterns)
}

// Channels returns the subscribed channels, sorted
func (s *Session) Channels() []string {
	return sortedSet(s.channels)
}

// Patterns returns the subscribed patterns, sorted
func (s *Session) Patterns() []string {
	return sortedSet(s.patterns)
}

func (s *Session) subscribe(channel string)   { s.channels[channel] = struct{}{} }
func (s *Session) unsubscribe(channel string) { delete(s.channels, channel) }
func (s *Session) psubscribe(pattern string)  { s.patterns[pattern] = struct{}{} }
func (s *Session) punsubscribe(pattern string) {
	delete(s.patterns, pattern)
}

// InTransaction reports whether MULTI is open
func (s *Session) InTransaction() bool {
	return s.inTx
}

// Begin opens a transaction
func (s *Session) Begin() {
	s.inTx = true
	s.tx = nil
}

// Enqueue appends a request to the open transaction
func (s *Session) Enqueue(cmd *protocol.Command) {
	s.tx = append(s.tx, cmd)
}

// Take closes the transaction and returns the queued requests in order
func (s *Session) Take() []*protocol.Command {
	queued := s.tx
	s.Discard()
	return queued
}

// Discard closes the transaction dropping its queue
func (s *Session) Discard() {
	s.inTx = false
	s.tx = nil
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
