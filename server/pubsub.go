package server

import (
	"fmt"
	"strings"

	"github.com/raniellyferreira/inmemdb/protocol"
	"github.com/raniellyferreira/inmemdb/storage"
)

// Subscriptions live both in the session and in the admin keyspace, as a set
// of session ids under subscription:<channel> or psubscription:<pattern>.

func (s *Server) subscribe(session *Session, channel string) {
	session.subscribe(channel)
	s.state.Admin().Merge(subscriptionPrefix+channel, storage.NewSet([]byte(session.ID())), storage.SetUnion)
}

func (s *Server) unsubscribe(session *Session, channel string) {
	session.unsubscribe(channel)
	s.removeMember(subscriptionPrefix+channel, session.ID())
}

func (s *Server) psubscribe(session *Session, pattern string) {
	session.psubscribe(pattern)
	s.state.Admin().Merge(psubscriptionPrefix+pattern, storage.NewSet([]byte(session.ID())), storage.SetUnion)
}

func (s *Server) punsubscribe(session *Session, pattern string) {
	session.punsubscribe(pattern)
	s.removeMember(psubscriptionPrefix+pattern, session.ID())
}

// removeMember drops id from an admin set. An absent key stays absent since
// Merge would otherwise store the seed.
func (s *Server) removeMember(key, id string) {
	if s.state.Admin().Exists(key) {
		s.state.Admin().Merge(key, storage.NewSet([]byte(id)), storage.SetDifference)
	}
}

// publish delivers message to exact and pattern subscribers and returns the
// number of recipients
func (s *Server) publish(channel string, message []byte) int {
	count := 0
	for _, id := range sortedSet(s.state.Admin().Get(subscriptionPrefix + channel).Set()) {
		s.dispatcher.dispatch(id, protocol.Array(
			protocol.BulkString("message"),
			protocol.BulkString(channel),
			protocol.Bulk(message),
		))
		count++
	}
	return count + s.patternPublish(channel, message)
}

// patternPublish delivers message to the subscribers of every pattern
// matching channel
func (s *Server) patternPublish(channel string, message []byte) int {
	count := 0
	for _, key := range s.state.Admin().Keys(psubscriptionPrefix + "*") {
		pattern := strings.TrimPrefix(key, psubscriptionPrefix)
		if !storage.Match(pattern, channel) {
			continue
		}
		for _, id := range sortedSet(s.state.Admin().Get(key).Set()) {
			s.dispatcher.dispatch(id, protocol.Array(
				protocol.BulkString("pmessage"),
				protocol.BulkString(pattern),
				protocol.BulkString(channel),
				protocol.Bulk(message),
			))
			count++
		}
	}
	return count
}

// dropSession forgets every subscription and slave registration of a
// closed session
func (s *Server) dropSession(session *Session) {
	for _, ch := range session.Channels() {
		s.unsubscribe(session, ch)
	}
	for _, p := range session.Patterns() {
		s.punsubscribe(session, p)
	}
	if s.state.RemoveSlave(session.ID()) {
		s.logger.Info("Slave disconnected", "slave", session.ID())
	}
}

// afterWrite runs after every successful write: the command is queued for
// replication when slaves exist, and keyspace notifications are emitted
func (s *Server) afterWrite(r *Request) {
	if s.state.HasSlaves() {
		s.state.Append(r.DBIndex, r.replicated())
	}
	if s.cfg.Notifications && len(r.Command.Args) > 0 {
		s.notify(r.DBIndex, r.Command)
	}
}

func (s *Server) notify(db int, cmd *protocol.Command) {
	key := string(cmd.Args[0])
	event := strings.ToLower(cmd.Name)
	s.patternPublish(fmt.Sprintf("__keyspace__@%d__:%s", db, key), []byte(event))
	s.patternPublish(fmt.Sprintf("__keyevent__@%d__:%s", db, event), []byte(key))
}
