package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raniellyferreira/inmemdb/protocol"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	s := New(cfg)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

// do runs one command for session and returns the reply
func do(t *testing.T, s *Server, session *Session, name string, args ...string) protocol.Value {
	t.Helper()
	reply, err := s.Execute(session, protocol.NewCommand(name, args...))
	require.NoError(t, err)
	return reply
}

// onExecutor runs fn on the server's executor
func onExecutor(t *testing.T, s *Server, fn func()) {
	t.Helper()
	require.NoError(t, s.exec.submit(fn))
}

func TestGatewayChecksArityBeforeType(t *testing.T) {
	s := newTestServer(t, Config{})
	session := NewSession("c1")

	do(t, s, session, "LPUSH", "l", "x")

	reply := do(t, s, session, "HGET", "l")
	require.True(t, reply.IsError())
	assert.Equal(t, "ERR wrong number of arguments for 'hget' command", reply.Error())

	reply = do(t, s, session, "HGET", "l", "f")
	require.True(t, reply.IsError())
	assert.Equal(t, errWrongType.Error(), reply.Error())
}

func TestGatewayUnknownCommand(t *testing.T) {
	s := newTestServer(t, Config{})
	reply := do(t, s, NewSession("c1"), "NOPE")
	assert.Equal(t, "ERR unknown command 'nope'", reply.Error())
}

func TestGatewayTypeCheckIgnoresMissingKey(t *testing.T) {
	s := newTestServer(t, Config{})
	session := NewSession("c1")
	assert.Equal(t, "(nil)", do(t, s, session, "GET", "missing").String())
	assert.Equal(t, "0", do(t, s, session, "HLEN", "missing").String())
}

func TestGatewayPubSubContext(t *testing.T) {
	s := newTestServer(t, Config{})
	session := NewSession("c1")

	reply := do(t, s, session, "SUBSCRIBE", "news", "sport")
	require.Equal(t, protocol.TypeMulti, reply.Type)
	assert.Equal(t, "[[subscribe, news, 1], [subscribe, sport, 2]]", reply.String())

	reply = do(t, s, session, "GET", "a")
	assert.Equal(t, errPubSubContext.Error(), reply.Error())
	assert.Equal(t, "PONG", do(t, s, session, "PING").String())

	reply = do(t, s, session, "UNSUBSCRIBE")
	assert.Equal(t, "[[unsubscribe, news, 1], [unsubscribe, sport, 0]]", reply.String())
	assert.Equal(t, "(nil)", do(t, s, session, "GET", "a").String())

	reply = do(t, s, session, "UNSUBSCRIBE")
	assert.Equal(t, "[[unsubscribe, (nil), 0]]", reply.String())
}

func TestSubscriptionsAreIndexedInAdminKeyspace(t *testing.T) {
	s := newTestServer(t, Config{})
	a, b := NewSession("a"), NewSession("b")

	do(t, s, a, "SUBSCRIBE", "ch")
	do(t, s, b, "SUBSCRIBE", "ch")
	do(t, s, b, "PSUBSCRIBE", "c*")

	onExecutor(t, s, func() {
		assert.Equal(t, []string{"a", "b"}, sortedSet(s.state.Admin().Get(subscriptionPrefix+"ch").Set()))
		assert.Equal(t, 3, s.publish("ch", []byte("hi")))

		s.dropSession(b)
		assert.Equal(t, []string{"a"}, sortedSet(s.state.Admin().Get(subscriptionPrefix+"ch").Set()))
		assert.False(t, s.state.Admin().Exists(psubscriptionPrefix+"c*"))
	})
}

func TestTransactionRepliesInOrder(t *testing.T) {
	s := newTestServer(t, Config{})
	session := NewSession("c1")

	assert.Equal(t, "OK", do(t, s, session, "MULTI").String())
	assert.Equal(t, "QUEUED", do(t, s, session, "SET", "a", "1").String())
	assert.Equal(t, "QUEUED", do(t, s, session, "INCR", "a").String())
	assert.Equal(t, "QUEUED", do(t, s, session, "LPUSH", "a", "x").String())

	reply := do(t, s, session, "EXEC")
	require.Equal(t, protocol.TypeArray, reply.Type)
	require.Len(t, reply.Array, 3)
	assert.Equal(t, "OK", reply.Array[0].String())
	assert.Equal(t, "2", reply.Array[1].String())
	assert.True(t, reply.Array[2].IsError())

	assert.Equal(t, errExecNoMulti.Error(), do(t, s, session, "EXEC").Error())
}

func TestTransactionDiscard(t *testing.T) {
	s := newTestServer(t, Config{})
	session := NewSession("c1")

	do(t, s, session, "MULTI")
	assert.Equal(t, errNestedMulti.Error(), do(t, s, session, "MULTI").Error())
	do(t, s, session, "SET", "a", "1")
	do(t, s, session, "SET", "b", "2")
	assert.Equal(t, "OK", do(t, s, session, "DISCARD").String())

	assert.Equal(t, "0", do(t, s, session, "EXISTS", "a", "b").String())
	assert.True(t, do(t, s, session, "EXEC").IsError())
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	s := newTestServer(t, Config{})
	s.Gateway().Register(Command{
		Name:    "boom",
		Handler: func(r *Request) protocol.Value { panic("kaboom") },
	})

	reply := do(t, s, NewSession("c1"), "BOOM", "x")
	require.True(t, reply.IsError())
	assert.Contains(t, reply.Error(), "ERR error executing command")
	assert.Equal(t, "PONG", do(t, s, NewSession("c2"), "PING").String())
}

func TestReplicaRejectsClientWrites(t *testing.T) {
	s := newTestServer(t, Config{})
	session := NewSession("c1")
	onExecutor(t, s, func() { s.state.SetMaster(false) })

	assert.Equal(t, errReadOnly.Error(), do(t, s, session, "SET", "a", "1").Error())
	assert.Equal(t, "(nil)", do(t, s, session, "GET", "a").String())

	// the replication session goes straight to the gateway
	onExecutor(t, s, func() {
		reply := s.gateway.Execute(s.newRequest(NewSession("master"), protocol.NewCommand("SET", "a", "1")))
		assert.Equal(t, "OK", reply.String())
	})
	assert.Equal(t, "1", do(t, s, session, "GET", "a").String())
}

func TestWritesQueuedOnlyWithSlaves(t *testing.T) {
	s := newTestServer(t, Config{})
	session := NewSession("c1")

	do(t, s, session, "SET", "a", "1")
	onExecutor(t, s, func() {
		assert.Empty(t, s.state.Drain())
		s.state.AddSlave("10.0.0.2:5000")
	})

	do(t, s, session, "SET", "a", "1")
	do(t, s, session, "GET", "a")
	do(t, s, session, "SELECT", "3")
	do(t, s, session, "SADD", "s", "only")
	do(t, s, session, "SPOP", "s")
	do(t, s, session, "HSET", "h")

	var entries []string
	var dbs []int
	onExecutor(t, s, func() {
		for _, e := range s.state.Drain() {
			entries = append(entries, e.Command.String())
			dbs = append(dbs, e.DB)
		}
	})
	assert.Equal(t, []string{"SET a 1", "SADD s only", "SREM s only"}, entries)
	assert.Equal(t, []int{0, 3, 3}, dbs)
}

func TestExpireIsIdempotent(t *testing.T) {
	s := newTestServer(t, Config{})
	session := NewSession("c1")

	do(t, s, session, "SET", "a", "b")
	do(t, s, session, "EXPIRE", "a", "100")
	do(t, s, session, "EXPIRE", "a", "100")
	assert.Equal(t, "100", do(t, s, session, "TTL", "a").String())

	do(t, s, session, "EXPIRE", "a", "0")
	assert.Equal(t, "0", do(t, s, session, "EXISTS", "a").String())
}

func TestEvictionSweep(t *testing.T) {
	s := newTestServer(t, Config{Databases: 2})
	session := NewSession("c1")

	do(t, s, session, "SET", "a", "1", "PX", "1")
	do(t, s, session, "SET", "keep", "1")
	do(t, s, session, "SELECT", "1")
	do(t, s, session, "SET", "b", "1", "PX", "1")
	time.Sleep(5 * time.Millisecond)

	var removed, count int
	onExecutor(t, s, func() {
		removed = s.evict(time.Now())
		count = s.state.KeyCount()
	})
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, count)
}

func TestCleanerPostsSweeps(t *testing.T) {
	s := newTestServer(t, Config{CleanPeriod: 10 * time.Millisecond})
	session := NewSession("c1")
	do(t, s, session, "SET", "a", "1", "PX", "5")

	s.cleaner.start()
	assert.Eventually(t, func() bool {
		empty := false
		_ = s.exec.submit(func() { empty = len(s.state.DB(0).EvictableKeys(time.Now().Add(time.Hour))) == 0 })
		return empty
	}, time.Second, 10*time.Millisecond)
}

func TestScriptCannotCallRestrictedCommands(t *testing.T) {
	s := newTestServer(t, Config{})
	session := NewSession("c1")

	reply := do(t, s, session, "EVAL", "return redis.call('SET', KEYS[1], ARGV[1])", "1", "k", "v")
	assert.Equal(t, "OK", reply.String())
	assert.Equal(t, "v", do(t, s, session, "GET", "k").String())

	reply = do(t, s, session, "EVAL", "return redis.call('SUBSCRIBE', 'x')", "0")
	require.True(t, reply.IsError())
	assert.Contains(t, reply.Error(), "not allowed from scripts")

	reply = do(t, s, session, "EVAL", "return redis.pcall('SUBSCRIBE', 'x').err ~= nil", "0")
	assert.Equal(t, "1", reply.String())
}

func TestScriptsAreStoredInAdminKeyspace(t *testing.T) {
	s := newTestServer(t, Config{})
	session := NewSession("c1")

	sha := do(t, s, session, "SCRIPT", "LOAD", "return 'x'").String()
	assert.Equal(t, "[1, 0]", do(t, s, session, "SCRIPT", "EXISTS", sha, "nope").String())
	assert.Equal(t, "x", do(t, s, session, "EVALSHA", sha, "0").String())

	onExecutor(t, s, func() {
		body, ok := s.state.Script(sha)
		assert.True(t, ok)
		assert.Equal(t, "return 'x'", body)
	})

	do(t, s, session, "SCRIPT", "FLUSH")
	assert.Equal(t, errNoScript.Error(), do(t, s, session, "EVALSHA", sha, "0").Error())
}
