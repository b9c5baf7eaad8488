package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is one command and its expected reply. Replies expected to be errors
// are matched by prefix.
type step struct {
	cmd  string
	want string
}

func runSteps(t *testing.T, steps []step) {
	t.Helper()
	s := newTestServer(t, Config{})
	session := NewSession("c1")

	for _, st := range steps {
		parts := strings.Fields(st.cmd)
		reply := do(t, s, session, parts[0], parts[1:]...)
		if strings.HasPrefix(st.want, "ERR") || strings.HasPrefix(st.want, "WRONGTYPE") {
			require.True(t, reply.IsError(), "%s: expected error, got %v", st.cmd, reply)
			assert.True(t, strings.HasPrefix(reply.Error(), st.want), "%s: got %q", st.cmd, reply.Error())
			continue
		}
		require.False(t, reply.IsError(), "%s: unexpected error %v", st.cmd, reply)
		assert.Equal(t, st.want, reply.String(), st.cmd)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name  string
		steps []step
	}{
		{"scenario", []step{
			{"SET a b", "OK"},
			{"GET a", "b"},
			{"EXPIRE a 0", "1"},
			{"EXISTS a", "0"},
			{"LPUSH l x y", "2"},
			{"LRANGE l 0 -1", "[y, x]"},
			{"ZADD z 1 m1 2 m2", "2"},
			{"ZRANGE z 0 -1 WITHSCORES", "[m1, 1, m2, 2]"},
		}},
		{"server", []step{
			{"PING", "PONG"},
			{"PING hi", "hi"},
			{"ECHO x", "x"},
			{"SELECT 1", "OK"},
			{"SET a b", "OK"},
			{"DBSIZE", "1"},
			{"SELECT 0", "OK"},
			{"DBSIZE", "0"},
			{"SELECT 10", "ERR invalid DB index"},
			{"SELECT x", "ERR invalid DB index"},
			{"SELECT 1", "OK"},
			{"FLUSHDB", "OK"},
			{"DBSIZE", "0"},
			{"CLIENT SETNAME app", "OK"},
			{"CLIENT GETNAME", "(nil)"},
			{"ROLE", "[master, 0, []]"},
			{"SAVE", "ERR persistence is disabled"},
		}},
		{"keys", []step{
			{"MSET a 1 b 2", "OK"},
			{"DEL a b c", "2"},
			{"EXISTS a b", "0"},
			{"SET s x", "OK"},
			{"LPUSH l x", "1"},
			{"SADD st x", "1"},
			{"ZADD z 1 m", "1"},
			{"HSET h f v", "1"},
			{"TYPE s", "string"},
			{"TYPE l", "list"},
			{"TYPE st", "set"},
			{"TYPE z", "zset"},
			{"TYPE h", "hash"},
			{"TYPE nope", "none"},
			{"RENAME nope x", "ERR no such key"},
			{"RENAME s s2", "OK"},
			{"GET s2", "x"},
			{"EXISTS s", "0"},
			{"KEYS s*", "[s2, st]"},
			{"KEYS ?", "[h, l, z]"},
		}},
		{"expiry", []step{
			{"TTL a", "-2"},
			{"SET a 1", "OK"},
			{"TTL a", "-1"},
			{"EXPIRE nope 10", "0"},
			{"EXPIRE a 100", "1"},
			{"TTL a", "100"},
			{"PERSIST a", "1"},
			{"PERSIST a", "0"},
			{"TTL a", "-1"},
			{"PEXPIRE a 5000", "1"},
			{"TTL a", "5"},
			{"EXPIRE a x", "ERR value is not an integer"},
			{"SETEX b 10 v", "OK"},
			{"TTL b", "10"},
			{"SETEX b 0 v", "ERR invalid expire time"},
			{"SET c v EX 20", "OK"},
			{"TTL c", "20"},
			{"SET c v PX 0", "ERR invalid expire time"},
			{"SET c v EX", "ERR syntax error"},
			{"EXPIRE a 10000000000", "ERR invalid expire time in 'expire' command"},
			{"PEXPIRE a 9223372036854775807", "ERR invalid expire time in 'pexpire' command"},
			{"TTL a", "5"},
			{"SET c w EX 10000000000", "ERR invalid expire time in 'set' command"},
			{"SET c w PX 9223372036854775807", "ERR invalid expire time in 'set' command"},
			{"GET c", "v"},
			{"SETEX b 10000000000 w", "ERR invalid expire time in 'setex' command"},
			{"GET b", "v"},
			{"EXPIRE nope 10000000000", "ERR invalid expire time in 'expire' command"},
		}},
		{"strings", []step{
			{"SET a b", "OK"},
			{"APPEND a cd", "3"},
			{"STRLEN a", "3"},
			{"GET a", "bcd"},
			{"GETSET a x", "bcd"},
			{"GETSET new y", "(nil)"},
			{"SETNX a z", "0"},
			{"SETNX fresh z", "1"},
			{"SET k v NX", "OK"},
			{"SET k v NX", "(nil)"},
			{"SET k w XX", "OK"},
			{"GET k", "w"},
			{"SET missing v XX", "(nil)"},
			{"SET k v NX XX", "ERR syntax error"},
			{"MSET a 1 b 2", "OK"},
			{"MSET a", "ERR wrong number of arguments for 'mset' command"},
			{"MSET a 1 b", "ERR wrong number of arguments for 'mset' command"},
			{"MGET a b nope", "[1, 2, (nil)]"},
			{"MSETNX b 3 c 4", "0"},
			{"MSETNX c 4 d 5", "1"},
			{"MGET c d", "[4, 5]"},
			{"LPUSH l x", "1"},
			{"GET l", "WRONGTYPE"},
			{"MGET l a", "[(nil), 1]"},
		}},
		{"counters", []step{
			{"SET n 10", "OK"},
			{"EXPIRE n 100", "1"},
			{"INCR n", "11"},
			{"TTL n", "100"},
			{"INCRBY n 5", "16"},
			{"DECR n", "15"},
			{"DECRBY n 20", "-5"},
			{"INCR fresh", "1"},
			{"DECR other", "-1"},
			{"SET s abc", "OK"},
			{"INCR s", "ERR value is not an integer"},
			{"INCRBY n x", "ERR value is not an integer"},
			{"SET max 9223372036854775807", "OK"},
			{"INCR max", "ERR increment or decrement would overflow"},
			{"SET min -9223372036854775808", "OK"},
			{"DECR min", "ERR increment or decrement would overflow"},
			{"DECRBY n -9223372036854775808", "ERR increment or decrement would overflow"},
		}},
		{"bits", []step{
			{"SETBIT b 7 1", "0"},
			{"GETBIT b 7", "1"},
			{"GET b", "\x01"},
			{"BITCOUNT b", "1"},
			{"SETBIT b 0 1", "0"},
			{"BITCOUNT b", "2"},
			{"SETBIT b 7 0", "1"},
			{"GETBIT b 100", "0"},
			{"SETBIT b 9 1", "0"},
			{"STRLEN b", "2"},
			{"BITCOUNT b 1 1", "1"},
			{"BITCOUNT b 0 -2", "1"},
			{"BITCOUNT b 5 9", "0"},
			{"SETBIT b -1 1", "ERR bit offset"},
			{"SETBIT b 1 2", "ERR bit is not an integer"},
			{"BITCOUNT b 1", "ERR syntax error"},
		}},
		{"hashes", []step{
			{"HSET h f1 v1 f2 v2", "2"},
			{"HSET h f1 x f3 y", "1"},
			{"HSET h f1", "ERR wrong number of arguments for 'hset' command"},
			{"HSET h f1 a f2", "ERR wrong number of arguments for 'hset' command"},
			{"HGET h f1", "x"},
			{"HGET h nope", "(nil)"},
			{"HMGET h f1 nope", "[x, (nil)]"},
			{"HGETALL h", "[f1, x, f2, v2, f3, y]"},
			{"HKEYS h", "[f1, f2, f3]"},
			{"HVALS h", "[x, v2, y]"},
			{"HLEN h", "3"},
			{"HEXISTS h f2", "1"},
			{"HEXISTS h nope", "0"},
			{"HDEL h f1 f2 nope", "2"},
			{"HDEL h nope", "0"},
			{"HDEL h f3", "1"},
			{"EXISTS h", "0"},
			{"HMSET h a 1 b 2", "OK"},
			{"HGETALL h", "[a, 1, b, 2]"},
			{"HGETALL nope", "[]"},
		}},
		{"lists", []step{
			{"LPUSH l x y", "2"},
			{"RPUSH l z", "3"},
			{"LRANGE l 0 -1", "[y, x, z]"},
			{"LRANGE l 1 1", "[x]"},
			{"LRANGE l 5 10", "[]"},
			{"LRANGE l -100 100", "[y, x, z]"},
			{"LRANGE l a 1", "ERR value is not an integer"},
			{"LINDEX l -1", "z"},
			{"LINDEX l 0", "y"},
			{"LINDEX l 5", "(nil)"},
			{"LSET l 1 X", "OK"},
			{"LSET l -1 Z", "OK"},
			{"LRANGE l 0 -1", "[y, X, Z]"},
			{"LSET l 9 X", "ERR index out of range"},
			{"LSET nope 0 x", "ERR no such key"},
			{"LPOP l", "y"},
			{"RPOP l", "Z"},
			{"LLEN l", "1"},
			{"RPOP l", "X"},
			{"EXISTS l", "0"},
			{"LPOP l", "(nil)"},
			{"LLEN l", "0"},
		}},
		{"sets", []step{
			{"SADD s a b c", "3"},
			{"SADD s a d d", "1"},
			{"SCARD s", "4"},
			{"SISMEMBER s a", "1"},
			{"SISMEMBER s z", "0"},
			{"SREM s a nope", "1"},
			{"SREM s nope", "0"},
			{"SMEMBERS s", "[b, c, d]"},
			{"SADD t c d e", "3"},
			{"SUNION s t", "[b, c, d, e]"},
			{"SINTER s t", "[c, d]"},
			{"SDIFF s t", "[b]"},
			{"SUNION s nope", "[b, c, d]"},
			{"SINTER s nope", "[]"},
			{"SET str x", "OK"},
			{"SINTER s str", "WRONGTYPE"},
			{"SADD p only", "1"},
			{"SPOP p", "only"},
			{"EXISTS p", "0"},
			{"SPOP p", "(nil)"},
			{"SADD r a", "1"},
			{"SRANDMEMBER r", "a"},
			{"SRANDMEMBER r 5", "[a]"},
			{"SRANDMEMBER r -3", "[a, a, a]"},
			{"SRANDMEMBER r 0", "[]"},
			{"SRANDMEMBER r -9223372036854775807", "ERR value is out of range"},
			{"SRANDMEMBER r -2000000", "ERR value is out of range"},
			{"SRANDMEMBER nope", "(nil)"},
			{"SREM r a", "1"},
			{"EXISTS r", "0"},
		}},
		{"sorted sets", []step{
			{"ZADD z 1 m1 2 m2", "2"},
			{"ZADD z 2.5 m1", "0"},
			{"ZRANGE z 0 -1", "[m2, m1]"},
			{"ZREVRANGE z 0 0", "[m1]"},
			{"ZREVRANGE z 0 -1 WITHSCORES", "[m1, 2.5, m2, 2]"},
			{"ZRANGE z 0 -1 SCORES", "ERR syntax error"},
			{"ZSCORE z m1", "2.5"},
			{"ZSCORE z nope", "(nil)"},
			{"ZADD big 1000000 m 0.0001 tiny", "2"},
			{"ZSCORE big m", "1000000"},
			{"ZSCORE big tiny", "0.0001"},
			{"ZINCRBY z 1 m2", "3"},
			{"ZINCRBY z 4 m3", "4"},
			{"ZCARD z", "3"},
			{"ZADD z x m", "ERR value is not a valid float"},
			{"ZADD z 1 m 2", "ERR syntax error"},
			{"ZREM z m1 m1 nope", "1"},
			{"ZRANGE z 0 -1", "[m2, m3]"},
			{"ZREM z m2 m3", "2"},
			{"EXISTS z", "0"},
			{"ZADD zs 0 zero 1 a 2 b 3 c", "4"},
			{"ZRANGEBYSCORE zs 1 3", "[a, b, c]"},
			{"ZRANGEBYSCORE zs (1 3", "[b, c]"},
			{"ZRANGEBYSCORE zs 1 (3", "[a, b]"},
			{"ZRANGEBYSCORE zs -inf +inf", "[a, b, c]"},
			{"ZRANGEBYSCORE zs 0 +inf", "[zero, a, b, c]"},
			{"ZRANGEBYSCORE zs 1 3 LIMIT 1 1", "[b]"},
			{"ZRANGEBYSCORE zs 1 3 LIMIT 5 1", "[]"},
			{"ZRANGEBYSCORE zs 1 2 WITHSCORES", "[a, 1, b, 2]"},
			{"ZRANGEBYSCORE zs x 2", "ERR min or max is not a float"},
			{"ZRANGEBYSCORE zs 1 2 LIMIT 1", "ERR syntax error"},
		}},
		{"publish", []step{
			{"PUBLISH ch hello", "0"},
			{"PUBLISH ch", "ERR wrong number of arguments for 'publish' command"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSteps(t, tt.steps)
		})
	}
}
