package server

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T, s *Server) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:            s.Addr(),
		Protocol:        2,
		DisableIdentity: true,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestGoRedis_Strings(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t, startServer(t, Config{}))

	require.NoError(t, rdb.Set(ctx, "a", "b", 0).Err())
	assert.Equal(t, "b", rdb.Get(ctx, "a").Val())

	_, err := rdb.Get(ctx, "missing").Result()
	assert.ErrorIs(t, err, redis.Nil)

	assert.Equal(t, int64(5), rdb.IncrBy(ctx, "n", 5).Val())
	require.NoError(t, rdb.Expire(ctx, "n", time.Minute).Err())
	assert.Equal(t, time.Minute, rdb.TTL(ctx, "n").Val())

	ok, err := rdb.SetNX(ctx, "a", "c", 0).Result()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rdb.Set(ctx, "tmp", "x", 10*time.Second).Err())
	assert.Equal(t, 10*time.Second, rdb.TTL(ctx, "tmp").Val())
}

func TestGoRedis_Collections(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t, startServer(t, Config{}))

	require.NoError(t, rdb.RPush(ctx, "l", "a", "b", "c").Err())
	assert.Equal(t, []string{"a", "b", "c"}, rdb.LRange(ctx, "l", 0, -1).Val())

	require.NoError(t, rdb.HSet(ctx, "h", "f1", "v1", "f2", "v2").Err())
	assert.Equal(t, map[string]string{"f1": "v1", "f2": "v2"}, rdb.HGetAll(ctx, "h").Val())

	require.NoError(t, rdb.SAdd(ctx, "s", "x", "y").Err())
	assert.True(t, rdb.SIsMember(ctx, "s", "x").Val())

	require.NoError(t, rdb.ZAdd(ctx, "z", redis.Z{Score: 1, Member: "m1"}, redis.Z{Score: 2.5, Member: "m2"}).Err())
	assert.Equal(t, []redis.Z{{Score: 1, Member: "m1"}, {Score: 2.5, Member: "m2"}}, rdb.ZRangeWithScores(ctx, "z", 0, -1).Val())
	assert.Equal(t, []string{"m2"}, rdb.ZRangeByScore(ctx, "z", &redis.ZRangeBy{Min: "(1", Max: "+inf"}).Val())

	assert.Equal(t, "list", rdb.Type(ctx, "l").Val())
	err := rdb.HGet(ctx, "l", "f").Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WRONGTYPE")
}

func TestGoRedis_Transaction(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t, startServer(t, Config{}))

	var incr *redis.IntCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, "a", "1", 0)
		incr = pipe.Incr(ctx, "a")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), incr.Val())
	assert.Equal(t, "2", rdb.Get(ctx, "a").Val())
}

func TestGoRedis_PubSub(t *testing.T) {
	ctx := context.Background()
	server := startServer(t, Config{})
	rdb := newRedisClient(t, server)

	sub := rdb.Subscribe(ctx, "events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), rdb.Publish(ctx, "events", "hello").Val())

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "events", msg.Channel)
		assert.Equal(t, "hello", msg.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestGoRedis_Scripting(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t, startServer(t, Config{}))

	script := redis.NewScript("redis.call('SET', KEYS[1], ARGV[1]); return redis.call('INCR', KEYS[1])")
	n, err := script.Run(ctx, rdb, []string{"counter"}, "41").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	exists, err := rdb.ScriptExists(ctx, script.Hash()).Result()
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, exists)
}
