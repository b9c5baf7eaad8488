package server

import (
	"strings"

	"github.com/raniellyferreira/inmemdb/protocol"
	"github.com/raniellyferreira/inmemdb/storage"
)

func zsetCommands() []Command {
	zset := storage.ValueTypeZSet
	return []Command{
		{Name: "ZADD", Contract: Contract{MinArgs: 3, Type: zset}, Handler: handleZAdd},
		{Name: "ZREM", Contract: Contract{MinArgs: 2, Type: zset}, Handler: handleZRem},
		{Name: "ZCARD", Contract: Contract{MinArgs: 1, Type: zset, ReadOnly: true}, Handler: handleZCard},
		{Name: "ZSCORE", Contract: Contract{MinArgs: 2, Type: zset, ReadOnly: true}, Handler: handleZScore},
		{Name: "ZINCRBY", Contract: Contract{MinArgs: 3, Type: zset}, Handler: handleZIncrBy},
		{Name: "ZRANGE", Contract: Contract{MinArgs: 3, Type: zset, ReadOnly: true}, Handler: zrangeHandler(false)},
		{Name: "ZREVRANGE", Contract: Contract{MinArgs: 3, Type: zset, ReadOnly: true}, Handler: zrangeHandler(true)},
		{Name: "ZRANGEBYSCORE", Contract: Contract{MinArgs: 3, Type: zset, ReadOnly: true}, Handler: handleZRangeByScore},
	}
}

func zsetOf(r *Request) *storage.ZSetValue {
	if z := r.DB.Get(r.Key()).ZSet(); z != nil {
		return z
	}
	return storage.NewZSetValue()
}

func handleZAdd(r *Request) protocol.Value {
	pairs := r.Args()[1:]
	if len(pairs)%2 != 0 {
		return errSyntax
	}
	current := zsetOf(r)
	members := make([]storage.ZSetMember, 0, len(pairs)/2)
	added := map[string]struct{}{}
	for i := 0; i < len(pairs); i += 2 {
		score, ok := parseFloat(pairs[i])
		if !ok {
			return errNotFloat
		}
		member := string(pairs[i+1])
		if _, ok := current.Score(member); !ok {
			added[member] = struct{}{}
		}
		members = append(members, storage.ZSetMember{Member: member, Score: score})
	}
	r.DB.Merge(r.Key(), storage.NewZSet(members...), storage.ZSetUnion)
	return protocol.Integer(int64(len(added)))
}

func handleZRem(r *Request) protocol.Value {
	value := r.DB.Get(r.Key())
	if value == nil {
		return protocol.Integer(0)
	}
	current := value.ZSet()
	var gone []string
	seen := map[string]struct{}{}
	for _, m := range stringsOf(r.Args()[1:]) {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		if _, ok := current.Score(m); ok {
			gone = append(gone, m)
		}
	}
	if len(gone) == 0 {
		return protocol.Integer(0)
	}

	remaining := current.Without(gone...)
	if remaining.Len() == 0 {
		r.DB.Remove(r.Key())
	} else {
		r.DB.Put(r.Key(), storage.NewZSet(remaining.Members()...).WithExpiryOf(value))
	}
	return protocol.Integer(int64(len(gone)))
}

func handleZCard(r *Request) protocol.Value {
	return protocol.Integer(int64(r.DB.Get(r.Key()).Size()))
}

func handleZScore(r *Request) protocol.Value {
	score, ok := zsetOf(r).Score(string(r.Arg(1)))
	if !ok {
		return protocol.Null()
	}
	return protocol.BulkString(formatFloat(score))
}

func handleZIncrBy(r *Request) protocol.Value {
	delta, ok := parseFloat(r.Arg(1))
	if !ok {
		return errNotFloat
	}
	member := string(r.Arg(2))
	score, _ := zsetOf(r).Score(member)
	score += delta
	r.DB.Merge(r.Key(), storage.NewZSet(storage.ZSetMember{Member: member, Score: score}), storage.ZSetUnion)
	return protocol.BulkString(formatFloat(score))
}

func withScores(members []storage.ZSetMember, scores bool) protocol.Value {
	items := make([]protocol.Value, 0, len(members)*2)
	for _, m := range members {
		items = append(items, protocol.BulkString(m.Member))
		if scores {
			items = append(items, protocol.BulkString(formatFloat(m.Score)))
		}
	}
	return protocol.Array(items...)
}

func zrangeHandler(reverse bool) HandlerFunc {
	return func(r *Request) protocol.Value {
		start, ok1 := parseInt(r.Arg(1))
		stop, ok2 := parseInt(r.Arg(2))
		if !ok1 || !ok2 {
			return errNotInteger
		}
		scores := false
		if len(r.Args()) > 3 {
			if len(r.Args()) > 4 || !strings.EqualFold(string(r.Arg(3)), "WITHSCORES") {
				return errSyntax
			}
			scores = true
		}

		all := zsetOf(r).Members()
		from, to, ok := storage.NormalizeRange(int(start), int(stop), len(all))
		if !ok {
			return protocol.Array()
		}
		if !reverse {
			return withScores(all[from:to+1], scores)
		}
		picked := make([]storage.ZSetMember, 0, to-from+1)
		for i := from; i <= to; i++ {
			picked = append(picked, all[len(all)-1-i])
		}
		return withScores(picked, scores)
	}
}

// parseScoreBound accepts a float, a float prefixed with "(" for an
// exclusive bound, or +inf / -inf
func parseScoreBound(b []byte) (storage.ScoreBound, bool) {
	s := string(b)
	var bound storage.ScoreBound
	if strings.HasPrefix(s, "(") {
		bound.Exclusive = true
		s = s[1:]
	}
	switch strings.ToLower(s) {
	case "+inf", "inf":
		bound.Value = storage.ScoreMax
		return bound, true
	case "-inf":
		bound.Value = storage.ScoreMin
		return bound, true
	}
	f, ok := parseFloat([]byte(s))
	if !ok {
		return bound, false
	}
	bound.Value = f
	return bound, true
}

func handleZRangeByScore(r *Request) protocol.Value {
	min, ok1 := parseScoreBound(r.Arg(1))
	max, ok2 := parseScoreBound(r.Arg(2))
	if !ok1 || !ok2 {
		return protocol.Error("ERR min or max is not a float")
	}

	scores := false
	offset, count := 0, -1
	opts := r.Args()[3:]
	for i := 0; i < len(opts); i++ {
		switch strings.ToUpper(string(opts[i])) {
		case "WITHSCORES":
			scores = true
		case "LIMIT":
			if i+2 >= len(opts) {
				return errSyntax
			}
			o, ok1 := parseInt(opts[i+1])
			c, ok2 := parseInt(opts[i+2])
			if !ok1 || !ok2 {
				return errNotInteger
			}
			offset, count = int(o), int(c)
			i += 2
		default:
			return errSyntax
		}
	}

	members := zsetOf(r).RangeByScore(min, max)
	if offset < 0 || offset >= len(members) {
		return protocol.Array()
	}
	members = members[offset:]
	if count >= 0 && count < len(members) {
		members = members[:count]
	}
	return withScores(members, scores)
}
