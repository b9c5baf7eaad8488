package server

import (
	"math/rand"

	"github.com/raniellyferreira/inmemdb/protocol"
	"github.com/raniellyferreira/inmemdb/storage"
)

// maxRandomMembers caps the reply of SRANDMEMBER with a negative count
const maxRandomMembers = 1 << 20

func setCommands() []Command {
	set := storage.ValueTypeSet
	return []Command{
		{Name: "SADD", Contract: Contract{MinArgs: 2, Type: set}, Handler: handleSAdd},
		{Name: "SREM", Contract: Contract{MinArgs: 2, Type: set}, Handler: handleSRem},
		{Name: "SMEMBERS", Contract: Contract{MinArgs: 1, Type: set, ReadOnly: true}, Handler: handleSMembers},
		{Name: "SCARD", Contract: Contract{MinArgs: 1, Type: set, ReadOnly: true}, Handler: handleSCard},
		{Name: "SISMEMBER", Contract: Contract{MinArgs: 2, Type: set, ReadOnly: true}, Handler: handleSIsMember},
		{Name: "SUNION", Contract: Contract{MinArgs: 1, ReadOnly: true}, Handler: setAlgebra(union)},
		{Name: "SINTER", Contract: Contract{MinArgs: 1, ReadOnly: true}, Handler: setAlgebra(intersection)},
		{Name: "SDIFF", Contract: Contract{MinArgs: 1, ReadOnly: true}, Handler: setAlgebra(difference)},
		{Name: "SPOP", Contract: Contract{MinArgs: 1, Type: set}, Handler: handleSPop},
		{Name: "SRANDMEMBER", Contract: Contract{MinArgs: 1, Type: set, ReadOnly: true}, Handler: handleSRandMember},
	}
}

func handleSAdd(r *Request) protocol.Value {
	existing := r.DB.Get(r.Key()).Set()
	added := map[string]struct{}{}
	for _, m := range r.Args()[1:] {
		if _, ok := existing[string(m)]; !ok {
			added[string(m)] = struct{}{}
		}
	}
	r.DB.Merge(r.Key(), storage.NewSet(r.Args()[1:]...), storage.SetUnion)
	return protocol.Integer(int64(len(added)))
}

func handleSRem(r *Request) protocol.Value {
	existing := r.DB.Get(r.Key()).Set()
	removed := map[string]struct{}{}
	for _, m := range r.Args()[1:] {
		if _, ok := existing[string(m)]; ok {
			removed[string(m)] = struct{}{}
		}
	}
	if len(removed) > 0 {
		r.DB.Merge(r.Key(), storage.NewSet(r.Args()[1:]...), storage.SetDifference)
	}
	return protocol.Integer(int64(len(removed)))
}

func handleSMembers(r *Request) protocol.Value {
	return protocol.StringArray(sortedSet(r.DB.Get(r.Key()).Set())...)
}

func handleSCard(r *Request) protocol.Value {
	return protocol.Integer(int64(r.DB.Get(r.Key()).Size()))
}

func handleSIsMember(r *Request) protocol.Value {
	_, ok := r.DB.Get(r.Key()).Set()[string(r.Arg(1))]
	return protocol.Bool(ok)
}

type setOp func(acc, next map[string]struct{}) map[string]struct{}

func union(acc, next map[string]struct{}) map[string]struct{} {
	for m := range next {
		acc[m] = struct{}{}
	}
	return acc
}

func intersection(acc, next map[string]struct{}) map[string]struct{} {
	for m := range acc {
		if _, ok := next[m]; !ok {
			delete(acc, m)
		}
	}
	return acc
}

func difference(acc, next map[string]struct{}) map[string]struct{} {
	for m := range next {
		delete(acc, m)
	}
	return acc
}

// setAlgebra folds op over the sets stored at every key, left to right.
// Missing keys count as empty sets.
func setAlgebra(op setOp) HandlerFunc {
	return func(r *Request) protocol.Value {
		for _, key := range r.Args() {
			if !r.DB.IsType(string(key), storage.ValueTypeSet) {
				return errWrongType
			}
		}
		acc := map[string]struct{}{}
		for m := range r.DB.Get(r.Key()).Set() {
			acc[m] = struct{}{}
		}
		for _, key := range r.Args()[1:] {
			acc = op(acc, r.DB.Get(string(key)).Set())
		}
		return protocol.StringArray(sortedSet(acc)...)
	}
}

// handleSPop removes a random member. Replicas receive the matching SREM so
// they drop the same member.
func handleSPop(r *Request) protocol.Value {
	members := sortedSet(r.DB.Get(r.Key()).Set())
	if len(members) == 0 {
		return protocol.Null()
	}
	member := members[rand.Intn(len(members))]
	r.DB.Merge(r.Key(), storage.NewSet([]byte(member)), storage.SetDifference)
	r.Replicate(protocol.NewCommand("SREM", r.Key(), member))
	return protocol.BulkString(member)
}

// handleSRandMember returns one random member, or with a count that many
// distinct members (count > 0) or count members allowing repeats (count < 0)
func handleSRandMember(r *Request) protocol.Value {
	members := sortedSet(r.DB.Get(r.Key()).Set())
	if len(r.Args()) == 1 {
		if len(members) == 0 {
			return protocol.Null()
		}
		return protocol.BulkString(members[rand.Intn(len(members))])
	}

	count, ok := parseInt(r.Arg(1))
	if !ok {
		return errNotInteger
	}
	if count == 0 || len(members) == 0 {
		return protocol.Array()
	}
	if count < -maxRandomMembers {
		return protocol.Error("ERR value is out of range")
	}
	if count < 0 {
		out := make([]string, -count)
		for i := range out {
			out[i] = members[rand.Intn(len(members))]
		}
		return protocol.StringArray(out...)
	}
	rand.Shuffle(len(members), func(i, j int) {
		members[i], members[j] = members[j], members[i]
	})
	if int(count) < len(members) {
		members = members[:count]
	}
	return protocol.StringArray(members...)
}
