package server

import (
	"sort"

	"github.com/raniellyferreira/inmemdb/protocol"
	"github.com/raniellyferreira/inmemdb/storage"
)

func hashCommands() []Command {
	hash := storage.ValueTypeHash
	return []Command{
		{Name: "HSET", Contract: Contract{MinArgs: 3, Type: hash}, Handler: handleHSet},
		{Name: "HMSET", Contract: Contract{MinArgs: 3, Type: hash}, Handler: handleHMSet},
		{Name: "HGET", Contract: Contract{MinArgs: 2, Type: hash, ReadOnly: true}, Handler: handleHGet},
		{Name: "HMGET", Contract: Contract{MinArgs: 2, Type: hash, ReadOnly: true}, Handler: handleHMGet},
		{Name: "HGETALL", Contract: Contract{MinArgs: 1, Type: hash, ReadOnly: true}, Handler: handleHGetAll},
		{Name: "HEXISTS", Contract: Contract{MinArgs: 2, Type: hash, ReadOnly: true}, Handler: handleHExists},
		{Name: "HDEL", Contract: Contract{MinArgs: 2, Type: hash}, Handler: handleHDel},
		{Name: "HKEYS", Contract: Contract{MinArgs: 1, Type: hash, ReadOnly: true}, Handler: handleHKeys},
		{Name: "HVALS", Contract: Contract{MinArgs: 1, Type: hash, ReadOnly: true}, Handler: handleHVals},
		{Name: "HLEN", Contract: Contract{MinArgs: 1, Type: hash, ReadOnly: true}, Handler: handleHLen},
	}
}

// handleHSet returns the number of fields that did not exist before
func handleHSet(r *Request) protocol.Value {
	pairs := r.Args()[1:]
	if len(pairs)%2 != 0 {
		return errArity(r.Command.Name)
	}
	existing := r.DB.Get(r.Key()).Hash()
	added := 0
	for i := 0; i < len(pairs); i += 2 {
		if _, ok := existing[string(pairs[i])]; !ok {
			added++
		}
	}
	r.DB.Merge(r.Key(), storage.NewHashPairs(pairs...), storage.HashUnion)
	return protocol.Integer(int64(added))
}

func handleHMSet(r *Request) protocol.Value {
	pairs := r.Args()[1:]
	if len(pairs)%2 != 0 {
		return errArity(r.Command.Name)
	}
	r.DB.Merge(r.Key(), storage.NewHashPairs(pairs...), storage.HashUnion)
	return protocol.OK()
}

func handleHGet(r *Request) protocol.Value {
	value, ok := r.DB.Get(r.Key()).Hash()[string(r.Arg(1))]
	if !ok {
		return protocol.Null()
	}
	return protocol.Bulk(value)
}

func handleHMGet(r *Request) protocol.Value {
	fields := r.DB.Get(r.Key()).Hash()
	items := make([]protocol.Value, 0, len(r.Args())-1)
	for _, f := range r.Args()[1:] {
		if value, ok := fields[string(f)]; ok {
			items = append(items, protocol.Bulk(value))
		} else {
			items = append(items, protocol.Null())
		}
	}
	return protocol.Array(items...)
}

func sortedFields(fields map[string][]byte) []string {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

// handleHGetAll returns field, value pairs ordered by field
func handleHGetAll(r *Request) protocol.Value {
	fields := r.DB.Get(r.Key()).Hash()
	items := make([]protocol.Value, 0, 2*len(fields))
	for _, f := range sortedFields(fields) {
		items = append(items, protocol.BulkString(f), protocol.Bulk(fields[f]))
	}
	return protocol.Array(items...)
}

func handleHExists(r *Request) protocol.Value {
	_, ok := r.DB.Get(r.Key()).Hash()[string(r.Arg(1))]
	return protocol.Bool(ok)
}

func handleHDel(r *Request) protocol.Value {
	value := r.DB.Get(r.Key())
	if value == nil {
		return protocol.Integer(0)
	}
	fields := make(map[string][]byte, value.Size())
	for f, v := range value.Hash() {
		fields[f] = v
	}
	removed := 0
	for _, f := range r.Args()[1:] {
		if _, ok := fields[string(f)]; ok {
			delete(fields, string(f))
			removed++
		}
	}
	if removed == 0 {
		return protocol.Integer(0)
	}
	if len(fields) == 0 {
		r.DB.Remove(r.Key())
	} else {
		r.DB.Put(r.Key(), storage.NewHash(fields).WithExpiryOf(value))
	}
	return protocol.Integer(int64(removed))
}

func handleHKeys(r *Request) protocol.Value {
	return protocol.StringArray(sortedFields(r.DB.Get(r.Key()).Hash())...)
}

func handleHVals(r *Request) protocol.Value {
	fields := r.DB.Get(r.Key()).Hash()
	items := make([]protocol.Value, 0, len(fields))
	for _, f := range sortedFields(fields) {
		items = append(items, protocol.Bulk(fields[f]))
	}
	return protocol.Array(items...)
}

func handleHLen(r *Request) protocol.Value {
	return protocol.Integer(int64(r.DB.Get(r.Key()).Size()))
}
