package server

import (
	"github.com/raniellyferreira/inmemdb/protocol"
	"github.com/raniellyferreira/inmemdb/storage"
)

func listCommands() []Command {
	list := storage.ValueTypeList
	return []Command{
		{Name: "LPUSH", Contract: Contract{MinArgs: 2, Type: list}, Handler: handleLPush},
		{Name: "RPUSH", Contract: Contract{MinArgs: 2, Type: list}, Handler: handleRPush},
		{Name: "LPOP", Contract: Contract{MinArgs: 1, Type: list}, Handler: popHandler(true)},
		{Name: "RPOP", Contract: Contract{MinArgs: 1, Type: list}, Handler: popHandler(false)},
		{Name: "LLEN", Contract: Contract{MinArgs: 1, Type: list, ReadOnly: true}, Handler: handleLLen},
		{Name: "LRANGE", Contract: Contract{MinArgs: 3, Type: list, ReadOnly: true}, Handler: handleLRange},
		{Name: "LINDEX", Contract: Contract{MinArgs: 2, Type: list, ReadOnly: true}, Handler: handleLIndex},
		{Name: "LSET", Contract: Contract{MinArgs: 3, Type: list}, Handler: handleLSet},
	}
}

// handleLPush inserts each element at the head in argument order, so the
// last argument ends up first
func handleLPush(r *Request) protocol.Value {
	args := r.Args()[1:]
	reversed := make([][]byte, len(args))
	for i, a := range args {
		reversed[len(args)-1-i] = a
	}
	result := r.DB.Merge(r.Key(), storage.NewList(reversed...), storage.ListPrepend)
	return protocol.Integer(int64(result.Size()))
}

func handleRPush(r *Request) protocol.Value {
	result := r.DB.Merge(r.Key(), storage.NewList(r.Args()[1:]...), storage.ListAppend)
	return protocol.Integer(int64(result.Size()))
}

func popHandler(head bool) HandlerFunc {
	return func(r *Request) protocol.Value {
		value := r.DB.Get(r.Key())
		elements := value.List()
		if len(elements) == 0 {
			return protocol.Null()
		}

		var popped []byte
		var rest [][]byte
		if head {
			popped, rest = elements[0], elements[1:]
		} else {
			popped, rest = elements[len(elements)-1], elements[:len(elements)-1]
		}

		if len(rest) == 0 {
			r.DB.Remove(r.Key())
		} else {
			r.DB.Put(r.Key(), storage.NewList(rest...).WithExpiryOf(value))
		}
		return protocol.Bulk(popped)
	}
}

func handleLLen(r *Request) protocol.Value {
	return protocol.Integer(int64(r.DB.Get(r.Key()).Size()))
}

func handleLRange(r *Request) protocol.Value {
	start, ok1 := parseInt(r.Arg(1))
	stop, ok2 := parseInt(r.Arg(2))
	if !ok1 || !ok2 {
		return errNotInteger
	}
	elements := r.DB.Get(r.Key()).List()
	from, to, ok := storage.NormalizeRange(int(start), int(stop), len(elements))
	if !ok {
		return protocol.Array()
	}
	return protocol.BulkArray(elements[from : to+1])
}

// listIndex resolves a possibly negative index against n elements
func listIndex(i int64, n int) (int, bool) {
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, false
	}
	return int(i), true
}

func handleLIndex(r *Request) protocol.Value {
	i, ok := parseInt(r.Arg(1))
	if !ok {
		return errNotInteger
	}
	elements := r.DB.Get(r.Key()).List()
	idx, ok := listIndex(i, len(elements))
	if !ok {
		return protocol.Null()
	}
	return protocol.Bulk(elements[idx])
}

func handleLSet(r *Request) protocol.Value {
	i, ok := parseInt(r.Arg(1))
	if !ok {
		return errNotInteger
	}
	value := r.DB.Get(r.Key())
	if value == nil {
		return errNoSuchKey
	}
	elements := value.List()
	idx, ok := listIndex(i, len(elements))
	if !ok {
		return errOutOfRange
	}

	updated := make([][]byte, len(elements))
	copy(updated, elements)
	updated[idx] = r.Arg(2)
	r.DB.Put(r.Key(), storage.NewList(updated...).WithExpiryOf(value))
	return protocol.OK()
}
