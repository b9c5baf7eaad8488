package server

import (
	"math"
	"math/bits"
	"strconv"
	"strings"
	"time"

	"github.com/raniellyferreira/inmemdb/protocol"
	"github.com/raniellyferreira/inmemdb/storage"
)

func stringCommands() []Command {
	str := storage.ValueTypeString
	return []Command{
		{Name: "GET", Contract: Contract{MinArgs: 1, Type: str, ReadOnly: true}, Handler: handleGet},
		{Name: "MGET", Contract: Contract{MinArgs: 1, ReadOnly: true}, Handler: handleMGet},
		{Name: "SET", Contract: Contract{MinArgs: 2}, Handler: handleSet},
		{Name: "MSET", Contract: Contract{MinArgs: 2}, Handler: handleMSet},
		{Name: "MSETNX", Contract: Contract{MinArgs: 2}, Handler: handleMSetNX},
		{Name: "GETSET", Contract: Contract{MinArgs: 2, Type: str}, Handler: handleGetSet},
		{Name: "SETNX", Contract: Contract{MinArgs: 2}, Handler: handleSetNX},
		{Name: "SETEX", Contract: Contract{MinArgs: 3}, Handler: handleSetEX},
		{Name: "INCR", Contract: Contract{MinArgs: 1, Type: str}, Handler: incrHandler(1, false)},
		{Name: "DECR", Contract: Contract{MinArgs: 1, Type: str}, Handler: incrHandler(-1, false)},
		{Name: "INCRBY", Contract: Contract{MinArgs: 2, Type: str}, Handler: incrHandler(1, true)},
		{Name: "DECRBY", Contract: Contract{MinArgs: 2, Type: str}, Handler: incrHandler(-1, true)},
		{Name: "APPEND", Contract: Contract{MinArgs: 2, Type: str}, Handler: handleAppend},
		{Name: "STRLEN", Contract: Contract{MinArgs: 1, Type: str, ReadOnly: true}, Handler: handleStrlen},
		{Name: "GETBIT", Contract: Contract{MinArgs: 2, Type: str, ReadOnly: true}, Handler: handleGetBit},
		{Name: "SETBIT", Contract: Contract{MinArgs: 3, Type: str}, Handler: handleSetBit},
		{Name: "BITCOUNT", Contract: Contract{MinArgs: 1, Type: str, ReadOnly: true}, Handler: handleBitCount},
	}
}

func handleGet(r *Request) protocol.Value {
	value := r.DB.Get(r.Key())
	if value == nil {
		return protocol.Null()
	}
	return protocol.Bulk(value.Bytes())
}

func handleMGet(r *Request) protocol.Value {
	items := make([]protocol.Value, len(r.Args()))
	for i, key := range r.Args() {
		value := r.DB.Get(string(key))
		if value == nil || value.Type != storage.ValueTypeString {
			items[i] = protocol.Null()
			continue
		}
		items[i] = protocol.Bulk(value.Bytes())
	}
	return protocol.Array(items...)
}

// handleSet supports EX seconds, PX milliseconds, NX and XX
func handleSet(r *Request) protocol.Value {
	key := r.Key()
	value := storage.NewString(r.Arg(1))

	var nx, xx bool
	args := r.Args()[2:]
	for i := 0; i < len(args); i++ {
		switch strings.ToUpper(string(args[i])) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "EX", "PX":
			if i+1 >= len(args) {
				return errSyntax
			}
			n, ok := parseInt(args[i+1])
			if !ok {
				return errNotInteger
			}
			unit := time.Second
			if strings.EqualFold(string(args[i]), "PX") {
				unit = time.Millisecond
			}
			at, ok := expiryFrom(time.Now(), n, unit)
			if n <= 0 || !ok {
				return errInvalidExpire("set")
			}
			value = value.ExpiredAt(at)
			i++
		default:
			return errSyntax
		}
	}
	if nx && xx {
		return errSyntax
	}

	exists := r.DB.Exists(key)
	if (nx && exists) || (xx && !exists) {
		return protocol.Null()
	}
	r.DB.Put(key, value)
	return protocol.OK()
}

func handleMSet(r *Request) protocol.Value {
	args := r.Args()
	if len(args)%2 != 0 {
		return errArity(r.Command.Name)
	}
	for i := 0; i < len(args); i += 2 {
		r.DB.Put(string(args[i]), storage.NewString(args[i+1]))
	}
	return protocol.OK()
}

func handleMSetNX(r *Request) protocol.Value {
	args := r.Args()
	if len(args)%2 != 0 {
		return errArity(r.Command.Name)
	}
	for i := 0; i < len(args); i += 2 {
		if r.DB.Exists(string(args[i])) {
			return protocol.Integer(0)
		}
	}
	for i := 0; i < len(args); i += 2 {
		r.DB.Put(string(args[i]), storage.NewString(args[i+1]))
	}
	return protocol.Integer(1)
}

func handleGetSet(r *Request) protocol.Value {
	prev := r.DB.Put(r.Key(), storage.NewString(r.Arg(1)))
	if prev == nil {
		return protocol.Null()
	}
	return protocol.Bulk(prev.Bytes())
}

func handleSetNX(r *Request) protocol.Value {
	if r.DB.Exists(r.Key()) {
		return protocol.Integer(0)
	}
	r.DB.Put(r.Key(), storage.NewString(r.Arg(1)))
	return protocol.Integer(1)
}

func handleSetEX(r *Request) protocol.Value {
	seconds, ok := parseInt(r.Arg(1))
	if !ok {
		return errNotInteger
	}
	at, ok := expiryFrom(time.Now(), seconds, time.Second)
	if seconds <= 0 || !ok {
		return errInvalidExpire("setex")
	}
	value := storage.NewString(r.Arg(2)).ExpiredAt(at)
	r.DB.Put(r.Key(), value)
	return protocol.OK()
}

// incrHandler adds sign*delta to an integer string, delta being 1 or the
// parsed argument 1. The expiry of the key is kept.
func incrHandler(sign int64, withArg bool) HandlerFunc {
	return func(r *Request) protocol.Value {
		delta := int64(1)
		if withArg {
			n, ok := parseInt(r.Arg(1))
			if !ok {
				return errNotInteger
			}
			delta = n
		}
		if sign < 0 {
			if delta == math.MinInt64 {
				return errOverflow
			}
			delta = -delta
		}

		var current int64
		existing := r.DB.Get(r.Key())
		if existing != nil {
			n, ok := parseInt(existing.Bytes())
			if !ok {
				return errNotInteger
			}
			current = n
		}

		result := current + delta
		if (delta > 0 && result < current) || (delta < 0 && result > current) {
			return errOverflow
		}

		updated := storage.NewString([]byte(strconv.FormatInt(result, 10)))
		if existing != nil {
			updated = updated.WithExpiryOf(existing)
		}
		r.DB.Put(r.Key(), updated)
		return protocol.Integer(result)
	}
}

func handleAppend(r *Request) protocol.Value {
	result := r.DB.Merge(r.Key(), storage.NewString(r.Arg(1)), func(existing, seed *storage.Value) *storage.Value {
		data := make([]byte, 0, existing.Size()+seed.Size())
		data = append(data, existing.Bytes()...)
		data = append(data, seed.Bytes()...)
		return storage.NewString(data).WithExpiryOf(existing)
	})
	return protocol.Integer(int64(result.Size()))
}

func handleStrlen(r *Request) protocol.Value {
	return protocol.Integer(int64(r.DB.Get(r.Key()).Size()))
}

func parseBitOffset(b []byte) (int, bool) {
	n, ok := parseInt(b)
	if !ok || n < 0 || n >= 4<<30 {
		return 0, false
	}
	return int(n), true
}

func handleGetBit(r *Request) protocol.Value {
	offset, ok := parseBitOffset(r.Arg(1))
	if !ok {
		return errBitOffset
	}
	data := r.DB.Get(r.Key()).Bytes()
	if offset/8 >= len(data) {
		return protocol.Integer(0)
	}
	return protocol.Integer(int64(data[offset/8]>>(7-offset%8)) & 1)
}

func handleSetBit(r *Request) protocol.Value {
	offset, ok := parseBitOffset(r.Arg(1))
	if !ok {
		return errBitOffset
	}
	bit := string(r.Arg(2))
	if bit != "0" && bit != "1" {
		return errBitValue
	}

	existing := r.DB.Get(r.Key())
	old := existing.Bytes()
	size := len(old)
	if offset/8 >= size {
		size = offset/8 + 1
	}
	data := make([]byte, size)
	copy(data, old)

	mask := byte(1) << (7 - offset%8)
	previous := int64(0)
	if data[offset/8]&mask != 0 {
		previous = 1
	}
	if bit == "1" {
		data[offset/8] |= mask
	} else {
		data[offset/8] &^= mask
	}

	updated := storage.NewString(data)
	if existing != nil {
		updated = updated.WithExpiryOf(existing)
	}
	r.DB.Put(r.Key(), updated)
	return protocol.Integer(previous)
}

func handleBitCount(r *Request) protocol.Value {
	data := r.DB.Get(r.Key()).Bytes()
	args := r.Args()[1:]

	switch len(args) {
	case 0:
	case 2:
		start, ok1 := parseInt(args[0])
		stop, ok2 := parseInt(args[1])
		if !ok1 || !ok2 {
			return errNotInteger
		}
		from, to, ok := storage.NormalizeRange(int(start), int(stop), len(data))
		if !ok {
			return protocol.Integer(0)
		}
		data = data[from : to+1]
	default:
		return errSyntax
	}

	count := 0
	for _, b := range data {
		count += bits.OnesCount8(b)
	}
	return protocol.Integer(int64(count))
}
