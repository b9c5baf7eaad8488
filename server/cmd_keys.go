package server

import (
	"time"

	"github.com/raniellyferreira/inmemdb/protocol"
)

func keyCommands() []Command {
	return []Command{
		{Name: "DEL", Contract: Contract{MinArgs: 1}, Handler: handleDel},
		{Name: "EXISTS", Contract: Contract{MinArgs: 1, ReadOnly: true}, Handler: handleExists},
		{Name: "TYPE", Contract: Contract{MinArgs: 1, ReadOnly: true}, Handler: handleType},
		{Name: "RENAME", Contract: Contract{MinArgs: 2}, Handler: handleRename},
		{Name: "KEYS", Contract: Contract{MinArgs: 1, ReadOnly: true}, Handler: handleKeys},
		{Name: "EXPIRE", Contract: Contract{MinArgs: 2}, Handler: expireHandler(time.Second)},
		{Name: "PEXPIRE", Contract: Contract{MinArgs: 2}, Handler: expireHandler(time.Millisecond)},
		{Name: "PERSIST", Contract: Contract{MinArgs: 1}, Handler: handlePersist},
		{Name: "TTL", Contract: Contract{MinArgs: 1, ReadOnly: true}, Handler: ttlHandler(time.Second)},
		{Name: "PTTL", Contract: Contract{MinArgs: 1, ReadOnly: true}, Handler: ttlHandler(time.Millisecond)},
	}
}

func handleDel(r *Request) protocol.Value {
	var removed int64
	for _, key := range r.Args() {
		if r.DB.Remove(string(key)) != nil {
			removed++
		}
	}
	return protocol.Integer(removed)
}

func handleExists(r *Request) protocol.Value {
	var found int64
	for _, key := range r.Args() {
		if r.DB.Exists(string(key)) {
			found++
		}
	}
	return protocol.Integer(found)
}

func handleType(r *Request) protocol.Value {
	return protocol.Status(r.DB.Type(r.Key()).String())
}

func handleRename(r *Request) protocol.Value {
	value := r.DB.Remove(r.Key())
	if value == nil {
		return errNoSuchKey
	}
	r.DB.Put(string(r.Arg(1)), value)
	return protocol.OK()
}

func handleKeys(r *Request) protocol.Value {
	return protocol.StringArray(r.DB.Keys(r.Key())...)
}

// expireHandler sets an absolute expiry of now + arg*unit. Repeating the
// command with the same argument therefore resets, never accumulates.
func expireHandler(unit time.Duration) HandlerFunc {
	return func(r *Request) protocol.Value {
		n, ok := parseInt(r.Arg(1))
		if !ok {
			return errNotInteger
		}
		at, ok := expiryFrom(time.Now(), n, unit)
		if !ok {
			return errInvalidExpire(r.Command.Name)
		}
		value := r.DB.Get(r.Key())
		if value == nil {
			return protocol.Integer(0)
		}
		r.DB.Put(r.Key(), value.ExpiredAt(at))
		return protocol.Integer(1)
	}
}

func handlePersist(r *Request) protocol.Value {
	value := r.DB.Get(r.Key())
	if value == nil || value.Expiry == nil {
		return protocol.Integer(0)
	}
	r.DB.Put(r.Key(), value.NoExpire())
	return protocol.Integer(1)
}

// ttlHandler reports the remaining time in unit, rounded to the nearest
// unit, -2 for a missing key and -1 for a key without expiry
func ttlHandler(unit time.Duration) HandlerFunc {
	return func(r *Request) protocol.Value {
		value := r.DB.Get(r.Key())
		if value == nil {
			return protocol.Integer(-2)
		}
		if value.Expiry == nil {
			return protocol.Integer(-1)
		}
		left := value.TTL(time.Now())
		return protocol.Integer(int64((left + unit/2) / unit))
	}
}
