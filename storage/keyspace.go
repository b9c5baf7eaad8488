package storage

import (
	"sort"
	"time"
)

// Combiner merges the value stored under a key with a seed. Returning nil
// removes the key.
type Combiner func(existing, seed *Value) *Value

// Entry is a key and its value as seen by a scan
type Entry struct {
	Key   string
	Value *Value
}

// Keyspace maps keys to values for one logical database.
//
// A Keyspace is not safe for concurrent use. The server runs every access on
// its single execution context, which also makes Merge atomic.
type Keyspace struct {
	data map[string]*Value
	now  func() time.Time
}

// NewKeyspace creates an empty keyspace
func NewKeyspace() *Keyspace {
	return &Keyspace{
		data: make(map[string]*Value),
		now:  time.Now,
	}
}

// Get returns the live value under key. Expired values are reported as
// absent but stay in place until evicted.
func (k *Keyspace) Get(key string) *Value {
	v, ok := k.data[key]
	if !ok || v.IsExpired(k.now()) {
		return nil
	}
	return v
}

// Exists reports whether key holds a live value
func (k *Keyspace) Exists(key string) bool {
	return k.Get(key) != nil
}

// Put stores value under key and returns the previous live value
func (k *Keyspace) Put(key string, value *Value) *Value {
	prev := k.Get(key)
	k.data[key] = value
	return prev
}

// Remove deletes key and returns the removed live value
func (k *Keyspace) Remove(key string) *Value {
	prev := k.Get(key)
	delete(k.data, key)
	return prev
}

// Merge stores seed when key is absent, otherwise combine(existing, seed).
// A nil result deletes the key. The stored result is returned.
func (k *Keyspace) Merge(key string, seed *Value, combine Combiner) *Value {
	result := seed
	if existing := k.Get(key); existing != nil {
		result = combine(existing, seed)
	}
	if result == nil {
		delete(k.data, key)
		return nil
	}
	k.data[key] = result
	return result
}

// IsType reports whether key is absent or holds a value of type t
func (k *Keyspace) IsType(key string, t ValueType) bool {
	v := k.Get(key)
	return v == nil || v.Type == t
}

// Type returns the type under key, ValueTypeNone when absent
func (k *Keyspace) Type(key string) ValueType {
	if v := k.Get(key); v != nil {
		return v.Type
	}
	return ValueTypeNone
}

// Entries returns live entries sorted by key
func (k *Keyspace) Entries() []Entry {
	now := k.now()
	entries := make([]Entry, 0, len(k.data))
	for key, v := range k.data {
		if !v.IsExpired(now) {
			entries = append(entries, Entry{Key: key, Value: v})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// Keys returns live keys matching pattern, sorted
func (k *Keyspace) Keys(pattern string) []string {
	var keys []string
	for _, e := range k.Entries() {
		if Match(pattern, e.Key) {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

// EvictableKeys returns keys whose expiry is at or before now
func (k *Keyspace) EvictableKeys(now time.Time) []string {
	var keys []string
	for key, v := range k.data {
		if v.IsExpired(now) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of live keys
func (k *Keyspace) Len() int {
	now := k.now()
	n := 0
	for _, v := range k.data {
		if !v.IsExpired(now) {
			n++
		}
	}
	return n
}

// Clear removes every key
func (k *Keyspace) Clear() {
	k.data = make(map[string]*Value)
}

// Override replaces the whole content with entries
func (k *Keyspace) Override(entries map[string]*Value) {
	k.data = make(map[string]*Value, len(entries))
	for key, v := range entries {
		k.data[key] = v
	}
}
