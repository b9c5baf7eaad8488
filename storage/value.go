package storage

import (
	"bytes"
	"time"
)

// ValueType represents the data type held under a key
type ValueType int

const (
	// ValueTypeNone denotes a missing key. As a contract type it means "any".
	ValueTypeNone ValueType = iota
	ValueTypeString
	ValueTypeList
	ValueTypeSet
	ValueTypeZSet
	ValueTypeHash
)

// String returns the Redis-compatible type name
func (vt ValueType) String() string {
	switch vt {
	case ValueTypeString:
		return "string"
	case ValueTypeList:
		return "list"
	case ValueTypeSet:
		return "set"
	case ValueTypeZSet:
		return "zset"
	case ValueTypeHash:
		return "hash"
	default:
		return "none"
	}
}

// Payload is the variant specific content of a Value. The set of
// implementations is closed: StringValue, ListValue, SetValue, *ZSetValue
// and HashValue.
type Payload interface {
	valueType() ValueType
}

// StringValue represents a string value
type StringValue struct {
	Data []byte
}

// ListValue represents a list value
type ListValue struct {
	Elements [][]byte
}

// SetValue represents a set value
type SetValue struct {
	Members map[string]struct{}
}

// HashValue represents a hash value
type HashValue struct {
	Fields map[string][]byte
}

func (StringValue) valueType() ValueType { return ValueTypeString }
func (ListValue) valueType() ValueType   { return ValueTypeList }
func (SetValue) valueType() ValueType    { return ValueTypeSet }
func (*ZSetValue) valueType() ValueType  { return ValueTypeZSet }
func (HashValue) valueType() ValueType   { return ValueTypeHash }

// Value is an immutable stored value with an optional absolute expiry.
// Writers build a new Value and replace it under the key; the payload of a
// stored Value is never modified.
type Value struct {
	Type   ValueType
	Data   Payload
	Expiry *time.Time
}

func newValue(data Payload) *Value {
	return &Value{Type: data.valueType(), Data: data}
}

// NewString creates a string value
func NewString(data []byte) *Value {
	return newValue(StringValue{Data: cloneBytes(data)})
}

// NewList creates a list value holding elements in order
func NewList(elements ...[]byte) *Value {
	list := make([][]byte, len(elements))
	for i, e := range elements {
		list[i] = cloneBytes(e)
	}
	return newValue(ListValue{Elements: list})
}

// NewSet creates a set value
func NewSet(members ...[]byte) *Value {
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[string(m)] = struct{}{}
	}
	return newValue(SetValue{Members: set})
}

// NewSetFromMap creates a set value owning the given map
func NewSetFromMap(members map[string]struct{}) *Value {
	return newValue(SetValue{Members: members})
}

// NewZSet creates a sorted set value
func NewZSet(members ...ZSetMember) *Value {
	return newValue(NewZSetValue(members...))
}

// NewHash creates a hash value owning the given map
func NewHash(fields map[string][]byte) *Value {
	if fields == nil {
		fields = map[string][]byte{}
	}
	return newValue(HashValue{Fields: fields})
}

// NewHashPairs creates a hash from alternating field/value arguments
func NewHashPairs(pairs ...[]byte) *Value {
	fields := make(map[string][]byte, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields[string(pairs[i])] = cloneBytes(pairs[i+1])
	}
	return newValue(HashValue{Fields: fields})
}

// Bytes returns the string payload, or nil for other types. The accessors
// below accept a nil receiver, which reads as an absent key.
func (v *Value) Bytes() []byte {
	if v == nil {
		return nil
	}
	if s, ok := v.Data.(StringValue); ok {
		return s.Data
	}
	return nil
}

// List returns the list elements, or nil for other types
func (v *Value) List() [][]byte {
	if v == nil {
		return nil
	}
	if l, ok := v.Data.(ListValue); ok {
		return l.Elements
	}
	return nil
}

// Set returns the set members, or nil for other types
func (v *Value) Set() map[string]struct{} {
	if v == nil {
		return nil
	}
	if s, ok := v.Data.(SetValue); ok {
		return s.Members
	}
	return nil
}

// ZSet returns the sorted set payload, or nil for other types
func (v *Value) ZSet() *ZSetValue {
	if v == nil {
		return nil
	}
	if z, ok := v.Data.(*ZSetValue); ok {
		return z
	}
	return nil
}

// Hash returns the hash fields, or nil for other types
func (v *Value) Hash() map[string][]byte {
	if v == nil {
		return nil
	}
	if h, ok := v.Data.(HashValue); ok {
		return h.Fields
	}
	return nil
}

// Size returns the number of elements in a collection, or the byte length of a string
func (v *Value) Size() int {
	if v == nil {
		return 0
	}
	switch d := v.Data.(type) {
	case StringValue:
		return len(d.Data)
	case ListValue:
		return len(d.Elements)
	case SetValue:
		return len(d.Members)
	case *ZSetValue:
		return d.Len()
	case HashValue:
		return len(d.Fields)
	default:
		return 0
	}
}

// IsEmpty reports whether a collection value holds no elements
func (v *Value) IsEmpty() bool {
	return v.Type != ValueTypeString && v.Size() == 0
}

// ExpiredAt returns a copy of v that expires at t
func (v *Value) ExpiredAt(t time.Time) *Value {
	c := *v
	c.Expiry = &t
	return &c
}

// NoExpire returns a copy of v without expiry
func (v *Value) NoExpire() *Value {
	c := *v
	c.Expiry = nil
	return &c
}

// WithExpiryOf returns a copy of v carrying the expiry of other
func (v *Value) WithExpiryOf(other *Value) *Value {
	c := *v
	c.Expiry = other.Expiry
	return &c
}

// IsExpired reports whether the expiry instant is at or before now
func (v *Value) IsExpired(now time.Time) bool {
	return v.Expiry != nil && !v.Expiry.After(now)
}

// TTL returns the time left until expiry, or -1 if v never expires
func (v *Value) TTL(now time.Time) time.Duration {
	if v.Expiry == nil {
		return -1
	}
	return v.Expiry.Sub(now)
}

// Equal compares type, payload and expiry (at millisecond precision)
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Type != o.Type {
		return false
	}
	if (v.Expiry == nil) != (o.Expiry == nil) {
		return false
	}
	if v.Expiry != nil && v.Expiry.UnixMilli() != o.Expiry.UnixMilli() {
		return false
	}

	switch d := v.Data.(type) {
	case StringValue:
		return bytes.Equal(d.Data, o.Bytes())
	case ListValue:
		other := o.List()
		if len(d.Elements) != len(other) {
			return false
		}
		for i := range d.Elements {
			if !bytes.Equal(d.Elements[i], other[i]) {
				return false
			}
		}
		return true
	case SetValue:
		other := o.Set()
		if len(d.Members) != len(other) {
			return false
		}
		for m := range d.Members {
			if _, ok := other[m]; !ok {
				return false
			}
		}
		return true
	case *ZSetValue:
		return d.Equal(o.ZSet())
	case HashValue:
		other := o.Hash()
		if len(d.Fields) != len(other) {
			return false
		}
		for f, val := range d.Fields {
			ov, ok := other[f]
			if !ok || !bytes.Equal(val, ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return append([]byte(nil), b...)
}
