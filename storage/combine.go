package storage

// Combiners used with Keyspace.Merge. Each keeps the expiry of the existing
// value and never mutates either argument.

// Replace stores the seed as is
func Replace(_, seed *Value) *Value {
	return seed
}

// HashUnion overlays the seed fields on the existing hash
func HashUnion(existing, seed *Value) *Value {
	fields := make(map[string][]byte, existing.Size()+seed.Size())
	for f, v := range existing.Hash() {
		fields[f] = v
	}
	for f, v := range seed.Hash() {
		fields[f] = v
	}
	return NewHash(fields).WithExpiryOf(existing)
}

// ListAppend adds the seed elements after the existing ones
func ListAppend(existing, seed *Value) *Value {
	elements := make([][]byte, 0, existing.Size()+seed.Size())
	elements = append(elements, existing.List()...)
	elements = append(elements, seed.List()...)
	return newValue(ListValue{Elements: elements}).WithExpiryOf(existing)
}

// ListPrepend adds the seed elements before the existing ones
func ListPrepend(existing, seed *Value) *Value {
	elements := make([][]byte, 0, existing.Size()+seed.Size())
	elements = append(elements, seed.List()...)
	elements = append(elements, existing.List()...)
	return newValue(ListValue{Elements: elements}).WithExpiryOf(existing)
}

// SetUnion adds the seed members
func SetUnion(existing, seed *Value) *Value {
	members := make(map[string]struct{}, existing.Size()+seed.Size())
	for m := range existing.Set() {
		members[m] = struct{}{}
	}
	for m := range seed.Set() {
		members[m] = struct{}{}
	}
	return NewSetFromMap(members).WithExpiryOf(existing)
}

// SetDifference removes the seed members. An emptied set is deleted.
func SetDifference(existing, seed *Value) *Value {
	remove := seed.Set()
	members := make(map[string]struct{}, existing.Size())
	for m := range existing.Set() {
		if _, ok := remove[m]; !ok {
			members[m] = struct{}{}
		}
	}
	if len(members) == 0 {
		return nil
	}
	return NewSetFromMap(members).WithExpiryOf(existing)
}

// ZSetUnion adds the seed members, the seed score winning on conflict
func ZSetUnion(existing, seed *Value) *Value {
	merged := existing.ZSet().With(seed.ZSet().Members()...)
	return newValue(merged).WithExpiryOf(existing)
}
