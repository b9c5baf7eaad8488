// Package storage provides the value model and keyspaces of inmemdb.
//
// A Value is an immutable tagged union over string, list, set, sorted set
// and hash payloads plus an optional expiry. A Keyspace maps keys to values;
// writers never modify a stored Value, they build a new one and swap it in,
// usually through Merge with one of the provided combiners:
//
//	ks := storage.NewKeyspace()
//	ks.Merge("l", storage.NewList([]byte("x")), storage.ListAppend)
//	ks.Merge("h", storage.NewHashPairs([]byte("f"), []byte("v")), storage.HashUnion)
//
// Keyspaces are not synchronized. Callers serialize access, which is what
// makes Merge atomic.
package storage
