// Package rdb encodes and decodes inmemdb snapshots.
//
// A snapshot is a flat big-endian opcode stream: the header "REDIS0006",
// one SELECT opcode per non-empty keyspace, one typed entry per key
// (optionally preceded by a TTL opcode), the END opcode, and an 8-byte
// CRC64 of everything before it.
//
//	var buf bytes.Buffer
//	if err := rdb.Export(&buf, map[int]*storage.Keyspace{0: ks}); err != nil {
//		return err
//	}
//	snap, err := rdb.Decode(&buf, time.Now())
//
// Decode drops entries whose expiry has already passed and reports how
// many were dropped.
package rdb
