package rdb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc64"
	"io"
	"sort"
	"strconv"

	"github.com/raniellyferreira/inmemdb/storage"
)

// Encoder writes a snapshot stream. Every byte before the trailer is fed to
// the running checksum.
type Encoder struct {
	bw  *bufio.Writer
	crc hash.Hash64
	out io.Writer
	err error
}

// NewEncoder creates an encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{
		bw:  bufio.NewWriter(w),
		crc: crc64.New(crcTable),
	}
	e.out = io.MultiWriter(e.bw, e.crc)
	return e
}

// Export writes a complete snapshot of the given keyspaces. Empty keyspaces
// are skipped.
func Export(w io.Writer, databases map[int]*storage.Keyspace) error {
	indexes := make([]int, 0, len(databases))
	for idx := range databases {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	enc := NewEncoder(w)
	enc.WriteHeader()
	for _, idx := range indexes {
		entries := databases[idx].Entries()
		if len(entries) == 0 {
			continue
		}
		enc.WriteSelect(idx)
		for _, entry := range entries {
			enc.WriteEntry(entry.Key, entry.Value)
		}
	}
	return enc.Close()
}

// WriteHeader writes the magic and version
func (e *Encoder) WriteHeader() {
	e.write([]byte(fmt.Sprintf("%s%04d", Magic, Version)))
}

// WriteSelect switches the keyspace for the following entries
func (e *Encoder) WriteSelect(index int) {
	e.write([]byte{OpcodeSelect})
	e.writeLength(uint32(index))
}

// WriteEntry writes one key, preceded by its expiry when it has one
func (e *Encoder) WriteEntry(key string, value *storage.Value) {
	if value.Expiry != nil {
		var ttl [9]byte
		ttl[0] = OpcodeTTLMillis
		binary.BigEndian.PutUint64(ttl[1:], uint64(value.Expiry.UnixMilli()))
		e.write(ttl[:])
	}

	switch data := value.Data.(type) {
	case storage.StringValue:
		e.write([]byte{TypeString})
		e.writeString([]byte(key))
		e.writeString(data.Data)
	case storage.ListValue:
		e.write([]byte{TypeList})
		e.writeString([]byte(key))
		e.writeLength(uint32(len(data.Elements)))
		for _, item := range data.Elements {
			e.writeString(item)
		}
	case storage.SetValue:
		e.write([]byte{TypeSet})
		e.writeString([]byte(key))
		e.writeLength(uint32(len(data.Members)))
		for _, member := range sortedKeys(data.Members) {
			e.writeString([]byte(member))
		}
	case *storage.ZSetValue:
		e.write([]byte{TypeZSet})
		e.writeString([]byte(key))
		e.writeLength(uint32(data.Len()))
		for _, m := range data.Members() {
			e.writeString([]byte(m.Member))
			e.writeString([]byte(strconv.FormatFloat(m.Score, 'g', -1, 64)))
		}
	case storage.HashValue:
		e.write([]byte{TypeHash})
		e.writeString([]byte(key))
		e.writeLength(uint32(len(data.Fields)))
		for _, field := range sortedKeys(data.Fields) {
			e.writeString([]byte(field))
			e.writeString(data.Fields[field])
		}
	default:
		e.fail(fmt.Errorf("rdb: unsupported value type %s for key %q", value.Type, key))
	}
}

// Close writes the terminator and checksum and flushes the stream
func (e *Encoder) Close() error {
	e.write([]byte{OpcodeEnd})
	if e.err != nil {
		return e.err
	}

	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], e.crc.Sum64())
	if _, err := e.bw.Write(sum[:]); err != nil {
		return err
	}
	return e.bw.Flush()
}

// writeLength encodes n in 1, 2 or 5 bytes
func (e *Encoder) writeLength(n uint32) {
	switch {
	case n < len6BitLimit:
		e.write([]byte{byte(n)})
	case n < len14BitLimit:
		e.write([]byte{0x40 | byte(n>>8), byte(n)})
	default:
		var buf [5]byte
		buf[0] = 0x80
		binary.BigEndian.PutUint32(buf[1:], n)
		e.write(buf[:])
	}
}

func (e *Encoder) writeString(s []byte) {
	e.writeLength(uint32(len(s)))
	e.write(s)
}

func (e *Encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	if _, err := e.out.Write(p); err != nil {
		e.fail(err)
	}
}

func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
