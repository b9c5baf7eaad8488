package rdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc64"
	"io"
	"strconv"
	"time"

	"github.com/raniellyferreira/inmemdb/storage"
)

// Handler receives snapshot content as it is parsed
type Handler interface {
	// OnDatabase is called when switching to a new keyspace
	OnDatabase(index int) error

	// OnKey is called for each live entry
	OnKey(key string, value *storage.Value) error

	// OnEnd is called once the checksum has been verified
	OnEnd() error
}

// Stats summarizes a parse
type Stats struct {
	Keys    int
	Expired int
}

// Parser reads a snapshot stream and verifies its checksum
type Parser struct {
	br      *bufio.Reader
	crc     hash.Hash64
	handler Handler
	now     time.Time
	stats   Stats
}

// NewParser creates a parser. Entries expiring at or before now are dropped.
func NewParser(r io.Reader, handler Handler, now time.Time) *Parser {
	return &Parser{
		br:      bufio.NewReader(r),
		crc:     crc64.New(crcTable),
		handler: handler,
		now:     now,
	}
}

// Stats returns counters of the last Parse
func (p *Parser) Stats() Stats {
	return p.stats
}

// Parse consumes the whole snapshot. The handler only sees OnEnd after the
// checksum matched, so a caller that stages entries and applies them in
// OnEnd never loads a corrupt snapshot.
func (p *Parser) Parse() error {
	if err := p.readHeader(); err != nil {
		return err
	}

	var expiry *time.Time
	for {
		opcode, err := p.readByte()
		if err != nil {
			return truncated("opcode", err)
		}

		switch opcode {
		case OpcodeEnd:
			if err := p.verifyChecksum(); err != nil {
				return err
			}
			return p.handler.OnEnd()

		case OpcodeSelect:
			index, err := p.readLength()
			if err != nil {
				return truncated("database index", err)
			}
			if err := p.handler.OnDatabase(int(index)); err != nil {
				return err
			}

		case OpcodeTTLSeconds:
			var buf [4]byte
			if err := p.readFull(buf[:]); err != nil {
				return truncated("expiry", err)
			}
			t := time.UnixMilli(int64(binary.BigEndian.Uint32(buf[:])) * 1000)
			expiry = &t

		case OpcodeTTLMillis:
			var buf [8]byte
			if err := p.readFull(buf[:]); err != nil {
				return truncated("expiry", err)
			}
			t := time.UnixMilli(int64(binary.BigEndian.Uint64(buf[:])))
			expiry = &t

		case TypeString, TypeList, TypeSet, TypeZSet, TypeHash:
			key, value, err := p.readEntry(opcode, expiry)
			expiry = nil
			switch {
			case errors.Is(err, ErrExpired):
				p.stats.Expired++
			case err != nil:
				return err
			default:
				p.stats.Keys++
				if err := p.handler.OnKey(key, value); err != nil {
					return err
				}
			}

		default:
			return formatErrorf("unknown opcode 0x%02x", opcode)
		}
	}
}

func (p *Parser) readHeader() error {
	header := make([]byte, len(Magic)+4)
	if err := p.readFull(header); err != nil {
		return truncated("header", err)
	}
	if string(header[:len(Magic)]) != Magic {
		return formatErrorf("bad magic %q", header[:len(Magic)])
	}
	version, err := strconv.Atoi(string(header[len(Magic):]))
	if err != nil {
		return formatErrorf("bad version %q", header[len(Magic):])
	}
	if version > MaxVersion {
		return formatErrorf("unsupported version %d (max supported: %d)", version, MaxVersion)
	}
	return nil
}

// readEntry reads one key and its payload. The whole entry is always
// consumed; an entry that is already expired yields ErrExpired.
func (p *Parser) readEntry(valueType byte, expiry *time.Time) (string, *storage.Value, error) {
	key, err := p.readString()
	if err != nil {
		return "", nil, truncated("key", err)
	}

	value, err := p.readValue(valueType)
	if err != nil {
		return "", nil, fmt.Errorf("rdb: reading value of %q: %w", key, err)
	}

	if expiry != nil {
		if !expiry.After(p.now) {
			return string(key), nil, ErrExpired
		}
		value = value.ExpiredAt(*expiry)
	}
	return string(key), value, nil
}

func (p *Parser) readValue(valueType byte) (*storage.Value, error) {
	switch valueType {
	case TypeString:
		data, err := p.readString()
		if err != nil {
			return nil, err
		}
		return storage.NewString(data), nil

	case TypeList, TypeSet:
		items, err := p.readStrings(1)
		if err != nil {
			return nil, err
		}
		if valueType == TypeList {
			return storage.NewList(items...), nil
		}
		return storage.NewSet(items...), nil

	case TypeZSet:
		pairs, err := p.readStrings(2)
		if err != nil {
			return nil, err
		}
		members := make([]storage.ZSetMember, 0, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			score, err := strconv.ParseFloat(string(pairs[i+1]), 64)
			if err != nil {
				return nil, formatErrorf("bad score %q", pairs[i+1])
			}
			members = append(members, storage.ZSetMember{Member: string(pairs[i]), Score: score})
		}
		return storage.NewZSet(members...), nil

	default:
		pairs, err := p.readStrings(2)
		if err != nil {
			return nil, err
		}
		return storage.NewHashPairs(pairs...), nil
	}
}

// readStrings reads a count followed by count*width strings
func (p *Parser) readStrings(width int) ([][]byte, error) {
	count, err := p.readLength()
	if err != nil {
		return nil, truncated("count", err)
	}

	items := make([][]byte, 0, min(int(count)*width, 1024))
	for i := 0; i < int(count)*width; i++ {
		item, err := p.readString()
		if err != nil {
			return nil, truncated("element", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// readLength decodes a length prefix: a first byte below 0x40 is the value,
// below 0x80 it carries the high 6 bits of a 14-bit value, otherwise a
// 4-byte big-endian value follows.
func (p *Parser) readLength() (uint32, error) {
	b, err := p.readByte()
	if err != nil {
		return 0, err
	}

	switch {
	case b < 0x40:
		return uint32(b), nil
	case b < 0x80:
		lo, err := p.readByte()
		if err != nil {
			return 0, err
		}
		return uint32(b&0x3F)<<8 | uint32(lo), nil
	default:
		var buf [4]byte
		if err := p.readFull(buf[:]); err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint32(buf[:]), nil
	}
}

func (p *Parser) readString() ([]byte, error) {
	length, err := p.readLength()
	if err != nil {
		return nil, err
	}
	if length > maxStringLength {
		return nil, formatErrorf("string length %d too large", length)
	}

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, p.br, int64(length)); err != nil {
		return nil, err
	}
	p.crc.Write(buf.Bytes())
	return buf.Bytes(), nil
}

func (p *Parser) verifyChecksum() error {
	expected := p.crc.Sum64()

	var buf [8]byte
	if _, err := io.ReadFull(p.br, buf[:]); err != nil {
		return truncated("checksum", err)
	}
	if binary.BigEndian.Uint64(buf[:]) != expected {
		return ErrChecksum
	}
	return nil
}

func (p *Parser) readByte() (byte, error) {
	b, err := p.br.ReadByte()
	if err != nil {
		return 0, err
	}
	p.crc.Write([]byte{b})
	return b, nil
}

func (p *Parser) readFull(buf []byte) error {
	if _, err := io.ReadFull(p.br, buf); err != nil {
		return err
	}
	p.crc.Write(buf)
	return nil
}

func truncated(what string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	var formatErr *FormatError
	if errors.As(err, &formatErr) {
		return err
	}
	return fmt.Errorf("rdb: reading %s: %w", what, err)
}
