package rdb

import (
	"errors"
	"fmt"
	"hash/crc64"
)

// Snapshot format constants
const (
	Magic      = "REDIS"
	Version    = 6
	MaxVersion = 6

	OpcodeSelect     = 0xFE
	OpcodeTTLSeconds = 0xFD
	OpcodeTTLMillis  = 0xFC
	OpcodeEnd        = 0xFF

	TypeString = 0x00
	TypeList   = 0x01
	TypeSet    = 0x02
	TypeZSet   = 0x03
	TypeHash   = 0x04
)

const (
	len6BitLimit  = 0x40
	len14BitLimit = 0x80 * 0x40

	// maxStringLength bounds a single string read so a corrupt length
	// cannot trigger a huge allocation
	maxStringLength = 512 * 1024 * 1024
)

var (
	// ErrChecksum reports a trailer that does not match the content
	ErrChecksum = errors.New("rdb: checksum mismatch")

	// ErrExpired reports an entry whose expiry is already past at import time
	ErrExpired = errors.New("rdb: entry already expired")
)

// crcTable uses the Jones polynomial in reversed form
var crcTable = crc64.MakeTable(0x95ac9329ac4bc9b5)

// FormatError describes malformed snapshot content
type FormatError struct {
	Reason string
}

// Error implements the error interface
func (e *FormatError) Error() string {
	return fmt.Sprintf("rdb: invalid format: %s", e.Reason)
}

func formatErrorf(format string, args ...interface{}) error {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}
