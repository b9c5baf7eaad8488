package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
)

const (
	// CRLF is the RESP line terminator
	CRLF = "\r\n"

	// maxBulkSize is the maximum size for bulk strings (1GB)
	maxBulkSize = 1024 * 1024 * 1024

	// maxArraySize is the maximum size for arrays
	maxArraySize = 1024 * 1024
)

var crlfBytes = []byte(CRLF)

// Reader is a streaming RESP protocol reader
type Reader struct {
	br *bufio.Reader
}

// NewReader creates a new streaming RESP reader
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadNext reads the next RESP value from the stream
func (r *Reader) ReadNext() (Value, error) {
	typeByte, err := r.br.ReadByte()
	if err != nil {
		return Value{}, err
	}

	switch ValueType(typeByte) {
	case TypeSimpleString, TypeError:
		line, err := r.readLine()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: ValueType(typeByte), Data: line}, nil
	case TypeInteger:
		line, err := r.readLine()
		if err != nil {
			return Value{}, err
		}
		n, err := parseInt64(line)
		if err != nil {
			return Value{}, fmt.Errorf("invalid integer: %s", line)
		}
		return Value{Type: TypeInteger, Integer: n}, nil
	case TypeBulkString:
		return r.readBulkString()
	case TypeArray:
		return r.readArray()
	default:
		if typeByte == 0 {
			return Value{}, fmt.Errorf("unknown RESP type: empty byte (connection may be closed)")
		}
		return Value{}, fmt.Errorf("unknown RESP type: %c (0x%02x)", typeByte, typeByte)
	}
}

// ReadBulkString reads a bulk string frame in chunks, calling fn for each
// chunk. A null bulk string calls fn once with nil. An error reply from the
// peer is returned as an error.
func (r *Reader) ReadBulkString(fn func(chunk []byte) error) error {
	typeByte, err := r.br.ReadByte()
	if err != nil {
		return err
	}

	switch ValueType(typeByte) {
	case TypeBulkString:
	case TypeError:
		line, err := r.readLine()
		if err != nil {
			return err
		}
		return fmt.Errorf("%s", line)
	default:
		return fmt.Errorf("expected bulk string, got %c", typeByte)
	}

	length, null, err := r.readLength(maxBulkSize)
	if err != nil {
		return fmt.Errorf("invalid bulk string length: %w", err)
	}
	if null {
		return fn(nil)
	}

	const chunkSize = 8192
	buffer := make([]byte, chunkSize)
	for remaining := length; remaining > 0; {
		toRead := chunkSize
		if remaining < int64(chunkSize) {
			toRead = int(remaining)
		}
		n, err := io.ReadFull(r.br, buffer[:toRead])
		if err != nil {
			return err
		}
		if err := fn(buffer[:n]); err != nil {
			return err
		}
		remaining -= int64(n)
	}

	return r.expectCRLF()
}

func (r *Reader) readBulkString() (Value, error) {
	length, null, err := r.readLength(maxBulkSize)
	if err != nil {
		return Value{}, fmt.Errorf("invalid bulk string length: %w", err)
	}
	if null {
		return Null(), nil
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r.br, data); err != nil {
		return Value{}, err
	}
	if err := r.expectCRLF(); err != nil {
		return Value{}, err
	}

	return Value{Type: TypeBulkString, Data: data}, nil
}

func (r *Reader) readArray() (Value, error) {
	length, null, err := r.readLength(maxArraySize)
	if err != nil {
		return Value{}, fmt.Errorf("invalid array length: %w", err)
	}
	if null {
		return Value{Type: TypeArray, IsNull: true}, nil
	}

	array := make([]Value, length)
	for i := range array {
		value, err := r.ReadNext()
		if err != nil {
			return Value{}, err
		}
		array[i] = value
	}

	return Value{Type: TypeArray, Array: array}, nil
}

// readLength reads a frame length line. -1 marks a null frame.
func (r *Reader) readLength(limit int64) (int64, bool, error) {
	line, err := r.readLine()
	if err != nil {
		return 0, false, err
	}

	length, err := parseInt64(line)
	if err != nil {
		return 0, false, fmt.Errorf("%q", line)
	}
	if length == -1 {
		return 0, true, nil
	}
	if length < 0 || length > limit {
		return 0, false, fmt.Errorf("%d out of range", length)
	}
	return length, false, nil
}

// parseInt64 parses an int64 from a byte slice without allocation
func parseInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}

	var neg bool
	i := 0
	switch b[0] {
	case '-':
		neg = true
		i = 1
	case '+':
		i = 1
	}
	if i >= len(b) {
		return 0, strconv.ErrSyntax
	}

	var n int64
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, strconv.ErrSyntax
		}
		if n > (1<<63-1)/10 {
			return 0, strconv.ErrRange
		}
		n = n*10 + int64(b[i]-'0')
	}

	if neg {
		return -n, nil
	}
	return n, nil
}

// readLine reads a line terminated by CRLF
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read line: %w", err)
	}
	if !bytes.HasSuffix(line, crlfBytes) {
		return nil, fmt.Errorf("missing CRLF terminator in %q", line)
	}
	return line[:len(line)-2], nil
}

// expectCRLF reads and validates a CRLF terminator
func (r *Reader) expectCRLF() error {
	var crlf [2]byte
	if _, err := io.ReadFull(r.br, crlf[:]); err != nil {
		return fmt.Errorf("failed to read CRLF terminator: %w", err)
	}
	if !bytes.Equal(crlf[:], crlfBytes) {
		return fmt.Errorf("expected CRLF terminator [13, 10], got [%d, %d]", crlf[0], crlf[1])
	}
	return nil
}
