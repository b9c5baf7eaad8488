package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType represents the type of a RESP value
type ValueType byte

const (
	// RESP value types
	TypeSimpleString ValueType = '+'
	TypeError        ValueType = '-'
	TypeInteger      ValueType = ':'
	TypeBulkString   ValueType = '$'
	TypeArray        ValueType = '*'

	// TypeMulti is never read from the wire. A Multi value is written as its
	// elements back to back, one frame each.
	TypeMulti ValueType = 'M'
)

// Value represents a RESP value, either parsed from a stream or built as a reply
type Value struct {
	Type    ValueType
	Data    []byte
	Integer int64
	Array   []Value
	IsNull  bool
}

// Status builds a simple string reply
func Status(s string) Value {
	return Value{Type: TypeSimpleString, Data: []byte(s)}
}

// OK is the "+OK" status reply
func OK() Value {
	return Status("OK")
}

// Error builds an error reply
func Error(msg string) Value {
	return Value{Type: TypeError, Data: []byte(msg)}
}

// Errorf builds an error reply from a format string
func Errorf(format string, args ...interface{}) Value {
	return Error(fmt.Sprintf(format, args...))
}

// Integer builds an integer reply
func Integer(n int64) Value {
	return Value{Type: TypeInteger, Integer: n}
}

// Bool builds an integer reply of 1 or 0
func Bool(b bool) Value {
	if b {
		return Integer(1)
	}
	return Integer(0)
}

// Bulk builds a bulk string reply
func Bulk(data []byte) Value {
	if data == nil {
		data = []byte{}
	}
	return Value{Type: TypeBulkString, Data: data}
}

// BulkString builds a bulk string reply from a string
func BulkString(s string) Value {
	return Value{Type: TypeBulkString, Data: []byte(s)}
}

// Null builds a null bulk string reply
func Null() Value {
	return Value{Type: TypeBulkString, IsNull: true}
}

// Array builds an array reply
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Type: TypeArray, Array: items}
}

// BulkArray builds an array of bulk strings
func BulkArray(items [][]byte) Value {
	values := make([]Value, len(items))
	for i, item := range items {
		values[i] = Bulk(item)
	}
	return Array(values...)
}

// StringArray builds an array of bulk strings from strings
func StringArray(items ...string) Value {
	values := make([]Value, len(items))
	for i, item := range items {
		values[i] = BulkString(item)
	}
	return Array(values...)
}

// Multi groups several replies that must be written as separate frames
func Multi(items ...Value) Value {
	return Value{Type: TypeMulti, Array: items}
}

// String returns a string representation of the value
func (v Value) String() string {
	switch v.Type {
	case TypeSimpleString, TypeError:
		return string(v.Data)
	case TypeInteger:
		return strconv.FormatInt(v.Integer, 10)
	case TypeBulkString:
		if v.IsNull {
			return "(nil)"
		}
		return string(v.Data)
	case TypeArray, TypeMulti:
		if v.IsNull {
			return "(nil)"
		}
		parts := make([]string, len(v.Array))
		for i, item := range v.Array {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("unknown type %c", v.Type)
	}
}

// IsError returns true if this is an error value
func (v Value) IsError() bool {
	return v.Type == TypeError
}

// Error returns the error message if this is an error value
func (v Value) Error() string {
	if v.Type == TypeError {
		return string(v.Data)
	}
	return ""
}

// Flatten turns a Multi value into a plain array, leaving other values untouched
func (v Value) Flatten() Value {
	if v.Type == TypeMulti {
		return Array(v.Array...)
	}
	return v
}

// Command represents a request parsed from a RESP array
type Command struct {
	Name string
	Args [][]byte
}

// NewCommand builds a command from string parts
func NewCommand(name string, args ...string) *Command {
	cmd := &Command{Name: strings.ToUpper(name), Args: make([][]byte, len(args))}
	for i, arg := range args {
		cmd.Args[i] = []byte(arg)
	}
	return cmd
}

// ParseCommand parses a RESP array value into a Command
func ParseCommand(v Value) (*Command, error) {
	if v.Type != TypeArray || len(v.Array) == 0 {
		return nil, fmt.Errorf("invalid command format")
	}

	cmd := &Command{
		Args: make([][]byte, len(v.Array)-1),
	}

	if v.Array[0].Type != TypeBulkString {
		return nil, fmt.Errorf("command name must be bulk string")
	}
	cmd.Name = strings.ToUpper(string(v.Array[0].Data))

	for i := 1; i < len(v.Array); i++ {
		if v.Array[i].Type != TypeBulkString {
			return nil, fmt.Errorf("command arguments must be bulk strings")
		}
		cmd.Args[i-1] = v.Array[i].Data
	}

	return cmd, nil
}

// Value encodes the command back into a RESP array of bulk strings
func (c *Command) Value() Value {
	items := make([]Value, 0, len(c.Args)+1)
	items = append(items, BulkString(c.Name))
	for _, arg := range c.Args {
		items = append(items, Bulk(arg))
	}
	return Array(items...)
}

// String returns a string representation of the command
func (c *Command) String() string {
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = string(arg)
	}
	if len(args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(args, " ")
}
