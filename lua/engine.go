package lua

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/raniellyferreira/inmemdb/protocol"
)

// ErrNoScript is returned by EvalSHA for an unknown digest
var ErrNoScript = errors.New("NOSCRIPT No matching script. Please use EVAL.")

// Caller runs a command on behalf of a script. It is called on the goroutine
// running Eval.
type Caller interface {
	Call(cmd *protocol.Command) protocol.Value
}

// ScriptStore caches script bodies by their SHA1 digest
type ScriptStore interface {
	Script(sha string) (string, bool)
	PutScript(sha, body string)
	FlushScripts()
}

// Engine provides Redis-compatible Lua script execution
type Engine struct {
	store ScriptStore
}

// NewEngine creates a new Lua execution engine caching scripts in store
func NewEngine(store ScriptStore) *Engine {
	return &Engine{store: store}
}

// SHA1 returns the lowercase hex digest identifying body
func SHA1(body string) string {
	sum := sha1.Sum([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Load caches a script and returns its digest
func (e *Engine) Load(body string) string {
	sha := SHA1(body)
	e.store.PutScript(sha, body)
	return sha
}

// Exists reports for each digest whether its script is cached
func (e *Engine) Exists(shas ...string) []bool {
	results := make([]bool, len(shas))
	for i, sha := range shas {
		_, results[i] = e.store.Script(strings.ToLower(sha))
	}
	return results
}

// Flush removes all cached scripts
func (e *Engine) Flush() {
	e.store.FlushScripts()
}

// Eval caches and executes a script with the given keys and arguments
func (e *Engine) Eval(caller Caller, script string, keys, args [][]byte) (protocol.Value, error) {
	e.Load(script)
	return e.run(caller, script, keys, args)
}

// EvalSHA executes a previously loaded script by its digest
func (e *Engine) EvalSHA(caller Caller, sha string, keys, args [][]byte) (protocol.Value, error) {
	script, ok := e.store.Script(strings.ToLower(sha))
	if !ok {
		return protocol.Value{}, ErrNoScript
	}
	return e.run(caller, script, keys, args)
}

func (e *Engine) run(caller Caller, script string, keys, args [][]byte) (protocol.Value, error) {
	L := lua.NewState()
	defer L.Close()

	setupRedisAPI(L, caller, keys, args)

	if err := L.DoString(script); err != nil {
		return protocol.Value{}, fmt.Errorf("ERR Error running script: %w", err)
	}
	if L.GetTop() == 0 {
		return protocol.Null(), nil
	}
	return toReply(L.Get(1)), nil
}

// setupRedisAPI configures the Lua state with KEYS, ARGV and the redis table
func setupRedisAPI(L *lua.LState, caller Caller, keys, args [][]byte) {
	L.SetGlobal("KEYS", stringTable(L, keys))
	L.SetGlobal("ARGV", stringTable(L, args))

	redisTable := L.NewTable()
	L.SetFuncs(redisTable, map[string]lua.LGFunction{
		"call": func(L *lua.LState) int {
			reply, err := callFromLua(L, caller)
			if err == nil && reply.IsError() {
				err = errors.New(reply.Error())
			}
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(toLua(L, reply))
			return 1
		},
		"pcall": func(L *lua.LState) int {
			reply, err := callFromLua(L, caller)
			if err != nil {
				reply = protocol.Error(err.Error())
			}
			L.Push(toLua(L, reply))
			return 1
		},
		"status_reply": func(L *lua.LState) int {
			t := L.NewTable()
			t.RawSetString("ok", lua.LString(L.CheckString(1)))
			L.Push(t)
			return 1
		},
		"error_reply": func(L *lua.LState) int {
			t := L.NewTable()
			t.RawSetString("err", lua.LString(L.CheckString(1)))
			L.Push(t)
			return 1
		},
		"sha1hex": func(L *lua.LState) int {
			L.Push(lua.LString(SHA1(L.CheckString(1))))
			return 1
		},
	})
	L.SetGlobal("redis", redisTable)
}

func stringTable(L *lua.LState, items [][]byte) *lua.LTable {
	t := L.CreateTable(len(items), 0)
	for i, item := range items {
		t.RawSetInt(i+1, lua.LString(item))
	}
	return t
}

// callFromLua builds a command from the call arguments, which must be
// strings or numbers, and runs it through the caller
func callFromLua(L *lua.LState, caller Caller) (protocol.Value, error) {
	argc := L.GetTop()
	if argc == 0 {
		return protocol.Value{}, errors.New("ERR Please specify at least one argument for redis.call()")
	}

	parts := make([][]byte, argc)
	for i := 1; i <= argc; i++ {
		switch v := L.Get(i).(type) {
		case lua.LString:
			parts[i-1] = []byte(v)
		case lua.LNumber:
			parts[i-1] = []byte(v.String())
		default:
			return protocol.Value{}, errors.New("ERR Lua redis() command arguments must be strings or integers")
		}
	}

	cmd := &protocol.Command{Name: strings.ToUpper(string(parts[0])), Args: parts[1:]}
	return caller.Call(cmd), nil
}

// toLua converts a reply into a Lua value: integers to numbers, bulk strings
// to strings, nil bulk to false, arrays to tables, status to {ok=...} and
// errors to {err=...}
func toLua(L *lua.LState, v protocol.Value) lua.LValue {
	switch v.Type {
	case protocol.TypeInteger:
		return lua.LNumber(v.Integer)
	case protocol.TypeBulkString:
		if v.IsNull {
			return lua.LFalse
		}
		return lua.LString(v.Data)
	case protocol.TypeSimpleString:
		t := L.NewTable()
		t.RawSetString("ok", lua.LString(v.Data))
		return t
	case protocol.TypeError:
		t := L.NewTable()
		t.RawSetString("err", lua.LString(v.Data))
		return t
	case protocol.TypeArray, protocol.TypeMulti:
		if v.IsNull {
			return lua.LFalse
		}
		t := L.CreateTable(len(v.Array), 0)
		for i, item := range v.Array {
			t.RawSetInt(i+1, toLua(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}

// toReply converts a script result into a reply. Numbers are truncated to
// integers, true becomes 1 and false or nil a nil bulk. Tables with an err or
// ok field become error or status replies, other tables arrays up to the
// first nil.
func toReply(lv lua.LValue) protocol.Value {
	switch v := lv.(type) {
	case lua.LString:
		return protocol.BulkString(string(v))
	case lua.LNumber:
		return protocol.Integer(int64(v))
	case lua.LBool:
		if v {
			return protocol.Integer(1)
		}
		return protocol.Null()
	case *lua.LTable:
		if e, ok := v.RawGetString("err").(lua.LString); ok {
			return protocol.Error(string(e))
		}
		if s, ok := v.RawGetString("ok").(lua.LString); ok {
			return protocol.Status(string(s))
		}
		var items []protocol.Value
		for i := 1; ; i++ {
			item := v.RawGetInt(i)
			if item == lua.LNil {
				break
			}
			items = append(items, toReply(item))
		}
		return protocol.Array(items...)
	default:
		return protocol.Null()
	}
}
