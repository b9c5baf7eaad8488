package server

import (
	"errors"
	"strings"

	"github.com/raniellyferreira/inmemdb/lua"
	"github.com/raniellyferreira/inmemdb/protocol"
)

func scriptCommands() []Command {
	script := Contract{MinArgs: 2, ReadOnly: true, NoScript: true}
	return []Command{
		{Name: "EVAL", Contract: script, Handler: evalHandler(false)},
		{Name: "EVALSHA", Contract: script, Handler: evalHandler(true)},
		{Name: "SCRIPT", Contract: Contract{MinArgs: 1, ReadOnly: true, NoScript: true}, Handler: handleScript},
	}
}

// scriptCaller runs redis.call commands for a script on the session that
// issued EVAL. It already runs on the executor.
type scriptCaller struct {
	server  *Server
	session *Session
}

func (c scriptCaller) Call(cmd *protocol.Command) protocol.Value {
	registered, ok := c.server.gateway.Lookup(cmd.Name)
	if !ok {
		return errUnknownCommand(cmd.Name)
	}
	if registered.Contract.NoScript {
		return errNotInScript
	}
	return c.server.call(c.session, cmd)
}

// evalHandler parses "script|sha numkeys key... arg..."
func evalHandler(bySHA bool) HandlerFunc {
	return func(r *Request) protocol.Value {
		numKeys, ok := parseInt(r.Arg(1))
		if !ok {
			return errNotInteger
		}
		rest := r.Args()[2:]
		if numKeys < 0 {
			return protocol.Error("ERR Number of keys can't be negative")
		}
		if numKeys > int64(len(rest)) {
			return protocol.Error("ERR Number of keys can't be greater than number of args")
		}
		keys, args := rest[:numKeys], rest[numKeys:]

		caller := scriptCaller{server: r.Server, session: r.Session}
		var (
			reply protocol.Value
			err   error
		)
		if bySHA {
			reply, err = r.Server.lua.EvalSHA(caller, string(r.Arg(0)), keys, args)
		} else {
			reply, err = r.Server.lua.Eval(caller, string(r.Arg(0)), keys, args)
		}
		if errors.Is(err, lua.ErrNoScript) {
			return errNoScript
		}
		if err != nil {
			return protocol.Error(err.Error())
		}
		return reply
	}
}

func handleScript(r *Request) protocol.Value {
	engine := r.Server.lua
	switch strings.ToUpper(string(r.Arg(0))) {
	case "LOAD":
		if len(r.Args()) != 2 {
			return errArity("script|load")
		}
		return protocol.BulkString(engine.Load(string(r.Arg(1))))
	case "EXISTS":
		found := engine.Exists(stringsOf(r.Args()[1:])...)
		items := make([]protocol.Value, len(found))
		for i, ok := range found {
			items[i] = protocol.Bool(ok)
		}
		return protocol.Array(items...)
	case "FLUSH":
		engine.Flush()
		return protocol.OK()
	default:
		return protocol.Errorf("ERR unknown subcommand '%s'", r.Arg(0))
	}
}
