package server

import (
	"github.com/raniellyferreira/inmemdb/protocol"
)

func transactionCommands() []Command {
	tx := Contract{TxIgnore: true, ReadOnly: true, NoScript: true}
	return []Command{
		{Name: "MULTI", Contract: tx, Handler: handleMulti},
		{Name: "EXEC", Contract: tx, Handler: handleExec},
		{Name: "DISCARD", Contract: tx, Handler: handleDiscard},
	}
}

func handleMulti(r *Request) protocol.Value {
	if r.Session.InTransaction() {
		return errNestedMulti
	}
	r.Session.Begin()
	return protocol.OK()
}

// handleExec replays the queued commands in order, one reply each. Every
// command passes through the gateway again, so writes are checked,
// replicated and notified individually.
func handleExec(r *Request) protocol.Value {
	if !r.Session.InTransaction() {
		return errExecNoMulti
	}
	queued := r.Session.Take()
	replies := make([]protocol.Value, 0, len(queued))
	for _, cmd := range queued {
		replies = append(replies, r.Server.call(r.Session, cmd).Flatten())
	}
	return protocol.Array(replies...)
}

func handleDiscard(r *Request) protocol.Value {
	r.Session.Discard()
	return protocol.OK()
}
