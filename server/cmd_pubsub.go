package server

import (
	"github.com/raniellyferreira/inmemdb/protocol"
)

func pubsubCommands() []Command {
	sub := Contract{PubSubAllowed: true, ReadOnly: true, NoScript: true}
	withArg := sub
	withArg.MinArgs = 1
	return []Command{
		{Name: "SUBSCRIBE", Contract: withArg, Handler: handleSubscribe},
		{Name: "PSUBSCRIBE", Contract: withArg, Handler: handlePSubscribe},
		{Name: "UNSUBSCRIBE", Contract: sub, Handler: handleUnsubscribe},
		{Name: "PUNSUBSCRIBE", Contract: sub, Handler: handlePUnsubscribe},
		{Name: "PUBLISH", Contract: Contract{MinArgs: 2, ReadOnly: true}, Handler: handlePublish},
	}
}

func subscriptionFrame(kind string, name protocol.Value, count int) protocol.Value {
	return protocol.Array(protocol.BulkString(kind), name, protocol.Integer(int64(count)))
}

// confirm returns the confirmation frames. For a client connection they are
// queued from the executor so they precede any message published afterwards.
func confirm(r *Request, frames []protocol.Value) protocol.Value {
	if r.direct && r.Server.deliver(r.Session.ID(), protocol.Multi(frames...)) {
		return protocol.Multi()
	}
	return protocol.Multi(frames...)
}

func handleSubscribe(r *Request) protocol.Value {
	frames := make([]protocol.Value, 0, len(r.Args()))
	for _, ch := range stringsOf(r.Args()) {
		r.Server.subscribe(r.Session, ch)
		frames = append(frames, subscriptionFrame("subscribe", protocol.BulkString(ch), r.Session.Subscriptions()))
	}
	return confirm(r, frames)
}

func handlePSubscribe(r *Request) protocol.Value {
	frames := make([]protocol.Value, 0, len(r.Args()))
	for _, p := range stringsOf(r.Args()) {
		r.Server.psubscribe(r.Session, p)
		frames = append(frames, subscriptionFrame("psubscribe", protocol.BulkString(p), r.Session.Subscriptions()))
	}
	return confirm(r, frames)
}

// handleUnsubscribe drops the listed channels, or every channel when none is
// given
func handleUnsubscribe(r *Request) protocol.Value {
	channels := stringsOf(r.Args())
	if len(channels) == 0 {
		channels = r.Session.Channels()
	}
	if len(channels) == 0 {
		return confirm(r, []protocol.Value{subscriptionFrame("unsubscribe", protocol.Null(), r.Session.Subscriptions())})
	}
	frames := make([]protocol.Value, 0, len(channels))
	for _, ch := range channels {
		r.Server.unsubscribe(r.Session, ch)
		frames = append(frames, subscriptionFrame("unsubscribe", protocol.BulkString(ch), r.Session.Subscriptions()))
	}
	return confirm(r, frames)
}

func handlePUnsubscribe(r *Request) protocol.Value {
	patterns := stringsOf(r.Args())
	if len(patterns) == 0 {
		patterns = r.Session.Patterns()
	}
	if len(patterns) == 0 {
		return confirm(r, []protocol.Value{subscriptionFrame("punsubscribe", protocol.Null(), r.Session.Subscriptions())})
	}
	frames := make([]protocol.Value, 0, len(patterns))
	for _, p := range patterns {
		r.Server.punsubscribe(r.Session, p)
		frames = append(frames, subscriptionFrame("punsubscribe", protocol.BulkString(p), r.Session.Subscriptions()))
	}
	return confirm(r, frames)
}

func handlePublish(r *Request) protocol.Value {
	return protocol.Integer(int64(r.Server.publish(r.Key(), r.Arg(1))))
}
