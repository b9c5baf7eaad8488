package server

import (
	"sort"
	"strings"
	"time"

	"github.com/raniellyferreira/inmemdb/protocol"
	"github.com/raniellyferreira/inmemdb/storage"
)

// Contract is the static metadata checked before a handler runs
type Contract struct {
	// MinArgs is the minimum number of arguments after the command name
	MinArgs int

	// Type, when not ValueTypeNone, is the type argument 0 must hold if
	// the key exists
	Type storage.ValueType

	// PubSubAllowed marks commands accepted while subscribed
	PubSubAllowed bool

	// TxIgnore marks commands that run immediately inside MULTI
	TxIgnore bool

	// ReadOnly marks commands that never mutate a keyspace. They are
	// neither replicated nor notified and are accepted on a replica.
	ReadOnly bool

	// NoScript marks commands refused from redis.call
	NoScript bool
}

// HandlerFunc executes one command against a resolved request
type HandlerFunc func(r *Request) protocol.Value

// Command binds a name to its contract and handler
type Command struct {
	Name     string
	Contract Contract
	Handler  HandlerFunc
}

// Request is one command bound to the session and keyspace it runs against
type Request struct {
	Server  *Server
	Session *Session
	Command *protocol.Command

	// DB is the keyspace selected by the session when the request started
	DB      *storage.Keyspace
	DBIndex int

	// replicate overrides the command appended to the replication queue
	replicate *protocol.Command

	// direct is set for requests read from a client connection
	direct bool
}

// Args returns the arguments after the command name
func (r *Request) Args() [][]byte {
	return r.Command.Args
}

// Arg returns argument i
func (r *Request) Arg(i int) []byte {
	return r.Command.Args[i]
}

// Key returns argument 0 as a string
func (r *Request) Key() string {
	return string(r.Command.Args[0])
}

// Replicate replaces the command streamed to replicas, for handlers whose
// effect is not deterministic
func (r *Request) Replicate(cmd *protocol.Command) {
	r.replicate = cmd
}

func (r *Request) replicated() *protocol.Command {
	if r.replicate != nil {
		return r.replicate
	}
	return r.Command
}

// Gateway resolves commands and enforces their contract
type Gateway struct {
	commands   map[string]*Command
	logger     Logger
	metrics    MetricsCollector
	afterWrite func(r *Request)
}

func newGateway(logger Logger, metrics MetricsCollector) *Gateway {
	return &Gateway{
		commands: make(map[string]*Command),
		logger:   logger,
		metrics:  metrics,
	}
}

// Register adds commands, replacing any with the same name
func (g *Gateway) Register(cmds ...Command) {
	for i := range cmds {
		cmd := cmds[i]
		cmd.Name = strings.ToUpper(cmd.Name)
		g.commands[cmd.Name] = &cmd
	}
}

// Lookup returns the command registered under name
func (g *Gateway) Lookup(name string) (*Command, bool) {
	cmd, ok := g.commands[strings.ToUpper(name)]
	return cmd, ok
}

// Names returns every registered command name, sorted
func (g *Gateway) Names() []string {
	names := make([]string, 0, len(g.commands))
	for name := range g.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute checks the contract in order (arity, type, pub/sub context,
// transaction queueing) and runs the handler. It never panics.
func (g *Gateway) Execute(r *Request) protocol.Value {
	cmd, ok := g.commands[r.Command.Name]
	if !ok {
		return errUnknownCommand(r.Command.Name)
	}
	c := cmd.Contract
	args := r.Command.Args

	if len(args) < c.MinArgs {
		return errArity(r.Command.Name)
	}
	if c.Type != storage.ValueTypeNone && len(args) > 0 && !r.DB.IsType(string(args[0]), c.Type) {
		return errWrongType
	}
	if r.Session.Subscriptions() > 0 && !c.PubSubAllowed {
		return errPubSubContext
	}
	if r.Session.InTransaction() && !c.TxIgnore {
		r.Session.Enqueue(r.Command)
		return protocol.Status("QUEUED")
	}

	start := time.Now()
	reply := g.invoke(cmd, r)
	if g.metrics != nil {
		g.metrics.RecordCommandProcessed(cmd.Name, time.Since(start))
		if reply.IsError() {
			g.metrics.RecordError("command")
		}
	}

	if !c.ReadOnly && !reply.IsError() && g.afterWrite != nil {
		g.afterWrite(r)
	}
	return reply
}

func (g *Gateway) invoke(cmd *Command, r *Request) (reply protocol.Value) {
	defer func() {
		if p := recover(); p != nil {
			g.logger.Error("Command execution failed", "request", r.Command.String(), "panic", p)
			reply = protocol.Errorf("ERR error executing command: %s", r.Command)
		}
	}()
	return cmd.Handler(r)
}
