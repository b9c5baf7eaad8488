package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/raniellyferreira/inmemdb/lua"
	"github.com/raniellyferreira/inmemdb/protocol"
	"github.com/raniellyferreira/inmemdb/rdb"
	"github.com/raniellyferreira/inmemdb/replication"
)

// Logger interface for server logging
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// MetricsCollector interface for server metrics
type MetricsCollector interface {
	RecordCommandProcessed(cmd string, duration time.Duration)
	RecordError(errorType string)
	RecordKeyCount(count int64)
	RecordEviction(count int64)
	RecordSyncDuration(duration time.Duration)
	RecordNetworkBytes(bytes int64)
	RecordReconnection()
}

// Persister stores a snapshot produced by SAVE
type Persister interface {
	Store(data []byte) error
}

// Config holds the server settings. OutputLimit is the number of replies and
// messages queued for one client before it is disconnected.
type Config struct {
	Addr              string
	Databases         int
	CleanPeriod       time.Duration
	ReplicationPeriod time.Duration
	Notifications     bool
	OutputLimit       int
	Version           string
	Logger            Logger
	Metrics           MetricsCollector
}

// Server is a RESP server backed by a single executor
type Server struct {
	cfg     Config
	logger  Logger
	metrics MetricsCollector

	state       *State
	exec        *executor
	gateway     *Gateway
	dispatcher  *dispatcher
	lua         *lua.Engine
	broadcaster *replication.Broadcaster
	cleaner     *cleaner
	persister   Persister

	// replica is only read and written on the executor
	replica *replication.Replica

	listener net.Listener
	clients  *xsync.MapOf[string, *Client]

	startTime time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped sync.Once
}

// Client is a connected peer
type Client struct {
	conn    net.Conn
	reader  *protocol.Reader
	writer  *protocol.Writer
	server  *Server
	session *Session

	out        chan outbound
	writerDone chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// outbound is one reply or message queued for a client. The writer closes
// the connection after a value marked last.
type outbound struct {
	value protocol.Value
	last  bool
}

// New creates a server. Nothing listens until Start.
func New(cfg Config) *Server {
	if cfg.Databases <= 0 {
		cfg.Databases = 10
	}
	if cfg.CleanPeriod <= 0 {
		cfg.CleanPeriod = 30 * time.Second
	}
	if cfg.ReplicationPeriod <= 0 {
		cfg.ReplicationPeriod = 2 * time.Second
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		state:     NewState(cfg.Databases),
		exec:      newExecutor(1024),
		clients:   xsync.NewMapOf[string, *Client](),
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	s.gateway = newGateway(s.logger, s.metrics)
	s.gateway.Register(builtinCommands()...)
	s.gateway.afterWrite = s.afterWrite

	s.dispatcher = newDispatcher(8, 256, s.clients.Load)
	s.lua = lua.NewEngine(s.state)

	s.broadcaster = replication.NewBroadcaster(primarySource{s}, cfg.ReplicationPeriod)
	s.broadcaster.SetLogger(s.logger)

	s.cleaner = newCleaner(s, cfg.CleanPeriod)
	return s
}

// SetPersister enables SAVE
func (s *Server) SetPersister(p Persister) {
	s.persister = p
}

// Gateway returns the command table, for registering extra commands
func (s *Server) Gateway() *Gateway {
	return s.gateway
}

// Start listens on the configured address and starts the eviction timer
func (s *Server) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	s.cleaner.start()

	s.wg.Add(1)
	go s.acceptConnections()

	s.logger.Info("Server listening", "addr", s.Addr(), "databases", s.cfg.Databases)
	return nil
}

// Stop stops the timers and the replica, disconnects every client, waits
// for the executor to go idle and clears the state
func (s *Server) Stop() error {
	s.stopped.Do(func() {
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}

		s.broadcaster.Stop()
		s.cleaner.stop()

		var replica *replication.Replica
		s.exec.submit(func() {
			replica = s.replica
			s.replica = nil
		})
		if replica != nil {
			replica.Stop()
		}

		s.clients.Range(func(_ string, c *Client) bool {
			c.Close()
			return true
		})
		s.wg.Wait()

		s.exec.submit(s.state.Clear)
		s.exec.stop()
		s.dispatcher.stop()
		if replica != nil {
			replica.Wait()
		}
		s.logger.Info("Server stopped")
	})
	return nil
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Execute runs one command for session on the executor
func (s *Server) Execute(session *Session, cmd *protocol.Command) (protocol.Value, error) {
	var reply protocol.Value
	err := s.exec.submit(func() {
		reply = s.call(session, cmd)
	})
	return reply, err
}

// Snapshot writes a snapshot of every keyspace to w
func (s *Server) Snapshot(w io.Writer) error {
	var buf bytes.Buffer
	var exportErr error
	if err := s.exec.submit(func() {
		exportErr = s.state.Export(&buf)
	}); err != nil {
		return err
	}
	if exportErr != nil {
		return exportErr
	}
	_, err := buf.WriteTo(w)
	return err
}

// Restore imports a snapshot read from r, replacing the listed keyspaces
func (s *Server) Restore(r io.Reader) error {
	snap, err := rdb.Decode(r, time.Now())
	if err != nil {
		return err
	}
	return s.exec.submit(func() {
		s.importSnapshot(snap)
	})
}

func (s *Server) importSnapshot(snap *rdb.Snapshot) {
	skipped := s.state.Import(snap)
	if len(skipped) > 0 {
		s.logger.Error("Snapshot keyspaces out of range were skipped", "indexes", skipped)
	}
	s.logger.Info("Snapshot imported", "keyspaces", len(snap.Databases), "expired", snap.Expired)
}

// call applies the read-only check and runs the gateway. It runs on the
// executor.
func (s *Server) call(session *Session, cmd *protocol.Command) protocol.Value {
	return s.guarded(s.newRequest(session, cmd))
}

// serve is call for a request read from a client connection. Handlers may
// queue replies on the connection themselves.
func (s *Server) serve(session *Session, cmd *protocol.Command) protocol.Value {
	r := s.newRequest(session, cmd)
	r.direct = true
	return s.guarded(r)
}

func (s *Server) guarded(r *Request) protocol.Value {
	if !s.state.IsMaster() {
		if c, ok := s.gateway.Lookup(r.Command.Name); ok && !c.Contract.ReadOnly {
			return errReadOnly
		}
	}
	return s.gateway.Execute(r)
}

func (s *Server) newRequest(session *Session, cmd *protocol.Command) *Request {
	idx := session.DB()
	return &Request{
		Server:  s,
		Session: session,
		Command: cmd,
		DB:      s.state.DB(idx),
		DBIndex: idx,
	}
}

// deliver queues v on the outbound channel of the client owning session id
func (s *Server) deliver(id string, v protocol.Value) bool {
	c, ok := s.clients.Load(id)
	if !ok {
		return false
	}
	return c.push(v)
}

// acceptConnections accepts new client connections
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("Accept failed", "error", err)
			return
		}

		s.handleNewClient(conn)
	}
}

func (s *Server) handleNewClient(conn net.Conn) {
	ctx, cancel := context.WithCancel(s.ctx)
	client := &Client{
		conn:       conn,
		reader:     protocol.NewReader(conn),
		writer:     protocol.NewWriter(conn),
		server:     s,
		session:    NewSession(conn.RemoteAddr().String()),
		out:        make(chan outbound, s.cfg.OutputLimit),
		writerDone: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}

	s.clients.Store(client.session.ID(), client)
	s.logger.Debug("Client connected", "client", client.session.ID())

	s.wg.Add(2)
	go client.writeLoop()
	go client.handle()
}

// Close closes the client connection
func (c *Client) Close() {
	c.cancel()
	if c.conn != nil {
		c.conn.Close()
	}
}

// send queues a value for the writer, giving up once the client is closed
func (c *Client) send(v protocol.Value) {
	select {
	case c.out <- outbound{value: v}:
	case <-c.ctx.Done():
	}
}

// push queues a value without blocking. A client whose queue is full is
// disconnected.
func (c *Client) push(v protocol.Value) bool {
	select {
	case c.out <- outbound{value: v}:
		return true
	case <-c.ctx.Done():
		return false
	default:
	}

	c.server.logger.Error("Client output limit reached, disconnecting", "client", c.session.ID(), "limit", cap(c.out))
	if c.server.metrics != nil {
		c.server.metrics.RecordError("output_limit")
	}
	c.Close()
	return false
}

// handle reads requests and runs them on the executor
func (c *Client) handle() {
	defer c.server.wg.Done()
	defer c.disconnect()

	for {
		value, err := c.reader.ReadNext()
		if err != nil {
			if err != io.EOF && c.ctx.Err() == nil {
				c.send(protocol.Errorf("ERR Protocol error: %v", err))
			}
			return
		}

		cmd, err := protocol.ParseCommand(value)
		if err != nil {
			c.send(protocol.Errorf("ERR Protocol error: %v", err))
			continue
		}

		var reply protocol.Value
		if err := c.server.exec.submit(func() {
			reply = c.server.serve(c.session, cmd)
		}); err != nil {
			return
		}

		if cmd.Name == "QUIT" {
			select {
			case c.out <- outbound{value: reply, last: true}:
				<-c.writerDone
			case <-c.ctx.Done():
			}
			return
		}
		c.send(reply)
	}
}

// writeLoop drains the outbound queue, flushing when it runs empty
func (c *Client) writeLoop() {
	defer c.server.wg.Done()
	defer close(c.writerDone)

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.out:
			if err := c.writer.WriteValue(msg.value); err != nil {
				c.Close()
				return
			}
			if len(c.out) == 0 || msg.last {
				if err := c.writer.Flush(); err != nil {
					c.Close()
					return
				}
			}
			if msg.last {
				return
			}
		}
	}
}

// disconnect releases the session's subscriptions and slave registration
func (c *Client) disconnect() {
	c.Close()
	c.server.clients.Delete(c.session.ID())
	c.server.exec.submit(func() {
		c.server.dropSession(c.session)
	})
	c.server.logger.Debug("Client disconnected", "client", c.session.ID())
}

type primarySource struct {
	s *Server
}

func (p primarySource) Drain(publish func([]replication.Entry, []string)) error {
	return p.s.exec.submit(func() {
		publish(p.s.state.Drain(), p.s.state.Slaves())
	})
}

func (p primarySource) Publish(slave string, frames []protocol.Value) {
	p.s.dispatcher.dispatch(slave, frames...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
