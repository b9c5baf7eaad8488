package server

import (
	"bytes"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/raniellyferreira/inmemdb/protocol"
	"github.com/raniellyferreira/inmemdb/rdb"
	"github.com/raniellyferreira/inmemdb/replication"
)

func serverCommands() []Command {
	return []Command{
		{Name: "PING", Contract: Contract{PubSubAllowed: true, ReadOnly: true}, Handler: handlePing},
		{Name: "ECHO", Contract: Contract{MinArgs: 1, ReadOnly: true}, Handler: handleEcho},
		{Name: "QUIT", Contract: Contract{PubSubAllowed: true, TxIgnore: true, ReadOnly: true, NoScript: true}, Handler: handleQuit},
		{Name: "TIME", Contract: Contract{ReadOnly: true}, Handler: handleTime},
		{Name: "SELECT", Contract: Contract{MinArgs: 1, ReadOnly: true}, Handler: handleSelect},
		{Name: "DBSIZE", Contract: Contract{ReadOnly: true}, Handler: handleDBSize},
		{Name: "FLUSHDB", Handler: handleFlushDB},
		{Name: "INFO", Contract: Contract{ReadOnly: true}, Handler: handleInfo},
		{Name: "ROLE", Contract: Contract{ReadOnly: true}, Handler: handleRole},
		{Name: "SYNC", Contract: Contract{ReadOnly: true, NoScript: true}, Handler: handleSync},
		{Name: "SLAVEOF", Contract: Contract{MinArgs: 2, ReadOnly: true, NoScript: true}, Handler: handleSlaveOf},
		{Name: "SAVE", Contract: Contract{ReadOnly: true, NoScript: true}, Handler: handleSave},
		{Name: "CLIENT", Contract: Contract{MinArgs: 1, ReadOnly: true, NoScript: true}, Handler: handleClient},
	}
}

func handlePing(r *Request) protocol.Value {
	if len(r.Args()) == 0 {
		return protocol.Status("PONG")
	}
	return protocol.Bulk(r.Arg(0))
}

func handleEcho(r *Request) protocol.Value {
	return protocol.Bulk(r.Arg(0))
}

func handleQuit(r *Request) protocol.Value {
	return protocol.OK()
}

func handleTime(r *Request) protocol.Value {
	now := time.Now()
	return protocol.StringArray(
		strconv.FormatInt(now.Unix(), 10),
		strconv.Itoa(now.Nanosecond()/1000),
	)
}

func handleSelect(r *Request) protocol.Value {
	idx, ok := parseInt(r.Arg(0))
	if !ok || r.Server.state.DB(int(idx)) == nil {
		return errInvalidDB
	}
	r.Session.Select(int(idx))
	return protocol.OK()
}

func handleDBSize(r *Request) protocol.Value {
	return protocol.Integer(int64(r.DB.Len()))
}

func handleFlushDB(r *Request) protocol.Value {
	r.DB.Clear()
	return protocol.OK()
}

func handleInfo(r *Request) protocol.Value {
	s := r.Server
	var b strings.Builder

	fmt.Fprintf(&b, "# Server\r\n")
	fmt.Fprintf(&b, "inmemdb_version:%s\r\n", s.cfg.Version)
	fmt.Fprintf(&b, "go_version:%s\r\n", runtime.Version())
	fmt.Fprintf(&b, "tcp_port:%s\r\n", portOf(s.Addr()))
	fmt.Fprintf(&b, "uptime_in_seconds:%d\r\n", int64(time.Since(s.startTime).Seconds()))
	fmt.Fprintf(&b, "\r\n# Clients\r\n")
	fmt.Fprintf(&b, "connected_clients:%d\r\n", s.clients.Size())
	fmt.Fprintf(&b, "\r\n# Replication\r\n")
	if s.state.IsMaster() {
		fmt.Fprintf(&b, "role:master\r\n")
		fmt.Fprintf(&b, "connected_slaves:%d\r\n", len(s.state.Slaves()))
	} else {
		host, port, state, _ := s.state.MasterInfo()
		fmt.Fprintf(&b, "role:slave\r\n")
		fmt.Fprintf(&b, "master_host:%s\r\nmaster_port:%s\r\nmaster_link_status:%s\r\n", host, port, state)
	}
	fmt.Fprintf(&b, "\r\n# Keyspace\r\n")
	for i := 0; i < s.state.Len(); i++ {
		if n := s.state.DB(i).Len(); n > 0 {
			fmt.Fprintf(&b, "db%d:keys=%d\r\n", i, n)
		}
	}
	return protocol.BulkString(b.String())
}

func handleRole(r *Request) protocol.Value {
	s := r.Server
	if host, port, state, ok := s.state.MasterInfo(); ok && !s.state.IsMaster() {
		p, _ := strconv.Atoi(port)
		return protocol.Array(
			protocol.BulkString("slave"),
			protocol.BulkString(host),
			protocol.Integer(int64(p)),
			protocol.BulkString(state),
			protocol.Integer(0),
		)
	}

	slaves := sortedSet(s.state.Admin().Get(adminSlaves).Set())
	items := make([]protocol.Value, 0, len(slaves))
	for _, id := range slaves {
		host, port, err := net.SplitHostPort(id)
		if err != nil {
			host, port = id, ""
		}
		items = append(items, protocol.StringArray(host, port, "0"))
	}
	return protocol.Array(
		protocol.BulkString("master"),
		protocol.Integer(0),
		protocol.Array(items...),
	)
}

// handleSync exports a snapshot and registers the caller as a slave. Writes
// still queued are flushed to the existing slaves first. The snapshot is
// queued on the caller's connection before any streamed frame can be.
func handleSync(r *Request) protocol.Value {
	s := r.Server

	var buf bytes.Buffer
	if err := s.state.Export(&buf); err != nil {
		s.logger.Error("Full sync export failed", "slave", r.Session.ID(), "error", err)
		return protocol.Errorf("ERR snapshot export failed: %v", err)
	}

	// queued writes are already in the snapshot, so only current slaves get them
	if entries := s.state.Drain(); len(entries) > 0 {
		replication.Broadcast(primarySource{s}, entries, s.state.Slaves())
	}

	s.state.AddSlave(r.Session.ID())
	s.broadcaster.Start()
	s.logger.Info("Slave registered", "slave", r.Session.ID(), "bytes", buf.Len())

	reply := protocol.Bulk(buf.Bytes())
	if r.direct && s.deliver(r.Session.ID(), reply) {
		return protocol.Multi()
	}
	return reply
}

func handleSlaveOf(r *Request) protocol.Value {
	s := r.Server
	host, port := string(r.Arg(0)), string(r.Arg(1))

	if strings.EqualFold(host, "NO") && strings.EqualFold(port, "ONE") {
		if s.replica != nil {
			s.replica.Stop()
			s.replica = nil
		}
		s.state.SetMaster(true)
		s.state.ClearMasterInfo()
		return protocol.OK()
	}

	if p, err := strconv.Atoi(port); err != nil || p <= 0 || p > 65535 {
		return errNotInteger
	}

	if s.replica != nil {
		s.replica.Stop()
	}

	target := &replicaTarget{
		server:  s,
		session: NewSession("master:" + net.JoinHostPort(host, port)),
		host:    host,
		port:    port,
	}
	replica := replication.NewReplica(host, port, target)
	replica.SetLogger(s.logger)
	if s.metrics != nil {
		replica.SetMetrics(s.metrics)
	}
	target.replica = replica

	s.replica = replica
	s.state.SetMasterInfo(host, port, replication.StateDisconnected)
	replica.Start()
	return protocol.OK()
}

func handleSave(r *Request) protocol.Value {
	s := r.Server
	if s.persister == nil {
		return protocol.Error("ERR persistence is disabled")
	}

	var buf bytes.Buffer
	if err := s.state.Export(&buf); err != nil {
		return protocol.Errorf("ERR snapshot export failed: %v", err)
	}
	if err := s.persister.Store(buf.Bytes()); err != nil {
		s.logger.Error("SAVE failed", "error", err)
		return protocol.Errorf("ERR %v", err)
	}
	return protocol.OK()
}

func handleClient(r *Request) protocol.Value {
	switch strings.ToUpper(string(r.Arg(0))) {
	case "SETNAME", "SETINFO":
		return protocol.OK()
	case "GETNAME":
		return protocol.Null()
	case "ID":
		return protocol.BulkString(r.Session.ID())
	default:
		return protocol.Errorf("ERR unknown subcommand '%s'", r.Arg(0))
	}
}

// replicaTarget applies what a Replica receives. Calls from a replica that
// has since been replaced or stopped are ignored.
type replicaTarget struct {
	server     *Server
	session    *Session
	host, port string
	replica    *replication.Replica
}

func (t *replicaTarget) current() bool {
	return t.server.replica == t.replica
}

func (t *replicaTarget) Import(snap *rdb.Snapshot) error {
	return t.server.exec.submit(func() {
		if t.current() {
			t.server.state.FlushAll()
			t.server.importSnapshot(snap)
		}
	})
}

func (t *replicaTarget) Apply(cmd *protocol.Command) error {
	return t.server.exec.submit(func() {
		if !t.current() {
			return
		}
		if reply := t.server.gateway.Execute(t.server.newRequest(t.session, cmd)); reply.IsError() {
			t.server.logger.Error("Replicated command failed", "request", cmd.String(), "reply", reply.Error())
		}
	})
}

func (t *replicaTarget) SetState(state string) {
	t.server.exec.submit(func() {
		if !t.current() {
			return
		}
		t.server.state.SetMasterInfo(t.host, t.port, state)
		t.server.state.SetMaster(state != replication.StateConnected)
	})
}

func portOf(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	return port
}
