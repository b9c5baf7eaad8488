// Package server implements the RESP server: numbered keyspaces plus an admin
// keyspace, the command gateway, transactions, pub/sub and both ends of
// replication.
//
// Every access to State runs on a single executor goroutine. Connection
// goroutines submit one request at a time and wait for the reply, timers post
// their work, and pub/sub messages and replication frames leave through a
// dispatcher whose workers are sharded by recipient so each client sees them
// in order.
//
// Commands are registered with a Contract checked by the Gateway before the
// handler runs: arity, key type, pub/sub context and transaction queueing, in
// that order. Successful writes are queued for replication when slaves are
// registered and, when enabled, published as keyspace notifications.
package server
