// Package replication implements primary to replica streaming.
//
// On the primary, a Broadcaster drains the server's queue of write commands
// on a fixed period and publishes them to every registered slave as a PING
// followed by the commands, with SELECT frames marking keyspace changes.
//
// On the replica, a Replica dials the primary, issues SYNC, imports the
// snapshot carried by the bulk reply and then applies every streamed command:
//
//	r := replication.NewReplica("primary.local", "7081", target)
//	r.SetLogger(logger)
//	r.Start()
//	defer r.Stop()
//
// A lost connection flips the target back to disconnected and the replica
// keeps retrying until stopped.
package replication
