// Package inmemdb provides an embeddable, Redis-compatible in-memory server
// with numbered keyspaces, key expiry, transactions, pub/sub, Lua scripting,
// primary/replica replication and snapshot persistence.
//
// Basic usage:
//
//	db, err := inmemdb.New(
//		inmemdb.WithAddr(":7081"),
//		inmemdb.WithPersistence("dump.rdb", time.Minute),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
//	reply, _ := db.Do("SET", "greeting", "hello")
//	fmt.Println(reply) // OK
//
// A second instance started with WithReplicaOf follows the first: it loads a
// full snapshot through SYNC, then applies the writes streamed by the
// primary, and rejects client writes with a READONLY error.
//
// The wire protocol is RESP2, so any Redis client can connect.
package inmemdb
