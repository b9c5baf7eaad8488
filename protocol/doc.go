// Package protocol implements the Redis Serialization Protocol (RESP)
// used by inmemdb clients and by the replication link.
//
// Basic usage:
//
//	reader := protocol.NewReader(conn)
//	writer := protocol.NewWriter(conn)
//	for {
//		value, err := reader.ReadNext()
//		if err != nil {
//			break
//		}
//		cmd, err := protocol.ParseCommand(value)
//		...
//		writer.WriteValue(protocol.OK())
//		writer.Flush()
//	}
//
// Replies are built with the constructors in this package (Status, Error,
// Integer, Bulk, Null, Array). A Multi value carries several replies that are
// written as separate frames, as needed by SUBSCRIBE.
package protocol
