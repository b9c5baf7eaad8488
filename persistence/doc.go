// Package persistence keeps a snapshot file in step with a running server.
//
// A Manager loads the file on start when it exists, rewrites it every sync
// period and once more on stop. Every write goes to a temp file in the same
// directory that is then renamed over the old snapshot.
package persistence
