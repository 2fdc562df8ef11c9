// Package kvstore provides the raw byte backends behind the client key/value
// facade: a durable SQLite table and a process-lived in-memory map.
//
// Both implementations satisfy Repository. Keys are stored verbatim; any
// namespacing is applied by the caller (see internal/client/kv).
package kvstore
