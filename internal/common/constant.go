// Package common contains shared constants, sentinel errors and small
// helpers used by both the client and the reference server.
package common

// RoleHeaderName is the HTTP header carrying the caller's role identifier on
// push and pull requests.
const RoleHeaderName = "X-Role"

// KeyPrefix namespaces every key the client writes into shared storage.
const KeyPrefix = "gk:"

// Change statuses reported by the remote authority for each pushed item.
const (
	StatusOK       = "ok"
	StatusSkipped  = "skipped"
	StatusConflict = "conflict"
	StatusInvalid  = "invalid"
)
