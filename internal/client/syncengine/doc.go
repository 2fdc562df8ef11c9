// Package syncengine keeps a durable queue of local changes and reconciles it
// with the remote authority.
//
// Flush pushes the head of the queue as one batch, drops the changes the
// remote acknowledged with "ok", keeps the rest ahead of anything queued
// later, and then pulls remote items newer than the checkpoint. The
// checkpoint never moves backwards. Queue, checkpoint and history live in
// the durable scope of the key/value facade.
//
// At most one flush runs at a time: a timer tick or a direct Flush call that
// arrives while one is in flight is skipped.
package syncengine
