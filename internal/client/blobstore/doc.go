// Package blobstore stores opaque payloads with a metadata index across an
// ordered list of storage tiers.
//
// The default layout has two tiers: a capacity-bounded fast tier (payloads in
// SQLite, metadata in the key/value index document) and an unbounded overflow
// tier backed by BadgerDB. Saves go to the first tier with room and fall back
// to the next on failure; reads take the first tier holding the id.
//
// Payloads may be gzip-compressed (text only) and encrypted with a key derived
// from a passphrase. Encrypted items read without a passphrase come back as
// opaque binary.
package blobstore
