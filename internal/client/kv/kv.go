// Package kv is the namespaced key/value facade used for small control
// documents: the fast-tier blob index and the sync queue, checkpoint and
// history.
//
// Every operation is best-effort. Encoding and backend failures are logged
// and reported as false or a zero value; nothing here returns an error.
package kv

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dmitrijs2005/gradekeeper/internal/client/repositories/kvstore"
	"github.com/dmitrijs2005/gradekeeper/internal/common"
	"github.com/dmitrijs2005/gradekeeper/internal/logging"
)

// Scope selects the backend a key lives in.
type Scope int

const (
	// ScopeSession lives as long as the process.
	ScopeSession Scope = iota
	// ScopeDurable survives restarts.
	ScopeDurable
)

func (s Scope) String() string {
	switch s {
	case ScopeSession:
		return "session"
	case ScopeDurable:
		return "durable"
	default:
		return "unknown"
	}
}

func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AllowedPrefixes are the namespaces EnsureStandard accepts.
var AllowedPrefixes = []string{
	common.KeyPrefix + "blob:",
	common.KeyPrefix + "sync:",
	common.KeyPrefix + "pref:",
}

type Store struct {
	session kvstore.Repository
	durable kvstore.Repository
	logger  logging.Logger
}

func NewStore(session, durable kvstore.Repository, logger logging.Logger) *Store {
	return &Store{session: session, durable: durable, logger: logger.With("component", "kv")}
}

// NewMemoryStore backs both scopes with process memory. Used by tests and
// by tools that must not touch disk.
func NewMemoryStore(logger logging.Logger) *Store {
	return NewStore(kvstore.NewMemoryRepository(), kvstore.NewMemoryRepository(), logger)
}

func (s *Store) backend(scope Scope) kvstore.Repository {
	if scope == ScopeDurable {
		return s.durable
	}
	return s.session
}

func fullKey(key string) string {
	return common.KeyPrefix + key
}

// Set stores value as JSON under key. It reports whether the write happened.
func (s *Store) Set(ctx context.Context, scope Scope, key string, value any) bool {
	b, err := json.Marshal(value)
	if err != nil {
		s.logger.Error(ctx, "kv encode failed", "scope", scope, "key", key, "error", err)
		return false
	}
	if err := s.backend(scope).Set(ctx, fullKey(key), b); err != nil {
		s.logger.Error(ctx, "kv write failed", "scope", scope, "key", key, "error", err)
		return false
	}
	return true
}

// Remove deletes key. Removing a missing key succeeds.
func (s *Store) Remove(ctx context.Context, scope Scope, key string) bool {
	if err := s.backend(scope).Delete(ctx, fullKey(key)); err != nil {
		s.logger.Error(ctx, "kv remove failed", "scope", scope, "key", key, "error", err)
		return false
	}
	return true
}

// Presence is the outcome of a Lookup.
type Presence int

const (
	Missing Presence = iota
	Found
	// Failed means the backend errored or the stored value did not decode.
	// Callers must not treat it as Missing and write over the key.
	Failed
)

func (p Presence) String() string {
	switch p {
	case Found:
		return "found"
	case Missing:
		return "missing"
	default:
		return "failed"
	}
}

// Lookup decodes the value under key into T and says whether it was there,
// absent, or unreadable.
func Lookup[T any](ctx context.Context, s *Store, scope Scope, key string) (T, Presence) {
	var zero T
	b, err := s.backend(scope).Get(ctx, fullKey(key))
	if err != nil {
		s.logger.Error(ctx, "kv read failed", "scope", scope, "key", key, "error", err)
		return zero, Failed
	}
	if b == nil {
		return zero, Missing
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		s.logger.Warn(ctx, "kv decode failed", "scope", scope, "key", key, "error", err)
		return zero, Failed
	}
	return v, Found
}

// Get is Lookup for callers that only care whether a value came back.
func Get[T any](ctx context.Context, s *Store, scope Scope, key string) (T, bool) {
	v, p := Lookup[T](ctx, s, scope, key)
	return v, p == Found
}

// Violation is a key outside the allowed namespaces.
type Violation struct {
	Scope Scope  `json:"scope"`
	Key   string `json:"key"`
}

// EnsureStandard reports every key in either scope that does not carry an
// allowed prefix. It never deletes anything.
func (s *Store) EnsureStandard(ctx context.Context) []Violation {
	var out []Violation
	for _, scope := range []Scope{ScopeSession, ScopeDurable} {
		keys, err := s.backend(scope).Keys(ctx)
		if err != nil {
			s.logger.Error(ctx, "kv scan failed", "scope", scope, "error", err)
			continue
		}
		for _, k := range keys {
			if !allowed(k) {
				out = append(out, Violation{Scope: scope, Key: k})
			}
		}
	}
	if len(out) > 0 {
		s.logger.Warn(ctx, "non-standard keys found", "count", len(out))
	}
	return out
}

func allowed(key string) bool {
	for _, p := range AllowedPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
