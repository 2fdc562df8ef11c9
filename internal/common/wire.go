package common

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ChangeType is the kind of a queued local mutation.
type ChangeType string

const (
	ChangeUpsert ChangeType = "upsert"
	ChangeDelete ChangeType = "delete"
)

// Change is one local mutation awaiting acknowledgement by the remote.
// Doc is a JSON object and is present only for upserts.
type Change struct {
	ID        string          `json:"id"`
	Type      ChangeType      `json:"type"`
	Doc       json.RawMessage `json:"doc,omitempty"`
	Version   int64           `json:"version"`
	ClientID  string          `json:"clientId"`
	Timestamp int64           `json:"timestamp"`
}

// Validate checks the doc/type pairing.
func (c Change) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: change without id", ErrorValidation)
	}
	switch c.Type {
	case ChangeUpsert:
		if !IsJSONObject(c.Doc) {
			return fmt.Errorf("%w: upsert %s needs an object doc", ErrorValidation, c.ID)
		}
	case ChangeDelete:
		if len(c.Doc) > 0 {
			return fmt.Errorf("%w: delete %s carries a doc", ErrorValidation, c.ID)
		}
	default:
		return fmt.Errorf("%w: unknown change type %q", ErrorValidation, c.Type)
	}
	return nil
}

// IsJSONObject reports whether b holds a JSON object.
func IsJSONObject(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return false
	}
	return json.Valid(b)
}

// PushRequest carries a batch of changes. Elements are not validated on
// binding; the server reports each invalid change in its result instead.
type PushRequest struct {
	Changes []Change `json:"changes" binding:"required"`
}

type PushResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type PushResponse struct {
	Results []PushResult `json:"results"`
}

// RemoteItem is the server's current state of one id as returned by pull.
type RemoteItem struct {
	ID        string          `json:"id"`
	Doc       json.RawMessage `json:"doc,omitempty"`
	Deleted   bool            `json:"deleted,omitempty"`
	Version   int64           `json:"version"`
	ClientID  string          `json:"clientId,omitempty"`
	UpdatedAt int64           `json:"updatedAt"`
}

type PullResponse struct {
	Items []RemoteItem `json:"items"`
}
