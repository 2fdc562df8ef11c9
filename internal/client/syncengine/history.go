package syncengine

import "github.com/dmitrijs2005/gradekeeper/internal/common"

// Event names recorded in history.
const (
	EventQueued     = "queued"
	EventPushOK     = "push_ok"
	EventPushError  = "push_error"
	EventPullOK     = "pull_ok"
	EventPullError  = "pull_error"
	EventApplyError = "apply_error"
)

// Detail is the optional payload of a history entry. Only the fields that
// make sense for the event are set.
type Detail struct {
	ID         string            `json:"id,omitempty"`
	Type       common.ChangeType `json:"type,omitempty"`
	Sent       int               `json:"sent,omitempty"`
	Accepted   int               `json:"accepted,omitempty"`
	Retained   int               `json:"retained,omitempty"`
	Items      int               `json:"items,omitempty"`
	Checkpoint int64             `json:"checkpoint,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type HistoryEntry struct {
	At     int64   `json:"at"`
	Event  string  `json:"event"`
	Detail *Detail `json:"detail,omitempty"`
}

func tail(h []HistoryEntry, n int) []HistoryEntry {
	if len(h) > n {
		h = h[len(h)-n:]
	}
	return append([]HistoryEntry(nil), h...)
}
