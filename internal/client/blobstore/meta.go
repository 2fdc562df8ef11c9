package blobstore

import (
	"fmt"
	"slices"
	"strings"
)

type Kind string

const (
	KindUpload   Kind = "upload"
	KindDownload Kind = "download"
)

// Meta describes one stored payload. Size is the length of the bytes as
// stored, after compression and encryption.
type Meta struct {
	ID         string   `json:"id"`
	Kind       Kind     `json:"kind"`
	Timestamp  int64    `json:"timestamp"`
	Size       int64    `json:"size"`
	Type       string   `json:"type"`
	Encrypted  bool     `json:"encrypted,omitempty"`
	IV         string   `json:"iv,omitempty"`
	Salt       string   `json:"salt,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Name       string   `json:"name,omitempty"`
	Compressed bool     `json:"compressed,omitempty"`
	Checksum   string   `json:"checksum,omitempty"`
}

func (m Meta) Validate() error {
	switch {
	case m.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidMeta)
	case m.Kind == "":
		return fmt.Errorf("%w: empty kind", ErrInvalidMeta)
	case m.Type == "":
		return fmt.Errorf("%w: empty type", ErrInvalidMeta)
	case m.Size < 0:
		return fmt.Errorf("%w: negative size", ErrInvalidMeta)
	}
	return nil
}

func (m Meta) HasTag(tag string) bool {
	return slices.Contains(m.Tags, tag)
}

// IsText reports whether the payload decodes to text on read.
func (m Meta) IsText() bool {
	return isTextType(m.Type)
}

func isTextType(t string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return strings.HasPrefix(t, "text/") || t == "application/json"
}

// Filter narrows List results. Zero fields are ignored; the rest must all
// match. Before and After are exclusive millisecond bounds.
type Filter struct {
	Kind   Kind
	Type   string
	Before int64
	After  int64
	Name   string
	Tag    string
}

func (f Filter) Match(m Meta) bool {
	if f.Kind != "" && m.Kind != f.Kind {
		return false
	}
	if f.Type != "" && m.Type != f.Type {
		return false
	}
	if f.Before != 0 && m.Timestamp >= f.Before {
		return false
	}
	if f.After != 0 && m.Timestamp <= f.After {
		return false
	}
	if f.Name != "" && m.Name != f.Name {
		return false
	}
	if f.Tag != "" && !m.HasTag(f.Tag) {
		return false
	}
	return true
}
