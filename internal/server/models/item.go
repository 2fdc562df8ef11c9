package models

import (
	"encoding/json"

	"github.com/dmitrijs2005/gradekeeper/internal/common"
)

// Item is the server's copy of one synced document. UpdatedAt is a server
// clock value, strictly increasing across writes.
type Item struct {
	ID        string
	Doc       json.RawMessage
	Deleted   bool
	Version   int64
	ClientID  string
	UpdatedAt int64
}

// FromChange builds the item a change would store. UpdatedAt is left for the
// repository to assign.
func FromChange(c common.Change) *Item {
	it := &Item{ID: c.ID, Version: c.Version, ClientID: c.ClientID}
	if c.Type == common.ChangeDelete {
		it.Deleted = true
	} else {
		it.Doc = c.Doc
	}
	return it
}

func (i *Item) Remote() common.RemoteItem {
	return common.RemoteItem{
		ID:        i.ID,
		Doc:       i.Doc,
		Deleted:   i.Deleted,
		Version:   i.Version,
		ClientID:  i.ClientID,
		UpdatedAt: i.UpdatedAt,
	}
}
