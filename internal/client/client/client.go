package client

import (
	"context"

	"github.com/dmitrijs2005/gradekeeper/internal/common"
)

// Client talks to the remote authority.
type Client interface {
	Push(ctx context.Context, changes []common.Change) ([]common.PushResult, error)
	Pull(ctx context.Context, since int64) ([]common.RemoteItem, error)
	Ping(ctx context.Context) error
}
