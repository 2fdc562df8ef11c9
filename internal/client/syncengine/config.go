package syncengine

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultBatchSize = 50
	DefaultInterval  = time.Second
	MinInterval      = 200 * time.Millisecond

	// HistoryLimit bounds what History returns. Writes never evict.
	HistoryLimit = 1000
)

type Config struct {
	BatchSize int
	Interval  time.Duration
	ClientID  string
}

func (c Config) withDefaults() Config {
	if c.BatchSize < 1 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Interval < MinInterval {
		c.Interval = MinInterval
	}
	if c.ClientID == "" {
		c.ClientID = uuid.NewString()
	}
	return c
}
