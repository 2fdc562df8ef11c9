package blobstore

import "context"

// Record is a payload as a tier holds it: final stored bytes plus meta.
type Record struct {
	Meta Meta   `json:"meta"`
	Data []byte `json:"data"`
}

// TierUsage reports a tier's footprint. Quota is zero for unbounded tiers.
type TierUsage struct {
	Name  string `json:"name"`
	Used  int64  `json:"used"`
	Quota int64  `json:"quota,omitempty"`
	Items int    `json:"items"`
}

// Backend is one storage tier.
type Backend interface {
	Name() string
	Put(ctx context.Context, rec *Record) error
	// Get returns (nil, nil) when the id is not in this tier.
	Get(ctx context.Context, id string) (*Record, error)
	// Delete of a missing id is not an error.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter) ([]Meta, error)
	Usage(ctx context.Context) (TierUsage, error)
}
