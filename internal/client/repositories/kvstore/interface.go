package kvstore

import "context"

// Repository is a raw key/value backend. Get returns (nil, nil) for a missing
// key and Delete of a missing key is not an error.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists every stored key in ascending order.
	Keys(ctx context.Context) ([]string, error)
}
