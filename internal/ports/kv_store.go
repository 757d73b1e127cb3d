package ports

import "context"

// KVStore is opaque string storage backing the persisted mailbox slots.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
