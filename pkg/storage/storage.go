package storage

import "context"

// Storage is a generic keyed store. Implementations must be safe for
// concurrent use.
type Storage interface {
	Create(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string) (any, error)
	Update(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, offset, limit uint64) ([]any, uint64, error)
}
