package port

import "context"

// CollectionStore is the durable home of the named entity collections.
// Load returns domain.ErrNotFound when nothing was ever saved under name.
type CollectionStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}
