package member

import "context"

// Repository describes member persistence needs from use cases.
// Writes happen through the batch writer owned by the use case layer
// so one check run commits atomically.
type Repository interface {
	List(ctx context.Context) ([]Member, error)
	GetByUsername(ctx context.Context, username string) (Member, bool, error)
}
