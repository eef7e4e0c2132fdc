package activity

import "context"

// Repository is the append-only ledger sink. There is no update or
// delete operation; entries are immutable once written.
type Repository interface {
	Append(ctx context.Context, entry Entry) error
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}
