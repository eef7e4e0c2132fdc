package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/teamwarden/teamwarden/internal/domain/activity"
)

type ActivityRepository struct {
	mu      sync.RWMutex
	entries []activity.Entry
}

func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{}
}

func (r *ActivityRepository) Append(ctx context.Context, entry activity.Entry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid activity entry: %w", err)
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return nil
}

// ListRecent returns entries newest first.
func (r *ActivityRepository) ListRecent(ctx context.Context, limit int) ([]activity.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]activity.Entry, 0, min(limit, len(r.entries)))
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.entries[i])
	}
	return out, nil
}
