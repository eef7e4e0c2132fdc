// Package memory holds in-process repository implementations used by
// tests and local development without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/teamwarden/teamwarden/internal/domain/member"
	"github.com/teamwarden/teamwarden/internal/usecase"
)

type MemberRepository struct {
	mu      sync.RWMutex
	members map[string]member.Member
	entries *ActivityRepository
}

// NewMemberRepository creates an in-memory member store. entries may
// be nil; when set, ApplyBatch appends the batch's ledger entries to
// it so the memory wiring mirrors the transactional one.
func NewMemberRepository(entries *ActivityRepository) *MemberRepository {
	return &MemberRepository{
		members: make(map[string]member.Member),
		entries: entries,
	}
}

func (r *MemberRepository) List(ctx context.Context) ([]member.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]member.Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *MemberRepository) GetByUsername(ctx context.Context, username string) (member.Member, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[username]
	return m, ok, nil
}

func (r *MemberRepository) ApplyBatch(ctx context.Context, batch usecase.CheckBatch) error {
	for _, m := range batch.Members {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("invalid member in batch: %w", err)
		}
	}

	r.mu.Lock()
	for _, m := range batch.Members {
		r.members[m.Username] = m
	}
	r.mu.Unlock()

	if r.entries != nil {
		for _, entry := range batch.Entries {
			if err := r.entries.Append(ctx, entry); err != nil {
				return err
			}
		}
	}
	return nil
}
