// Package cache decorates repositories with a short-lived in-process
// cache so dashboard polling does not rescan the member table between
// checks.
package cache

import (
	"context"

	"github.com/teamwarden/teamwarden/internal/domain/member"
	platformcache "github.com/teamwarden/teamwarden/internal/platform/cache"
	"github.com/teamwarden/teamwarden/internal/usecase"
)

const memberListKey = "members:list"

type MemberRepository struct {
	inner member.Repository
	store *platformcache.Store
}

func NewMemberRepository(inner member.Repository, store *platformcache.Store) *MemberRepository {
	return &MemberRepository{inner: inner, store: store}
}

func (r *MemberRepository) List(ctx context.Context) ([]member.Member, error) {
	if cached, ok := r.store.Get(memberListKey); ok {
		if members, valid := cached.([]member.Member); valid {
			return members, nil
		}
	}

	members, err := r.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	r.store.Set(memberListKey, members)
	return members, nil
}

func (r *MemberRepository) GetByUsername(ctx context.Context, username string) (member.Member, bool, error) {
	return r.inner.GetByUsername(ctx, username)
}

// BatchWriter invalidates the cached member list after every committed
// check so dashboard reads never trail the latest reconciliation.
type BatchWriter struct {
	inner usecase.BatchWriter
	store *platformcache.Store
}

func NewBatchWriter(inner usecase.BatchWriter, store *platformcache.Store) *BatchWriter {
	return &BatchWriter{inner: inner, store: store}
}

func (w *BatchWriter) ApplyBatch(ctx context.Context, batch usecase.CheckBatch) error {
	if err := w.inner.ApplyBatch(ctx, batch); err != nil {
		return err
	}
	w.store.Invalidate()
	return nil
}
