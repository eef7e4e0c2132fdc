package cache

import (
	"context"
	"testing"
	"time"

	"github.com/teamwarden/teamwarden/internal/domain/member"
	"github.com/teamwarden/teamwarden/internal/infrastructure/repository/memory"
	platformcache "github.com/teamwarden/teamwarden/internal/platform/cache"
	"github.com/teamwarden/teamwarden/internal/usecase"
)

func TestMemberRepository_CommitRefreshesCachedList(t *testing.T) {
	t.Parallel()

	inner := memory.NewMemberRepository(nil)
	store := platformcache.NewStore(time.Minute)
	cached := NewMemberRepository(inner, store)
	writer := NewBatchWriter(inner, store)

	seed := usecase.CheckBatch{Members: []member.Member{{Username: "a", Status: member.StatusActive}}}
	if err := writer.ApplyBatch(context.Background(), seed); err != nil {
		t.Fatalf("ApplyBatch error: %v", err)
	}

	first, err := cached.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("List = %+v, want a", first)
	}

	update := usecase.CheckBatch{Members: []member.Member{{Username: "b", Status: member.StatusActive}}}
	if err := writer.ApplyBatch(context.Background(), update); err != nil {
		t.Fatalf("ApplyBatch error: %v", err)
	}

	second, err := cached.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("cached list not invalidated after commit: %+v", second)
	}
}
