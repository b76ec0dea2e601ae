package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/ideaforge/ideaforge-backend/internal/repos/testutil"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

func TestTeamRepoCounters(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewTeamRepo(db, testutil.Logger(t))

	team := &types.Team{
		ID:     uuid.New(),
		Name:   "Research",
		Prefix: "RSC",
	}
	if _, err := repo.Create(ctx, tx, []*types.Team{team}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByPrefix(ctx, tx, "RSC")
	if err != nil {
		t.Fatalf("GetByPrefix: %v", err)
	}
	if got == nil || got.ID != team.ID {
		t.Fatalf("GetByPrefix: expected %v got %v", team.ID, got)
	}

	if missing, err := repo.GetByPrefix(ctx, tx, "NOPE"); err != nil || missing != nil {
		t.Fatalf("GetByPrefix miss: err=%v row=%v", err, missing)
	}

	// AdvanceCounter returns the post-increment high water mark.
	high, err := repo.AdvanceCounter(ctx, tx, team.ID, "issue_counter", 3)
	if err != nil {
		t.Fatalf("AdvanceCounter #1: %v", err)
	}
	if high != 3 {
		t.Fatalf("AdvanceCounter #1: expected 3, got %d", high)
	}
	high, err = repo.AdvanceCounter(ctx, tx, team.ID, "issue_counter", 2)
	if err != nil {
		t.Fatalf("AdvanceCounter #2: %v", err)
	}
	if high != 5 {
		t.Fatalf("AdvanceCounter #2: expected 5, got %d", high)
	}

	// Counters are independent per kind.
	high, err = repo.AdvanceCounter(ctx, tx, team.ID, "feature_counter", 1)
	if err != nil {
		t.Fatalf("AdvanceCounter feature: %v", err)
	}
	if high != 1 {
		t.Fatalf("AdvanceCounter feature: expected 1, got %d", high)
	}

	// Unknown columns never reach the query builder.
	if _, err := repo.AdvanceCounter(ctx, tx, team.ID, "created_at", 1); err == nil {
		t.Fatalf("AdvanceCounter: expected error for non-counter column")
	}

	// SeedCounter only raises.
	if err := repo.SeedCounter(ctx, tx, team.ID, "issue_counter", 10); err != nil {
		t.Fatalf("SeedCounter raise: %v", err)
	}
	if err := repo.SeedCounter(ctx, tx, team.ID, "issue_counter", 4); err != nil {
		t.Fatalf("SeedCounter lower: %v", err)
	}
	reloaded, err := repo.GetByID(ctx, tx, team.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("GetByID: err=%v row=%v", err, reloaded)
	}
	if reloaded.IssueCounter != 10 {
		t.Fatalf("SeedCounter: expected issue_counter 10, got %d", reloaded.IssueCounter)
	}
	if reloaded.FeatureCounter != 1 {
		t.Fatalf("SeedCounter: expected feature_counter untouched at 1, got %d", reloaded.FeatureCounter)
	}
}
