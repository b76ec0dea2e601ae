package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
)

type IdentifierKind string

const (
	IdentifierKindIssue   IdentifierKind = "issue"
	IdentifierKindFeature IdentifierKind = "feature"
)

func (k IdentifierKind) counterColumn() string {
	if k == IdentifierKindFeature {
		return "feature_counter"
	}
	return "issue_counter"
}

// IdentifierAllocator hands out team-scoped identifiers: PREFIX-<n> for
// issues, PREFIX-F<n> for features. Numbers come from counters on the team
// row, advanced inside the caller's transaction so a rollback returns the
// block. An allocator never reuses a number once the advancing transaction
// commits.
type IdentifierAllocator interface {
	Next(ctx context.Context, tx *gorm.DB, teamID uuid.UUID, kind IdentifierKind) (string, error)
	// ReserveBlock allocates n consecutive identifiers in one counter advance.
	ReserveBlock(ctx context.Context, tx *gorm.DB, teamID uuid.UUID, kind IdentifierKind, n int) ([]string, error)
	// SeedFromExisting raises the counters past any identifiers already in the
	// tables, e.g. after importing data that was numbered elsewhere.
	SeedFromExisting(ctx context.Context, tx *gorm.DB, teamID uuid.UUID) error
}

type identifierAllocator struct {
	log      *logger.Logger
	teamRepo repos.TeamRepo
	features repos.FeatureRepo
	issues   repos.IssueRepo

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewIdentifierAllocator(log *logger.Logger, teamRepo repos.TeamRepo, features repos.FeatureRepo, issues repos.IssueRepo) IdentifierAllocator {
	return &identifierAllocator{
		log:      log.With("service", "IdentifierAllocator"),
		teamRepo: teamRepo,
		features: features,
		issues:   issues,
		locks:    map[string]*sync.Mutex{},
	}
}

// lockFor serializes allocations per (team, kind) within this process. The
// database row lock is the real guard; this keeps concurrent local callers
// from piling up on it.
func (a *identifierAllocator) lockFor(teamID uuid.UUID, kind IdentifierKind) *sync.Mutex {
	key := teamID.String() + ":" + string(kind)
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[key]
	if !ok {
		l = &sync.Mutex{}
		a.locks[key] = l
	}
	return l
}

func (a *identifierAllocator) Next(ctx context.Context, tx *gorm.DB, teamID uuid.UUID, kind IdentifierKind) (string, error) {
	ids, err := a.ReserveBlock(ctx, tx, teamID, kind, 1)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (a *identifierAllocator) ReserveBlock(ctx context.Context, tx *gorm.DB, teamID uuid.UUID, kind IdentifierKind, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", n)
	}
	lock := a.lockFor(teamID, kind)
	lock.Lock()
	defer lock.Unlock()

	team, err := a.teamRepo.GetByID(ctx, tx, teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, fmt.Errorf("team %s not found", teamID)
	}
	high, err := a.teamRepo.AdvanceCounter(ctx, tx, teamID, kind.counterColumn(), n)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, n)
	for num := high - n + 1; num <= high; num++ {
		ids = append(ids, FormatIdentifier(team.Prefix, kind, num))
	}
	return ids, nil
}

func (a *identifierAllocator) SeedFromExisting(ctx context.Context, tx *gorm.DB, teamID uuid.UUID) error {
	team, err := a.teamRepo.GetByID(ctx, tx, teamID)
	if err != nil {
		return err
	}
	if team == nil {
		return fmt.Errorf("team %s not found", teamID)
	}

	featureIDs, err := a.features.IdentifiersByTeam(ctx, tx, teamID)
	if err != nil {
		return err
	}
	if floor := highestNumber(team.Prefix, IdentifierKindFeature, featureIDs); floor > 0 {
		if err := a.teamRepo.SeedCounter(ctx, tx, teamID, IdentifierKindFeature.counterColumn(), floor); err != nil {
			return err
		}
	}

	issueIDs, err := a.issues.IdentifiersByTeam(ctx, tx, teamID)
	if err != nil {
		return err
	}
	if floor := highestNumber(team.Prefix, IdentifierKindIssue, issueIDs); floor > 0 {
		if err := a.teamRepo.SeedCounter(ctx, tx, teamID, IdentifierKindIssue.counterColumn(), floor); err != nil {
			return err
		}
	}
	return nil
}

func FormatIdentifier(prefix string, kind IdentifierKind, num int) string {
	if kind == IdentifierKindFeature {
		return fmt.Sprintf("%s-F%d", prefix, num)
	}
	return fmt.Sprintf("%s-%d", prefix, num)
}

// highestNumber scans identifiers shaped like the allocator's own output and
// returns the largest trailing number. Sub-issue identifiers and foreign
// formats are ignored.
func highestNumber(prefix string, kind IdentifierKind, identifiers []string) int {
	lead := prefix + "-"
	if kind == IdentifierKindFeature {
		lead += "F"
	}
	max := 0
	for _, id := range identifiers {
		rest, ok := strings.CutPrefix(id, lead)
		if !ok {
			continue
		}
		num, err := strconv.Atoi(rest)
		if err != nil || num <= 0 {
			continue
		}
		if num > max {
			max = num
		}
	}
	return max
}
