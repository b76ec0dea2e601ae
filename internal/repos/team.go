package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

type TeamRepo interface {
	Create(ctx context.Context, tx *gorm.DB, teams []*types.Team) ([]*types.Team, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Team, error)
	GetByPrefix(ctx context.Context, tx *gorm.DB, prefix string) (*types.Team, error)
	// AdvanceCounter atomically adds n to the named counter column and returns
	// the post-increment value. Must run inside the caller's transaction so a
	// rollback releases the reserved block.
	AdvanceCounter(ctx context.Context, tx *gorm.DB, id uuid.UUID, column string, n int) (int, error)
	// SeedCounter raises the counter to at least floor; no-op when already higher.
	SeedCounter(ctx context.Context, tx *gorm.DB, id uuid.UUID, column string, floor int) error
}

type teamRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTeamRepo(db *gorm.DB, baseLog *logger.Logger) TeamRepo {
	return &teamRepo{db: db, log: baseLog.With("repo", "TeamRepo")}
}

func (r *teamRepo) Create(ctx context.Context, tx *gorm.DB, teams []*types.Team) ([]*types.Team, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(teams) == 0 {
		return []*types.Team{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *teamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Team, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var team types.Team
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&team).Error
	if err != nil {
		return nil, err
	}
	if team.ID == uuid.Nil {
		return nil, nil
	}
	return &team, nil
}

func (r *teamRepo) GetByPrefix(ctx context.Context, tx *gorm.DB, prefix string) (*types.Team, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if prefix == "" {
		return nil, nil
	}
	var team types.Team
	err := transaction.WithContext(ctx).
		Where("prefix = ?", prefix).
		Limit(1).
		Find(&team).Error
	if err != nil {
		return nil, err
	}
	if team.ID == uuid.Nil {
		return nil, nil
	}
	return &team, nil
}

func counterColumn(column string) (string, error) {
	switch column {
	case "issue_counter", "feature_counter":
		return column, nil
	}
	return "", fmt.Errorf("unknown counter column %q", column)
}

func (r *teamRepo) AdvanceCounter(ctx context.Context, tx *gorm.DB, id uuid.UUID, column string, n int) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	col, err := counterColumn(column)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("counter advance must be positive, got %d", n)
	}
	res := transaction.WithContext(ctx).
		Model(&types.Team{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			col:          gorm.Expr(col+" + ?", n),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("team %s not found", id)
	}
	// Read back inside the same transaction; the update's row lock keeps this
	// value ours until commit.
	var value int
	if err := transaction.WithContext(ctx).
		Model(&types.Team{}).
		Where("id = ?", id).
		Pluck(col, &value).Error; err != nil {
		return 0, err
	}
	return value, nil
}

func (r *teamRepo) SeedCounter(ctx context.Context, tx *gorm.DB, id uuid.UUID, column string, floor int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	col, err := counterColumn(column)
	if err != nil {
		return err
	}
	if floor <= 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Team{}).
		Where("id = ? AND "+col+" < ?", id, floor).
		Updates(map[string]interface{}{
			col:          floor,
			"updated_at": time.Now(),
		}).Error
}
