package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

type MilestoneRepo interface {
	Create(ctx context.Context, tx *gorm.DB, milestones []*types.Milestone) ([]*types.Milestone, error)
	GetByFeatureIDs(ctx context.Context, tx *gorm.DB, featureIDs []uuid.UUID) ([]*types.Milestone, error)
}

type milestoneRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMilestoneRepo(db *gorm.DB, baseLog *logger.Logger) MilestoneRepo {
	return &milestoneRepo{db: db, log: baseLog.With("repo", "MilestoneRepo")}
}

func (r *milestoneRepo) Create(ctx context.Context, tx *gorm.DB, milestones []*types.Milestone) ([]*types.Milestone, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(milestones) == 0 {
		return []*types.Milestone{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&milestones).Error; err != nil {
		return nil, err
	}
	return milestones, nil
}

func (r *milestoneRepo) GetByFeatureIDs(ctx context.Context, tx *gorm.DB, featureIDs []uuid.UUID) ([]*types.Milestone, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var milestones []*types.Milestone
	if len(featureIDs) == 0 {
		return milestones, nil
	}
	if err := transaction.WithContext(ctx).
		Where("feature_id IN ?", featureIDs).
		Order("sort_index ASC").
		Find(&milestones).Error; err != nil {
		return nil, err
	}
	return milestones, nil
}
