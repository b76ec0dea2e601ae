package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

type FeatureRepo interface {
	Create(ctx context.Context, tx *gorm.DB, features []*types.Feature) ([]*types.Feature, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Feature, error)
	GetByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Feature, error)
	// IdentifiersByTeam feeds the allocator's counter seeding for teams with
	// imported identifiers.
	IdentifiersByTeam(ctx context.Context, tx *gorm.DB, teamID uuid.UUID) ([]string, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type featureRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeatureRepo(db *gorm.DB, baseLog *logger.Logger) FeatureRepo {
	return &featureRepo{db: db, log: baseLog.With("repo", "FeatureRepo")}
}

func (r *featureRepo) Create(ctx context.Context, tx *gorm.DB, features []*types.Feature) ([]*types.Feature, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(features) == 0 {
		return []*types.Feature{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&features).Error; err != nil {
		return nil, err
	}
	return features, nil
}

func (r *featureRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Feature, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var feature types.Feature
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&feature).Error
	if err != nil {
		return nil, err
	}
	if feature.ID == uuid.Nil {
		return nil, nil
	}
	return &feature, nil
}

func (r *featureRepo) GetByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Feature, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var features []*types.Feature
	if projectID == uuid.Nil {
		return features, nil
	}
	if err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&features).Error; err != nil {
		return nil, err
	}
	return features, nil
}

func (r *featureRepo) IdentifiersByTeam(ctx context.Context, tx *gorm.DB, teamID uuid.UUID) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var identifiers []string
	if teamID == uuid.Nil {
		return identifiers, nil
	}
	if err := transaction.WithContext(ctx).
		Model(&types.Feature{}).
		Where("team_id = ?", teamID).
		Pluck("identifier", &identifiers).Error; err != nil {
		return nil, err
	}
	return identifiers, nil
}

func (r *featureRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Feature{}).
		Where("id = ?", id).
		Updates(updates).Error
}
