package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

type IdeaRepo interface {
	Create(ctx context.Context, tx *gorm.DB, ideas []*types.Idea) ([]*types.Idea, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Idea, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Idea, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type ideaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIdeaRepo(db *gorm.DB, baseLog *logger.Logger) IdeaRepo {
	return &ideaRepo{db: db, log: baseLog.With("repo", "IdeaRepo")}
}

func (r *ideaRepo) Create(ctx context.Context, tx *gorm.DB, ideas []*types.Idea) ([]*types.Idea, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ideas) == 0 {
		return []*types.Idea{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&ideas).Error; err != nil {
		return nil, err
	}
	return ideas, nil
}

func (r *ideaRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Idea, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var idea types.Idea
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&idea).Error
	if err != nil {
		return nil, err
	}
	if idea.ID == uuid.Nil {
		return nil, nil
	}
	return &idea, nil
}

func (r *ideaRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Idea, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ideas []*types.Idea
	if userID == uuid.Nil {
		return ideas, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&ideas).Error; err != nil {
		return nil, err
	}
	return ideas, nil
}

func (r *ideaRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Idea{}).
		Where("id = ?", id).
		Updates(updates).Error
}
