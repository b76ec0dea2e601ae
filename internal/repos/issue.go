package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

type IssueRepo interface {
	Create(ctx context.Context, tx *gorm.DB, issues []*types.Issue) ([]*types.Issue, error)
	GetByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Issue, error)
	IdentifiersByTeam(ctx context.Context, tx *gorm.DB, teamID uuid.UUID) ([]string, error)
}

type issueRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIssueRepo(db *gorm.DB, baseLog *logger.Logger) IssueRepo {
	return &issueRepo{db: db, log: baseLog.With("repo", "IssueRepo")}
}

func (r *issueRepo) Create(ctx context.Context, tx *gorm.DB, issues []*types.Issue) ([]*types.Issue, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(issues) == 0 {
		return []*types.Issue{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&issues).Error; err != nil {
		return nil, err
	}
	return issues, nil
}

func (r *issueRepo) GetByProjectID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Issue, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var issues []*types.Issue
	if projectID == uuid.Nil {
		return issues, nil
	}
	if err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&issues).Error; err != nil {
		return nil, err
	}
	return issues, nil
}

func (r *issueRepo) IdentifiersByTeam(ctx context.Context, tx *gorm.DB, teamID uuid.UUID) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var identifiers []string
	if teamID == uuid.Nil {
		return identifiers, nil
	}
	if err := transaction.WithContext(ctx).
		Model(&types.Issue{}).
		Where("team_id = ?", teamID).
		Pluck("identifier", &identifiers).Error; err != nil {
		return nil, err
	}
	return identifiers, nil
}
