package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

type ValidationReportRepo interface {
	// Upsert keeps the one-to-one invariant: a second write for the same idea
	// replaces the report fields instead of inserting a duplicate.
	Upsert(ctx context.Context, tx *gorm.DB, report *types.ValidationReport) (*types.ValidationReport, error)
	GetByIdeaID(ctx context.Context, tx *gorm.DB, ideaID uuid.UUID) (*types.ValidationReport, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, ideaID uuid.UUID, updates map[string]interface{}) error
}

type validationReportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewValidationReportRepo(db *gorm.DB, baseLog *logger.Logger) ValidationReportRepo {
	return &validationReportRepo{db: db, log: baseLog.With("repo", "ValidationReportRepo")}
}

func (r *validationReportRepo) Upsert(ctx context.Context, tx *gorm.DB, report *types.ValidationReport) (*types.ValidationReport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if report == nil {
		return nil, nil
	}
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	now := time.Now()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now
	err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "idea_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"market_feasibility", "improvements", "core_features",
				"tech_stack", "pricing_model", "updated_at",
			}),
		}).
		Create(report).Error
	if err != nil {
		return nil, err
	}

	// Re-read so callers hold the persisted row, not a phantom id from a
	// conflicting insert.
	var saved types.ValidationReport
	if err := transaction.WithContext(ctx).
		Where("idea_id = ?", report.IdeaID).
		First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *validationReportRepo) GetByIdeaID(ctx context.Context, tx *gorm.DB, ideaID uuid.UUID) (*types.ValidationReport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if ideaID == uuid.Nil {
		return nil, nil
	}
	var report types.ValidationReport
	err := transaction.WithContext(ctx).
		Where("idea_id = ?", ideaID).
		Limit(1).
		Find(&report).Error
	if err != nil {
		return nil, err
	}
	if report.ID == uuid.Nil {
		return nil, nil
	}
	return &report, nil
}

func (r *validationReportRepo) UpdateFields(ctx context.Context, tx *gorm.DB, ideaID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if ideaID == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.ValidationReport{}).
		Where("idea_id = ?", ideaID).
		Updates(updates).Error
}
