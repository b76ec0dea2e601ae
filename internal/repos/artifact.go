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

type ArtifactRepo interface {
	// Upsert enforces the at-most-one-row-per-(idea,type) invariant.
	Upsert(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) (*types.Artifact, error)
	GetByIdeaAndType(ctx context.Context, tx *gorm.DB, ideaID uuid.UUID, artifactType types.ArtifactType) (*types.Artifact, error)
	GetByIdeaID(ctx context.Context, tx *gorm.DB, ideaID uuid.UUID) ([]*types.Artifact, error)
	UpdateFieldsByKey(ctx context.Context, tx *gorm.DB, ideaID uuid.UUID, artifactType types.ArtifactType, updates map[string]interface{}) error
}

type artifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return &artifactRepo{db: db, log: baseLog.With("repo", "ArtifactRepo")}
}

func (r *artifactRepo) Upsert(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) (*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if artifact == nil {
		return nil, nil
	}
	if artifact.ID == uuid.Nil {
		artifact.ID = uuid.New()
	}
	now := time.Now()
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = now
	}
	artifact.UpdatedAt = now
	err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "idea_id"}, {Name: "type"}},
			// chat_history is deliberately absent: re-upserting a document
			// (re-enqueue after failure) must not wipe the revision
			// conversation. History changes go through UpdateFieldsByKey.
			DoUpdates: clause.AssignmentColumns([]string{
				"content", "content_json", "status",
				"markdown_key", "pdf_key", "docx_key",
				"updated_at",
			}),
		}).
		Create(artifact).Error
	if err != nil {
		return nil, err
	}

	// On conflict the insert keeps the existing row's id, not the one on the
	// struct; re-read so callers hold the persisted row.
	var saved types.Artifact
	if err := transaction.WithContext(ctx).
		Where("idea_id = ? AND type = ?", artifact.IdeaID, artifact.Type).
		First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *artifactRepo) GetByIdeaAndType(ctx context.Context, tx *gorm.DB, ideaID uuid.UUID, artifactType types.ArtifactType) (*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if ideaID == uuid.Nil {
		return nil, nil
	}
	var artifact types.Artifact
	err := transaction.WithContext(ctx).
		Where("idea_id = ? AND type = ?", ideaID, artifactType).
		Limit(1).
		Find(&artifact).Error
	if err != nil {
		return nil, err
	}
	if artifact.ID == uuid.Nil {
		return nil, nil
	}
	return &artifact, nil
}

func (r *artifactRepo) GetByIdeaID(ctx context.Context, tx *gorm.DB, ideaID uuid.UUID) ([]*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var artifacts []*types.Artifact
	if ideaID == uuid.Nil {
		return artifacts, nil
	}
	if err := transaction.WithContext(ctx).
		Where("idea_id = ?", ideaID).
		Order("created_at ASC").
		Find(&artifacts).Error; err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (r *artifactRepo) UpdateFieldsByKey(ctx context.Context, tx *gorm.DB, ideaID uuid.UUID, artifactType types.ArtifactType, updates map[string]interface{}) error {
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
		Model(&types.Artifact{}).
		Where("idea_id = ? AND type = ?", ideaID, artifactType).
		Updates(updates).Error
}
