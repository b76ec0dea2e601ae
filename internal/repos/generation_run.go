package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

type GenerationRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, runs []*types.GenerationRun) ([]*types.GenerationRun, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GenerationRun, error)
	GetLatestByIdeaID(ctx context.Context, tx *gorm.DB, ideaID uuid.UUID) (*types.GenerationRun, error)

	// ClaimNextRunnable picks one runnable row and marks it running:
	// - status=queued
	// - OR status=running with a stale heartbeat and attempts < maxAttempts
	//   (crash recovery)
	// Failed rows are never reclaimed; a handler error is terminal and the
	// caller re-invokes the operation to retry. Stale running rows that have
	// used up their attempts are finalized to failed instead of claimed.
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, staleRunning time.Duration) (*types.GenerationRun, error)

	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type generationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
	return &generationRunRepo{db: db, log: baseLog.With("repo", "GenerationRunRepo")}
}

func (r *generationRunRepo) Create(ctx context.Context, tx *gorm.DB, runs []*types.GenerationRun) ([]*types.GenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(runs) == 0 {
		return []*types.GenerationRun{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *generationRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var run types.GenerationRun
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *generationRunRepo) GetLatestByIdeaID(ctx context.Context, tx *gorm.DB, ideaID uuid.UUID) (*types.GenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if ideaID == uuid.Nil {
		return nil, nil
	}
	var run types.GenerationRun
	err := transaction.WithContext(ctx).
		Where("idea_id = ?", ideaID).
		Order("created_at DESC").
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *generationRunRepo) ClaimNextRunnable(
	ctx context.Context,
	tx *gorm.DB,
	maxAttempts int,
	staleRunning time.Duration,
) (*types.GenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now()
	staleCutoff := now.Add(-staleRunning)

	var claimed *types.GenerationRun

	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		// Stale rows with no attempts left would otherwise sit in running
		// forever; finalize them before selecting.
		fErr := txx.Model(&types.GenerationRun{}).
			Where("status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ? AND attempts >= ?",
				types.RunStatusRunning, staleCutoff, maxAttempts).
			Updates(map[string]interface{}{
				"status":        types.RunStatusFailed,
				"error":         "worker crash recovery attempts exhausted",
				"last_error_at": now,
				"locked_at":     nil,
				"updated_at":    now,
			}).Error
		if fErr != nil {
			return fErr
		}

		var run types.GenerationRun

		q := txx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
				(
					status = ?
					OR (
						status = ?
						AND heartbeat_at IS NOT NULL
						AND heartbeat_at < ?
						AND attempts < ?
					)
				)
			`, types.RunStatusQueued, types.RunStatusRunning, staleCutoff, maxAttempts).
			Order("created_at ASC")

		qErr := q.First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}

		uErr := txx.Model(&types.GenerationRun{}).
			Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":       types.RunStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}

		run.Status = types.RunStatusRunning
		run.Attempts++
		run.LockedAt = &now
		run.HeartbeatAt = &now
		run.UpdatedAt = now
		claimed = &run
		return nil
	})

	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *generationRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.GenerationRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *generationRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.GenerationRun{}).
		Where("id = ? AND status = ?", id, types.RunStatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}
