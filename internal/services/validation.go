package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/apierr"
	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

const validationSystemPrompt = `You are a startup analyst. Given a product
idea, produce a validation report. Be specific and grounded in the idea; no
generic filler. Each section stands alone.`

// validationReportSchema keeps the section shapes loose on purpose: the model
// decides the inner structure and readers treat it as schema-on-read.
var validationReportSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"market_feasibility": map[string]any{"type": "object", "additionalProperties": true},
		"improvements":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"core_features":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"tech_stack":         map[string]any{"type": "object", "additionalProperties": true},
		"pricing_model":      map[string]any{"type": "object", "additionalProperties": true},
	},
	"required": []string{
		"market_feasibility", "improvements", "core_features",
		"tech_stack", "pricing_model",
	},
	"additionalProperties": false,
}

type ValidationService interface {
	// EnqueueValidation creates a queued generation run picked up by the
	// worker; callers poll the run or listen on the notifier stream.
	EnqueueValidation(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID) (*types.GenerationRun, error)
	// GenerateReport is the job body. It writes the full report and advances
	// the idea to VALIDATED in one transaction.
	GenerateReport(ctx context.Context, ideaID uuid.UUID) error
	// RegenerateField rebuilds one report section synchronously.
	RegenerateField(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, field string) (*types.ValidationReport, error)
	GetReport(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID) (*types.ValidationReport, error)
}

type validationService struct {
	log     *logger.Logger
	db      *gorm.DB
	ideas   IdeaService
	reports repos.ValidationReportRepo
	runs    repos.GenerationRunRepo
	ai      AIClient
}

func NewValidationService(
	log *logger.Logger,
	db *gorm.DB,
	ideas IdeaService,
	reports repos.ValidationReportRepo,
	runs repos.GenerationRunRepo,
	ai AIClient,
) ValidationService {
	return &validationService{
		log:     log.With("service", "ValidationService"),
		db:      db,
		ideas:   ideas,
		reports: reports,
		runs:    runs,
		ai:      ai,
	}
}

func (s *validationService) EnqueueValidation(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID) (*types.GenerationRun, error) {
	idea, err := s.ideas.LoadOwned(ctx, nil, userID, ideaID)
	if err != nil {
		return nil, err
	}
	if !idea.Phase.CanTransition(types.PhaseValidated) {
		return nil, apierr.InvalidPhase(string(idea.Phase), string(types.PhaseValidated))
	}

	latest, err := s.runs.GetLatestByIdeaID(ctx, nil, ideaID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.JobType == types.JobTypeValidationGenerate &&
		(latest.Status == types.RunStatusQueued || latest.Status == types.RunStatusRunning) {
		return latest, nil
	}

	run := &types.GenerationRun{
		ID:      uuid.New(),
		UserID:  userID,
		IdeaID:  ideaID,
		JobType: types.JobTypeValidationGenerate,
		Status:  types.RunStatusQueued,
		Stage:   "queued",
		Payload: mustJSON(map[string]any{"idea_id": ideaID.String()}),
	}
	if _, err := s.runs.Create(ctx, nil, []*types.GenerationRun{run}); err != nil {
		return nil, fmt.Errorf("failed to enqueue validation run: %w", err)
	}
	return run, nil
}

func (s *validationService) GenerateReport(ctx context.Context, ideaID uuid.UUID) error {
	idea, err := s.loadIdea(ctx, ideaID)
	if err != nil {
		return err
	}

	out, err := s.ai.GenerateJSON(ctx, validationSystemPrompt, ideaDescription(idea), "validation_report", validationReportSchema)
	if err != nil {
		return apierr.GenerationFailed(fmt.Errorf("validation generation: %w", err))
	}

	report := &types.ValidationReport{
		IdeaID:            ideaID,
		MarketFeasibility: sectionJSON(out, "market_feasibility"),
		Improvements:      sectionJSON(out, "improvements"),
		CoreFeatures:      sectionJSON(out, "core_features"),
		TechStack:         sectionJSON(out, "tech_stack"),
		PricingModel:      sectionJSON(out, "pricing_model"),
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.reports.Upsert(ctx, tx, report); err != nil {
			return fmt.Errorf("failed to persist validation report: %w", err)
		}
		return s.ideas.AdvancePhase(ctx, tx, idea, types.PhaseValidated)
	})
}

func (s *validationService) RegenerateField(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, field string) (*types.ValidationReport, error) {
	if !validField(field) {
		return nil, apierr.InvalidInput(fmt.Sprintf("unknown validation field %q", field))
	}
	idea, err := s.ideas.LoadOwned(ctx, nil, userID, ideaID)
	if err != nil {
		return nil, err
	}
	report, err := s.reports.GetByIdeaID(ctx, nil, ideaID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, apierr.DependencyNotMet("validation report")
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			field: validationReportSchema["properties"].(map[string]any)[field],
		},
		"required":             []string{field},
		"additionalProperties": false,
	}
	system := validationSystemPrompt + fmt.Sprintf("\nRegenerate only the %s section.", field)
	out, err := s.ai.GenerateJSON(ctx, system, ideaDescription(idea), "validation_section", schema)
	if err != nil {
		return nil, apierr.GenerationFailed(fmt.Errorf("validation section regeneration: %w", err))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.reports.UpdateFields(ctx, tx, ideaID, map[string]interface{}{
			field: sectionJSON(out, field),
		}); err != nil {
			return err
		}
		// Re-entering VALIDATED is allowed from VALIDATED and from
		// BLUEPRINT_GENERATED; downstream artifacts stay but the report changed.
		return s.ideas.AdvancePhase(ctx, tx, idea, types.PhaseValidated)
	})
	if err != nil {
		return nil, err
	}
	return s.reports.GetByIdeaID(ctx, nil, ideaID)
}

func (s *validationService) GetReport(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID) (*types.ValidationReport, error) {
	if _, err := s.ideas.LoadOwned(ctx, nil, userID, ideaID); err != nil {
		return nil, err
	}
	report, err := s.reports.GetByIdeaID(ctx, nil, ideaID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, apierr.NotFound("validation report")
	}
	return report, nil
}

// loadIdea skips the ownership check; job bodies run without a request user.
func (s *validationService) loadIdea(ctx context.Context, ideaID uuid.UUID) (*types.Idea, error) {
	var row types.Idea
	if err := s.db.WithContext(ctx).Where("id = ?", ideaID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, apierr.NotFound("idea")
	}
	return &row, nil
}

func validField(field string) bool {
	for _, f := range types.ValidationFields {
		if f == field {
			return true
		}
	}
	return false
}

func ideaDescription(idea *types.Idea) string {
	if idea.RefinedDescription != "" {
		return idea.RefinedDescription
	}
	return idea.RawText
}

func sectionJSON(out map[string]any, key string) datatypes.JSON {
	raw, err := json.Marshal(out[key])
	if err != nil || out[key] == nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(raw)
}

func mustJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}
