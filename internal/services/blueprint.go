package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/apierr"
	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

const userFlowSystemPrompt = `You design user flow diagrams for software
products. Given the idea and its validation report, produce the screens and
decision points a user moves through, with edges between them. Node kinds:
screen, decision, action, external.`

const kanbanSystemPrompt = `You break software products into an execution
plan: features (with optional parent feature by name), milestones per
feature, and concrete issues. Reference features and milestones by their
exact names. Issues may carry sub-issues for multi-step work. Types:
feature type one of CORE/ENHANCEMENT/INTEGRATION/INFRA, issue type one of
TASK/BUG/CHORE/SPIKE, priority one of LOW/MEDIUM/HIGH/URGENT.`

var userFlowSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"nodes": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":    map[string]any{"type": "string"},
					"label": map[string]any{"type": "string"},
					"kind":  map[string]any{"type": "string"},
				},
				"required":             []string{"id", "label", "kind"},
				"additionalProperties": false,
			},
		},
		"edges": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"from":  map[string]any{"type": "string"},
					"to":    map[string]any{"type": "string"},
					"label": map[string]any{"type": "string"},
				},
				"required":             []string{"from", "to"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"nodes", "edges"},
	"additionalProperties": false,
}

var kanbanPlanSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"features": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":        map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"parent":      map[string]any{"type": "string"},
					"type":        map[string]any{"type": "string"},
					"priority":    map[string]any{"type": "string"},
					"node_id":     map[string]any{"type": "string"},
				},
				"required":             []string{"name", "description", "type", "priority"},
				"additionalProperties": false,
			},
		},
		"milestones": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"feature":     map[string]any{"type": "string"},
					"title":       map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
				},
				"required":             []string{"feature", "title"},
				"additionalProperties": false,
			},
		},
		"issues": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":       map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"type":        map[string]any{"type": "string"},
					"priority":    map[string]any{"type": "string"},
					"feature":     map[string]any{"type": "string"},
					"milestone":   map[string]any{"type": "string"},
					"sub_issues": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"title":       map[string]any{"type": "string"},
								"description": map[string]any{"type": "string"},
								"type":        map[string]any{"type": "string"},
							},
							"required":             []string{"title"},
							"additionalProperties": false,
						},
					},
				},
				"required":             []string{"title", "type", "priority"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"features", "milestones", "issues"},
	"additionalProperties": false,
}

// BlueprintService generates the two diagram artifacts in parallel and
// advances the idea to BLUEPRINT_GENERATED. Regeneration replaces both
// diagrams through the same upsert path.
type BlueprintService interface {
	Generate(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID) ([]*types.Artifact, error)
}

type blueprintService struct {
	log       *logger.Logger
	db        *gorm.DB
	ideas     IdeaService
	reports   repos.ValidationReportRepo
	artifacts repos.ArtifactRepo
	ai        AIClient
}

func NewBlueprintService(
	log *logger.Logger,
	db *gorm.DB,
	ideas IdeaService,
	reports repos.ValidationReportRepo,
	artifacts repos.ArtifactRepo,
	ai AIClient,
) BlueprintService {
	return &blueprintService{
		log:       log.With("service", "BlueprintService"),
		db:        db,
		ideas:     ideas,
		reports:   reports,
		artifacts: artifacts,
		ai:        ai,
	}
}

func (s *blueprintService) Generate(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID) ([]*types.Artifact, error) {
	idea, err := s.ideas.LoadOwned(ctx, nil, userID, ideaID)
	if err != nil {
		return nil, err
	}
	if !idea.Phase.CanTransition(types.PhaseBlueprintGenerated) {
		return nil, apierr.InvalidPhase(string(idea.Phase), string(types.PhaseBlueprintGenerated))
	}
	report, err := s.reports.GetByIdeaID(ctx, nil, ideaID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, apierr.DependencyNotMet("validation report")
	}

	var prompt string
	{
		features := "[]"
		if len(report.CoreFeatures) > 0 {
			features = string(report.CoreFeatures)
		}
		prompt = fmt.Sprintf("Product idea:\n%s\n\nCore features from validation:\n%s\n", ideaDescription(idea), features)
	}

	var flowJSON, planJSON datatypes.JSON
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := s.ai.GenerateJSON(gctx, userFlowSystemPrompt, prompt, "user_flow", userFlowSchema)
		if err != nil {
			return fmt.Errorf("user flow generation: %w", err)
		}
		flowJSON = mustJSON(out)
		return nil
	})
	g.Go(func() error {
		out, err := s.ai.GenerateJSON(gctx, kanbanSystemPrompt, prompt, "kanban_plan", kanbanPlanSchema)
		if err != nil {
			return fmt.Errorf("kanban plan generation: %w", err)
		}
		planJSON = mustJSON(out)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, apierr.GenerationFailed(err)
	}

	flowArtifact := &types.Artifact{
		IdeaID:      ideaID,
		Type:        types.ArtifactDiagramUserFlow,
		ContentJSON: flowJSON,
		Status:      types.ArtifactStatusCompleted,
		ChatHistory: types.EncodeChatHistory(nil),
	}
	kanbanArtifact := &types.Artifact{
		IdeaID:      ideaID,
		Type:        types.ArtifactDiagramKanban,
		ContentJSON: planJSON,
		Status:      types.ArtifactStatusCompleted,
		ChatHistory: types.EncodeChatHistory(nil),
	}

	var saved []*types.Artifact
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flow, err := s.artifacts.Upsert(ctx, tx, flowArtifact)
		if err != nil {
			return err
		}
		kanban, err := s.artifacts.Upsert(ctx, tx, kanbanArtifact)
		if err != nil {
			return err
		}
		saved = []*types.Artifact{flow, kanban}
		return s.ideas.AdvancePhase(ctx, tx, idea, types.PhaseBlueprintGenerated)
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}
