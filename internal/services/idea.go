package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/apierr"
	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
	"github.com/ideaforge/ideaforge-backend/internal/sse"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

const clarifySystemPrompt = `You help founders sharpen early product ideas.
Given a raw idea, decide whether clarifying questions are needed before the
idea can be validated. Ask at most 3 questions, only when the answer would
materially change validation. For each question include a suggested answer
inferred from the idea text. If the idea is already specific enough, return
an empty list.`

const refineSystemPrompt = `You help founders sharpen early product ideas.
Rewrite the raw idea as a concise product description (2-4 paragraphs) that
incorporates the clarification answers. Output plain prose, no headings.`

var clarifyQuestionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"questions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"question":   map[string]any{"type": "string"},
					"suggestion": map[string]any{"type": "string"},
				},
				"required":             []string{"question", "suggestion"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"questions"},
	"additionalProperties": false,
}

type IdeaService interface {
	Submit(ctx context.Context, userID uuid.UUID, rawText string) (*types.Idea, error)
	Get(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID) (*types.Idea, []*types.Artifact, error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.Idea, error)
	AnswerClarifications(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, answers []string) (*types.Idea, error)

	// LoadOwned fetches the idea and enforces ownership; not-found and
	// not-yours are indistinguishable to the caller.
	LoadOwned(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ideaID uuid.UUID) (*types.Idea, error)
	// AdvancePhase moves the idea along the lifecycle graph, verifying the
	// target phase's precondition rows inside the same transaction. A no-op
	// when the idea is already at the target.
	AdvancePhase(ctx context.Context, tx *gorm.DB, idea *types.Idea, to types.IdeaPhase) error
}

type ideaService struct {
	log       *logger.Logger
	db        *gorm.DB
	ideas     repos.IdeaRepo
	reports   repos.ValidationReportRepo
	artifacts repos.ArtifactRepo
	ai        AIClient
	notifier  Notifier
}

func NewIdeaService(
	log *logger.Logger,
	db *gorm.DB,
	ideas repos.IdeaRepo,
	reports repos.ValidationReportRepo,
	artifacts repos.ArtifactRepo,
	ai AIClient,
	notifier Notifier,
) IdeaService {
	return &ideaService{
		log:       log.With("service", "IdeaService"),
		db:        db,
		ideas:     ideas,
		reports:   reports,
		artifacts: artifacts,
		ai:        ai,
		notifier:  notifier,
	}
}

func (s *ideaService) Submit(ctx context.Context, userID uuid.UUID, rawText string) (*types.Idea, error) {
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return nil, apierr.InvalidInput("idea text is required")
	}

	idea := &types.Idea{
		ID:             uuid.New(),
		UserID:         userID,
		RawText:        rawText,
		Clarifications: types.EncodeClarifications(nil),
		Phase:          types.PhaseDraft,
	}
	if _, err := s.ideas.Create(ctx, nil, []*types.Idea{idea}); err != nil {
		return nil, fmt.Errorf("failed to create idea: %w", err)
	}

	clarifications := s.askClarifyingQuestions(ctx, rawText)
	next := types.PhaseReadyForValidation
	if len(clarifications) > 0 {
		next = types.PhaseClarificationNeeded
	}

	updates := map[string]interface{}{
		"clarifications": types.EncodeClarifications(clarifications),
		"phase":          next,
	}
	if err := s.ideas.UpdateFields(ctx, nil, idea.ID, updates); err != nil {
		return nil, fmt.Errorf("failed to update idea: %w", err)
	}
	idea.Clarifications = types.EncodeClarifications(clarifications)
	idea.Phase = next

	s.notifier.Notify(ctx, userID, sse.SSEEventIdeaPhaseChanged, map[string]any{
		"idea_id": idea.ID.String(),
		"phase":   string(next),
	})
	return idea, nil
}

// askClarifyingQuestions degrades to zero questions when the model call
// fails; submission never blocks on the question round.
func (s *ideaService) askClarifyingQuestions(ctx context.Context, rawText string) []types.Clarification {
	out, err := s.ai.GenerateJSON(ctx, clarifySystemPrompt, rawText, "clarifying_questions", clarifyQuestionSchema)
	if err != nil {
		s.log.Warn("clarifying question round failed, continuing without questions", "error", err)
		return nil
	}
	raw, err := json.Marshal(out["questions"])
	if err != nil {
		return nil
	}
	var parsed []struct {
		Question   string `json:"question"`
		Suggestion string `json:"suggestion"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}
	clarifications := make([]types.Clarification, 0, len(parsed))
	for _, q := range parsed {
		if strings.TrimSpace(q.Question) == "" {
			continue
		}
		clarifications = append(clarifications, types.Clarification{
			Question:   q.Question,
			Suggestion: q.Suggestion,
		})
	}
	return clarifications
}

func (s *ideaService) Get(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID) (*types.Idea, []*types.Artifact, error) {
	idea, err := s.LoadOwned(ctx, nil, userID, ideaID)
	if err != nil {
		return nil, nil, err
	}
	artifacts, err := s.artifacts.GetByIdeaID(ctx, nil, ideaID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load artifacts: %w", err)
	}
	return idea, artifacts, nil
}

func (s *ideaService) List(ctx context.Context, userID uuid.UUID) ([]*types.Idea, error) {
	return s.ideas.GetByUserID(ctx, nil, userID)
}

func (s *ideaService) AnswerClarifications(ctx context.Context, userID uuid.UUID, ideaID uuid.UUID, answers []string) (*types.Idea, error) {
	idea, err := s.LoadOwned(ctx, nil, userID, ideaID)
	if err != nil {
		return nil, err
	}
	if idea.Phase != types.PhaseClarificationNeeded && idea.Phase != types.PhaseReadyForValidation {
		return nil, apierr.InvalidPhase(string(idea.Phase), string(types.PhaseReadyForValidation))
	}

	clarifications := types.DecodeClarifications(idea.Clarifications)
	for i := range clarifications {
		if i < len(answers) && strings.TrimSpace(answers[i]) != "" {
			clarifications[i].Answer = strings.TrimSpace(answers[i])
		} else if clarifications[i].Answer == "" {
			clarifications[i].Answer = clarifications[i].Suggestion
		}
	}

	refined, err := s.ai.GenerateText(ctx, refineSystemPrompt, refineUserPrompt(idea.RawText, clarifications))
	if err != nil {
		return nil, apierr.GenerationFailed(fmt.Errorf("failed to refine idea description: %w", err))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"clarifications":      types.EncodeClarifications(clarifications),
			"refined_description": refined,
		}
		if err := s.ideas.UpdateFields(ctx, tx, idea.ID, updates); err != nil {
			return err
		}
		return s.AdvancePhase(ctx, tx, idea, types.PhaseReadyForValidation)
	})
	if err != nil {
		return nil, err
	}

	idea.Clarifications = types.EncodeClarifications(clarifications)
	idea.RefinedDescription = refined
	return idea, nil
}

func refineUserPrompt(rawText string, clarifications []types.Clarification) string {
	var sb strings.Builder
	sb.WriteString("Raw idea:\n")
	sb.WriteString(rawText)
	if len(clarifications) > 0 {
		sb.WriteString("\n\nClarifications:\n")
		for _, c := range clarifications {
			fmt.Fprintf(&sb, "Q: %s\nA: %s\n", c.Question, c.Answer)
		}
	}
	return sb.String()
}

func (s *ideaService) LoadOwned(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ideaID uuid.UUID) (*types.Idea, error) {
	idea, err := s.ideas.GetByID(ctx, tx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("failed to load idea: %w", err)
	}
	if idea == nil || idea.UserID != userID {
		return nil, apierr.NotFound("idea")
	}
	return idea, nil
}

func (s *ideaService) AdvancePhase(ctx context.Context, tx *gorm.DB, idea *types.Idea, to types.IdeaPhase) error {
	if idea.Phase == to && !idea.Phase.CanTransition(to) {
		return nil
	}
	if !idea.Phase.CanTransition(to) {
		return apierr.InvalidPhase(string(idea.Phase), string(to))
	}
	if err := s.checkPhasePrecondition(ctx, tx, idea.ID, to); err != nil {
		return err
	}
	if err := s.ideas.UpdateFields(ctx, tx, idea.ID, map[string]interface{}{"phase": to}); err != nil {
		return fmt.Errorf("failed to persist phase %s: %w", to, err)
	}
	idea.Phase = to
	s.notifier.Notify(ctx, idea.UserID, sse.SSEEventIdeaPhaseChanged, map[string]any{
		"idea_id": idea.ID.String(),
		"phase":   string(to),
	})
	return nil
}

// checkPhasePrecondition verifies, inside the caller's transaction, that the
// rows a phase implies actually exist before the phase is recorded.
func (s *ideaService) checkPhasePrecondition(ctx context.Context, tx *gorm.DB, ideaID uuid.UUID, to types.IdeaPhase) error {
	switch to {
	case types.PhaseValidated:
		report, err := s.reports.GetByIdeaID(ctx, tx, ideaID)
		if err != nil {
			return err
		}
		if report == nil {
			return apierr.DependencyNotMet("validation report")
		}
	case types.PhaseBlueprintGenerated:
		for _, at := range []types.ArtifactType{types.ArtifactDiagramUserFlow, types.ArtifactDiagramKanban} {
			artifact, err := s.artifacts.GetByIdeaAndType(ctx, tx, ideaID, at)
			if err != nil {
				return err
			}
			if artifact == nil || artifact.Status != types.ArtifactStatusCompleted {
				return apierr.DependencyNotMet(string(at))
			}
		}
	case types.PhaseCompleted:
		artifact, err := s.artifacts.GetByIdeaAndType(ctx, tx, ideaID, types.ArtifactDiagramKanban)
		if err != nil {
			return err
		}
		if artifact == nil || artifact.Status != types.ArtifactStatusCompleted {
			return apierr.DependencyNotMet(string(types.ArtifactDiagramKanban))
		}
	}
	return nil
}
