package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/apierr"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
	"github.com/ideaforge/ideaforge-backend/internal/repos/testutil"
	"github.com/ideaforge/ideaforge-backend/internal/sse"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

func newIdeaService(tb testing.TB, tx *gorm.DB, ai AIClient, notifier Notifier) IdeaService {
	tb.Helper()
	log := testutil.Logger(tb)
	return NewIdeaService(log, tx,
		repos.NewIdeaRepo(tx, log),
		repos.NewValidationReportRepo(tx, log),
		repos.NewArtifactRepo(tx, log),
		ai, notifier,
	)
}

func TestSubmitWithClarifyingQuestions(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "submit-questions@test.dev")
	ai := &fakeAI{
		jsonFn: func(system, userPrompt, schemaName string) (map[string]any, error) {
			return map[string]any{
				"questions": []any{
					map[string]any{"question": "Who is the audience?", "suggestion": "home cooks"},
					map[string]any{"question": "Mobile or web first?", "suggestion": ""},
					map[string]any{"question": "  ", "suggestion": "dropped"},
				},
			}, nil
		},
	}
	notifier := &recordingNotifier{}
	svc := newIdeaService(t, tx, ai, notifier)

	idea, err := svc.Submit(ctx, user.ID, "  a recipe planner  ")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if idea.Phase != types.PhaseClarificationNeeded {
		t.Fatalf("Submit: expected CLARIFICATION_NEEDED, got %s", idea.Phase)
	}
	if idea.RawText != "a recipe planner" {
		t.Fatalf("Submit: raw text not trimmed: %q", idea.RawText)
	}
	clarifications := types.DecodeClarifications(idea.Clarifications)
	if len(clarifications) != 2 {
		t.Fatalf("Submit: expected 2 clarifications (blank question dropped), got %d", len(clarifications))
	}
	if clarifications[0].Suggestion != "home cooks" {
		t.Fatalf("Submit: suggestion lost: %+v", clarifications[0])
	}
	if !notifier.sawEvent(sse.SSEEventIdeaPhaseChanged) {
		t.Fatalf("Submit: phase change event not published")
	}

	// Persisted row matches the returned one.
	stored, err := svc.LoadOwned(ctx, tx, user.ID, idea.ID)
	if err != nil {
		t.Fatalf("LoadOwned: %v", err)
	}
	if stored.Phase != types.PhaseClarificationNeeded {
		t.Fatalf("LoadOwned: expected CLARIFICATION_NEEDED, got %s", stored.Phase)
	}
}

func TestSubmitDegradesWhenQuestionRoundFails(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "submit-degrade@test.dev")
	ai := &fakeAI{
		jsonFn: func(system, userPrompt, schemaName string) (map[string]any, error) {
			return nil, fmt.Errorf("model unavailable")
		},
	}
	svc := newIdeaService(t, tx, ai, &recordingNotifier{})

	idea, err := svc.Submit(ctx, user.ID, "a recipe planner")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if idea.Phase != types.PhaseReadyForValidation {
		t.Fatalf("Submit: expected READY_FOR_VALIDATION on degraded question round, got %s", idea.Phase)
	}
	if len(types.DecodeClarifications(idea.Clarifications)) != 0 {
		t.Fatalf("Submit: expected no clarifications")
	}
}

func TestSubmitRejectsEmptyText(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	svc := newIdeaService(t, tx, &fakeAI{}, &recordingNotifier{})

	if _, err := svc.Submit(context.Background(), uuid.New(), "   "); apierr.CodeOf(err) != apierr.CodeInvalidInput {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestAnswerClarificationsMergesAndRefines(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "answers@test.dev")
	idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseClarificationNeeded)
	idea.Clarifications = types.EncodeClarifications([]types.Clarification{
		{Question: "Audience?", Suggestion: "home cooks"},
		{Question: "Platform?", Suggestion: "web"},
	})
	if err := tx.Model(&types.Idea{}).Where("id = ?", idea.ID).
		Update("clarifications", idea.Clarifications).Error; err != nil {
		t.Fatalf("seed clarifications: %v", err)
	}

	ai := &fakeAI{
		textFn: func(system, userPrompt string) (string, error) {
			return "A refined description.", nil
		},
	}
	svc := newIdeaService(t, tx, ai, &recordingNotifier{})

	updated, err := svc.AnswerClarifications(ctx, user.ID, idea.ID, []string{"professional chefs", ""})
	if err != nil {
		t.Fatalf("AnswerClarifications: %v", err)
	}
	clarifications := types.DecodeClarifications(updated.Clarifications)
	if clarifications[0].Answer != "professional chefs" {
		t.Fatalf("explicit answer lost: %+v", clarifications[0])
	}
	if clarifications[1].Answer != "web" {
		t.Fatalf("blank answer must fall back to the suggestion: %+v", clarifications[1])
	}
	if updated.RefinedDescription != "A refined description." {
		t.Fatalf("refined description not set: %q", updated.RefinedDescription)
	}
	if updated.Phase != types.PhaseReadyForValidation {
		t.Fatalf("expected READY_FOR_VALIDATION, got %s", updated.Phase)
	}
}

func TestAnswerClarificationsWrongPhase(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "answers-phase@test.dev")
	idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseValidated)
	svc := newIdeaService(t, tx, &fakeAI{}, &recordingNotifier{})

	if _, err := svc.AnswerClarifications(ctx, user.ID, idea.ID, nil); apierr.CodeOf(err) != apierr.CodeInvalidPhase {
		t.Fatalf("expected invalid_phase, got %v", err)
	}
}

func TestLoadOwnedHidesOtherUsersIdeas(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	owner := testutil.SeedUser(t, ctx, tx, "owner@test.dev")
	intruder := testutil.SeedUser(t, ctx, tx, "intruder@test.dev")
	idea := testutil.SeedIdea(t, ctx, tx, owner.ID, types.PhaseDraft)
	svc := newIdeaService(t, tx, &fakeAI{}, &recordingNotifier{})

	if _, err := svc.LoadOwned(ctx, tx, owner.ID, idea.ID); err != nil {
		t.Fatalf("LoadOwned by owner: %v", err)
	}
	if _, err := svc.LoadOwned(ctx, tx, intruder.ID, idea.ID); apierr.CodeOf(err) != apierr.CodeNotFound {
		t.Fatalf("LoadOwned by intruder: expected not_found, got %v", err)
	}
	if _, err := svc.LoadOwned(ctx, tx, owner.ID, uuid.New()); apierr.CodeOf(err) != apierr.CodeNotFound {
		t.Fatalf("LoadOwned missing idea: expected not_found, got %v", err)
	}
}

func TestAdvancePhase(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "advance@test.dev")
	notifier := &recordingNotifier{}
	svc := newIdeaService(t, tx, &fakeAI{}, notifier)

	t.Run("graph violations are rejected", func(t *testing.T) {
		idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseDraft)
		err := svc.AdvancePhase(ctx, tx, idea, types.PhaseValidated)
		if apierr.CodeOf(err) != apierr.CodeInvalidPhase {
			t.Fatalf("expected invalid_phase, got %v", err)
		}
	})

	t.Run("validated requires a report row", func(t *testing.T) {
		idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseReadyForValidation)
		err := svc.AdvancePhase(ctx, tx, idea, types.PhaseValidated)
		if apierr.CodeOf(err) != apierr.CodeDependencyNotMet {
			t.Fatalf("expected dependency_not_met, got %v", err)
		}

		testutil.SeedReport(t, ctx, tx, idea.ID)
		if err := svc.AdvancePhase(ctx, tx, idea, types.PhaseValidated); err != nil {
			t.Fatalf("AdvancePhase with report: %v", err)
		}
		if idea.Phase != types.PhaseValidated {
			t.Fatalf("in-memory idea not advanced: %s", idea.Phase)
		}
		stored, err := svc.LoadOwned(ctx, tx, user.ID, idea.ID)
		if err != nil || stored.Phase != types.PhaseValidated {
			t.Fatalf("stored phase: err=%v phase=%v", err, stored)
		}
		if !notifier.sawEvent(sse.SSEEventIdeaPhaseChanged) {
			t.Fatalf("phase change event not published")
		}
	})

	t.Run("same-phase advance without a self-loop is a no-op", func(t *testing.T) {
		idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseReadyForValidation)
		if err := svc.AdvancePhase(ctx, tx, idea, types.PhaseReadyForValidation); err != nil {
			t.Fatalf("no-op advance: %v", err)
		}
	})

	t.Run("completed is terminal", func(t *testing.T) {
		idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseCompleted)
		if err := svc.AdvancePhase(ctx, tx, idea, types.PhaseCompleted); err != nil {
			t.Fatalf("terminal no-op: %v", err)
		}
		err := svc.AdvancePhase(ctx, tx, idea, types.PhaseValidated)
		if apierr.CodeOf(err) != apierr.CodeInvalidPhase {
			t.Fatalf("leaving COMPLETED: expected invalid_phase, got %v", err)
		}
	})
}
