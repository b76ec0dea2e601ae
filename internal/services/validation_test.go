package services

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/apierr"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
	"github.com/ideaforge/ideaforge-backend/internal/repos/testutil"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

func newValidationService(tb testing.TB, tx *gorm.DB, ai AIClient) ValidationService {
	tb.Helper()
	log := testutil.Logger(tb)
	ideas := newIdeaService(tb, tx, ai, &recordingNotifier{})
	return NewValidationService(log, tx, ideas,
		repos.NewValidationReportRepo(tx, log),
		repos.NewGenerationRunRepo(tx, log),
		ai,
	)
}

func scriptedReportAI() *fakeAI {
	return &fakeAI{
		jsonFn: func(system, user, schemaName string) (map[string]any, error) {
			return map[string]any{
				"market_feasibility": map[string]any{"score": 8, "summary": "crowded but growing"},
				"improvements":       []any{"offline mode"},
				"core_features":      []any{"meal planning", "grocery list"},
				"tech_stack":         map[string]any{"backend": "go"},
				"pricing_model":      map[string]any{"model": "freemium"},
			}, nil
		},
	}
}

func TestGenerateReportPersistsAndAdvances(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "validation@test.dev")
	idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseReadyForValidation)

	svc := newValidationService(t, tx, scriptedReportAI())
	if err := svc.GenerateReport(ctx, idea.ID); err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}

	report, err := svc.GetReport(ctx, user.ID, idea.ID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if len(report.CoreFeatures) == 0 || len(report.PricingModel) == 0 {
		t.Fatalf("report sections missing: %+v", report)
	}

	var stored types.Idea
	if err := tx.Where("id = ?", idea.ID).First(&stored).Error; err != nil {
		t.Fatalf("reload idea: %v", err)
	}
	if stored.Phase != types.PhaseValidated {
		t.Fatalf("expected VALIDATED, got %s", stored.Phase)
	}

	// Regeneration goes through the same upsert; still one row.
	if err := svc.GenerateReport(ctx, idea.ID); err != nil {
		t.Fatalf("GenerateReport #2: %v", err)
	}
	var n int64
	if err := tx.Model(&types.ValidationReport{}).Where("idea_id = ?", idea.ID).Count(&n).Error; err != nil {
		t.Fatalf("count reports: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 report row, got %d", n)
	}
}

func TestGenerateReportFailurePropagates(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "validation-fail@test.dev")
	idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseReadyForValidation)

	ai := &fakeAI{jsonFn: func(system, user, schemaName string) (map[string]any, error) {
		return nil, fmt.Errorf("model unavailable")
	}}
	svc := newValidationService(t, tx, ai)

	err := svc.GenerateReport(ctx, idea.ID)
	if apierr.CodeOf(err) != apierr.CodeGenerationFailed {
		t.Fatalf("expected generation_failed, got %v", err)
	}

	var stored types.Idea
	if err := tx.Where("id = ?", idea.ID).First(&stored).Error; err != nil {
		t.Fatalf("reload idea: %v", err)
	}
	if stored.Phase != types.PhaseReadyForValidation {
		t.Fatalf("phase must not advance on failure, got %s", stored.Phase)
	}
}

func TestRegenerateField(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "regen-field@test.dev")
	idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseValidated)

	svc := newValidationService(t, tx, scriptedReportAI())

	if _, err := svc.RegenerateField(ctx, user.ID, idea.ID, "vibes"); apierr.CodeOf(err) != apierr.CodeInvalidInput {
		t.Fatalf("unknown field: expected invalid_input, got %v", err)
	}
	if _, err := svc.RegenerateField(ctx, user.ID, idea.ID, "tech_stack"); apierr.CodeOf(err) != apierr.CodeDependencyNotMet {
		t.Fatalf("no report yet: expected dependency_not_met, got %v", err)
	}

	testutil.SeedReport(t, ctx, tx, idea.ID)
	report, err := svc.RegenerateField(ctx, user.ID, idea.ID, "tech_stack")
	if err != nil {
		t.Fatalf("RegenerateField: %v", err)
	}
	if string(report.TechStack) == `{"backend":"node"}` || len(report.TechStack) == 0 {
		t.Fatalf("tech_stack not regenerated: %s", report.TechStack)
	}
	// Untouched sections keep their seeded values.
	if string(report.PricingModel) != `{"model": "freemium"}` && string(report.PricingModel) != `{"model":"freemium"}` {
		t.Fatalf("pricing_model must be untouched, got %s", report.PricingModel)
	}
}

func TestEnqueueValidation(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "enqueue-validation@test.dev")
	idea := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseReadyForValidation)

	svc := newValidationService(t, tx, scriptedReportAI())

	run, err := svc.EnqueueValidation(ctx, user.ID, idea.ID)
	if err != nil {
		t.Fatalf("EnqueueValidation: %v", err)
	}
	if run.Status != types.RunStatusQueued || run.JobType != types.JobTypeValidationGenerate {
		t.Fatalf("unexpected run: %+v", run)
	}

	// A queued run for the same idea is reused, not duplicated.
	again, err := svc.EnqueueValidation(ctx, user.ID, idea.ID)
	if err != nil {
		t.Fatalf("EnqueueValidation #2: %v", err)
	}
	if again.ID != run.ID {
		t.Fatalf("expected dedupe to return run %v, got %v", run.ID, again.ID)
	}

	draft := testutil.SeedIdea(t, ctx, tx, user.ID, types.PhaseDraft)
	if _, err := svc.EnqueueValidation(ctx, user.ID, draft.ID); apierr.CodeOf(err) != apierr.CodeInvalidPhase {
		t.Fatalf("draft idea: expected invalid_phase, got %v", err)
	}
}
