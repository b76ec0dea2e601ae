package services

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/ideaforge/ideaforge-backend/internal/apierr"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
	"github.com/ideaforge/ideaforge-backend/internal/repos/testutil"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

func TestGateViolations(t *testing.T) {
	defined := &types.Feature{
		Status:           types.FeatureStatusDiscovery,
		ProblemStatement: "p",
		TargetUser:       "t",
		ExpectedOutcome:  "e",
		SuccessMetric:    "s",
	}
	cases := []struct {
		name    string
		feature *types.Feature
		next    types.FeatureStatus
		want    []string
	}{
		{
			name:    "promotion to validated names every missing field in order",
			feature: &types.Feature{Status: types.FeatureStatusDiscovery},
			next:    types.FeatureStatusValidated,
			want:    []string{"problem_statement", "target_user", "expected_outcome", "success_metric"},
		},
		{
			name: "partially defined names only the gaps",
			feature: &types.Feature{
				Status:           types.FeatureStatusDiscovery,
				ProblemStatement: "p",
				ExpectedOutcome:  "e",
			},
			next: types.FeatureStatusValidated,
			want: []string{"target_user", "success_metric"},
		},
		{
			name:    "fully defined promotion passes",
			feature: defined,
			next:    types.FeatureStatusValidated,
			want:    nil,
		},
		{
			name:    "skipping straight to in_build checks both gates",
			feature: &types.Feature{Status: types.FeatureStatusDiscovery, ProblemStatement: "p", TargetUser: "t", ExpectedOutcome: "e", SuccessMetric: "s"},
			next:    types.FeatureStatusInBuild,
			want:    []string{"validation_evidence"},
		},
		{
			name:    "whitespace does not satisfy a gate",
			feature: &types.Feature{Status: types.FeatureStatusValidated, ValidationEvidence: "   "},
			next:    types.FeatureStatusInBuild,
			want:    []string{"validation_evidence"},
		},
		{
			name:    "downgrades are free",
			feature: &types.Feature{Status: types.FeatureStatusShipped},
			next:    types.FeatureStatusDiscovery,
			want:    nil,
		},
		{
			name:    "archiving is never gated",
			feature: &types.Feature{Status: types.FeatureStatusDiscovery},
			next:    types.FeatureStatusArchived,
			want:    nil,
		},
		{
			name:    "leaving archived is never gated",
			feature: &types.Feature{Status: types.FeatureStatusArchived},
			next:    types.FeatureStatusInBuild,
			want:    nil,
		},
		{
			name:    "promotion above in_build does not re-check",
			feature: &types.Feature{Status: types.FeatureStatusInBuild},
			next:    types.FeatureStatusShipped,
			want:    nil,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := gateViolations(c.feature, c.next)
			if !reflect.DeepEqual(got, c.want) {
				t.Fatalf("gateViolations = %v, want %v", got, c.want)
			}
		})
	}
}

func TestFeatureServiceUpdateStatus(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	log := testutil.Logger(t)

	team := testutil.SeedTeam(t, ctx, tx, uniquePrefix(t))
	project := testutil.SeedProject(t, ctx, tx, team.ID)
	feature := testutil.SeedFeature(t, ctx, tx, project.ID, team.ID, team.Prefix+"-F1", "Search")

	svc := NewFeatureService(log, tx, repos.NewFeatureRepo(tx, log))

	if _, err := svc.UpdateStatus(ctx, feature.ID, "FLYING"); apierr.CodeOf(err) != apierr.CodeInvalidInput {
		t.Fatalf("unknown status: expected invalid_input, got %v", err)
	}

	// Same status is a no-op, even though the gate would fail.
	same, err := svc.UpdateStatus(ctx, feature.ID, "DISCOVERY")
	if err != nil {
		t.Fatalf("same status: %v", err)
	}
	if same.Status != types.FeatureStatusDiscovery {
		t.Fatalf("same status: got %s", same.Status)
	}

	_, err = svc.UpdateStatus(ctx, feature.ID, "VALIDATED")
	if apierr.CodeOf(err) != apierr.CodeGateNotSatisfied {
		t.Fatalf("ungated promotion: expected gate_not_satisfied, got %v", err)
	}
	if !strings.Contains(err.Error(), "problem_statement") || !strings.Contains(err.Error(), "success_metric") {
		t.Fatalf("gate error must name the missing fields, got %q", err.Error())
	}

	if _, err := svc.Update(ctx, feature.ID, map[string]interface{}{
		"problem_statement": "users cannot find recipes",
		"target_user":       "home cooks",
		"expected_outcome":  "search in under a second",
		"success_metric":    "p95 search latency",
		"status":            "SHIPPED", // not an updatable field, silently dropped
	}); err != nil {
		t.Fatalf("Update definition: %v", err)
	}

	promoted, err := svc.UpdateStatus(ctx, feature.ID, "VALIDATED")
	if err != nil {
		t.Fatalf("promotion to VALIDATED: %v", err)
	}
	if promoted.Status != types.FeatureStatusValidated {
		t.Fatalf("promotion: got %s", promoted.Status)
	}

	_, err = svc.UpdateStatus(ctx, feature.ID, "IN_BUILD")
	if apierr.CodeOf(err) != apierr.CodeGateNotSatisfied {
		t.Fatalf("build without evidence: expected gate_not_satisfied, got %v", err)
	}
	if _, err := svc.Update(ctx, feature.ID, map[string]interface{}{
		"validation_evidence": "20 user interviews",
	}); err != nil {
		t.Fatalf("Update evidence: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, feature.ID, "IN_BUILD"); err != nil {
		t.Fatalf("promotion to IN_BUILD: %v", err)
	}

	// Downgrade and archive are unrestricted.
	if _, err := svc.UpdateStatus(ctx, feature.ID, "DISCOVERY"); err != nil {
		t.Fatalf("downgrade: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, feature.ID, "ARCHIVED"); err != nil {
		t.Fatalf("archive: %v", err)
	}
}

func TestFeatureServiceUpdateRejectsUnknownFields(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	log := testutil.Logger(t)

	team := testutil.SeedTeam(t, ctx, tx, uniquePrefix(t))
	project := testutil.SeedProject(t, ctx, tx, team.ID)
	feature := testutil.SeedFeature(t, ctx, tx, project.ID, team.ID, team.Prefix+"-F1", "Search")

	svc := NewFeatureService(log, tx, repos.NewFeatureRepo(tx, log))

	if _, err := svc.Update(ctx, feature.ID, map[string]interface{}{
		"identifier": "HAX-1",
		"team_id":    "nope",
	}); apierr.CodeOf(err) != apierr.CodeInvalidInput {
		t.Fatalf("expected invalid_input for no updatable fields, got %v", err)
	}

	if _, err := svc.Update(ctx, feature.ID, map[string]interface{}{
		"priority": "whenever",
	}); apierr.CodeOf(err) != apierr.CodeInvalidInput {
		t.Fatalf("expected invalid_input for unknown priority, got %v", err)
	}

	updated, err := svc.Update(ctx, feature.ID, map[string]interface{}{"priority": "high"})
	if err != nil {
		t.Fatalf("Update priority: %v", err)
	}
	if updated.Priority != types.PriorityHigh {
		t.Fatalf("Update priority: got %s", updated.Priority)
	}
}
