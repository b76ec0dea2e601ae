package types

import "testing"

func TestPhaseTransitions(t *testing.T) {
	cases := []struct {
		name string
		from IdeaPhase
		to   IdeaPhase
		want bool
	}{
		{name: "draft_to_clarification", from: PhaseDraft, to: PhaseClarificationNeeded, want: true},
		{name: "draft_skips_clarification", from: PhaseDraft, to: PhaseReadyForValidation, want: true},
		{name: "draft_cannot_jump_to_validated", from: PhaseDraft, to: PhaseValidated, want: false},
		{name: "clarification_to_ready", from: PhaseClarificationNeeded, to: PhaseReadyForValidation, want: true},
		{name: "clarification_cannot_go_back", from: PhaseClarificationNeeded, to: PhaseDraft, want: false},
		{name: "ready_to_validated", from: PhaseReadyForValidation, to: PhaseValidated, want: true},
		{name: "validated_reenters_itself", from: PhaseValidated, to: PhaseValidated, want: true},
		{name: "validated_to_blueprint", from: PhaseValidated, to: PhaseBlueprintGenerated, want: true},
		{name: "blueprint_regenerates", from: PhaseBlueprintGenerated, to: PhaseBlueprintGenerated, want: true},
		{name: "blueprint_back_to_validated", from: PhaseBlueprintGenerated, to: PhaseValidated, want: true},
		{name: "blueprint_to_completed", from: PhaseBlueprintGenerated, to: PhaseCompleted, want: true},
		{name: "completed_is_terminal", from: PhaseCompleted, to: PhaseBlueprintGenerated, want: false},
		{name: "completed_cannot_reenter", from: PhaseCompleted, to: PhaseCompleted, want: false},
		{name: "validated_cannot_complete_directly", from: PhaseValidated, to: PhaseCompleted, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanTransition(tc.to); got != tc.want {
				t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestPhaseTerminal(t *testing.T) {
	if !PhaseCompleted.Terminal() {
		t.Fatal("COMPLETED must be terminal")
	}
	for _, p := range []IdeaPhase{PhaseDraft, PhaseClarificationNeeded, PhaseReadyForValidation, PhaseValidated, PhaseBlueprintGenerated} {
		if p.Terminal() {
			t.Fatalf("%s must not be terminal", p)
		}
	}
	if IdeaPhase("BOGUS").Valid() {
		t.Fatal("unknown phase must not be valid")
	}
}

func TestEnumCoercionDefaults(t *testing.T) {
	if ft, ok := ParseFeatureType("definitely-not-a-type"); ok || ft != FeatureTypeCore {
		t.Fatalf("bad feature type should default to CORE, got %s ok=%v", ft, ok)
	}
	if ft, ok := ParseFeatureType("enhancement"); !ok || ft != FeatureTypeEnhancement {
		t.Fatalf("case-insensitive parse failed, got %s ok=%v", ft, ok)
	}
	if st, ok := ParseIssueStatus("in progress"); !ok || st != IssueStatusInProgress {
		t.Fatalf("space-normalized parse failed, got %s ok=%v", st, ok)
	}
	if pr, ok := ParsePriority(""); ok || pr != PriorityMedium {
		t.Fatalf("empty priority should default to MEDIUM, got %s ok=%v", pr, ok)
	}
}
