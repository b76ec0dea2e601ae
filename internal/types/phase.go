package types

// IdeaPhase is the idea's position in the generation lifecycle.
type IdeaPhase string

const (
	PhaseDraft               IdeaPhase = "DRAFT"
	PhaseClarificationNeeded IdeaPhase = "CLARIFICATION_NEEDED"
	PhaseReadyForValidation  IdeaPhase = "READY_FOR_VALIDATION"
	PhaseValidated           IdeaPhase = "VALIDATED"
	PhaseBlueprintGenerated  IdeaPhase = "BLUEPRINT_GENERATED"
	PhaseCompleted           IdeaPhase = "COMPLETED"
)

// phaseTransitions is the single source of truth for the phase graph.
// CLARIFICATION_NEEDED is skippable; VALIDATED and BLUEPRINT_GENERATED allow
// re-entry from themselves (regeneration is not a rollback); COMPLETED is
// terminal and reached only by converting to a project.
var phaseTransitions = map[IdeaPhase][]IdeaPhase{
	PhaseDraft:               {PhaseClarificationNeeded, PhaseReadyForValidation},
	PhaseClarificationNeeded: {PhaseReadyForValidation},
	PhaseReadyForValidation:  {PhaseValidated},
	PhaseValidated:           {PhaseValidated, PhaseBlueprintGenerated},
	PhaseBlueprintGenerated:  {PhaseValidated, PhaseBlueprintGenerated, PhaseCompleted},
	PhaseCompleted:           {},
}

func (p IdeaPhase) Valid() bool {
	_, ok := phaseTransitions[p]
	return ok
}

func (p IdeaPhase) CanTransition(to IdeaPhase) bool {
	for _, next := range phaseTransitions[p] {
		if next == to {
			return true
		}
	}
	return false
}

func (p IdeaPhase) Terminal() bool {
	return len(phaseTransitions[p]) == 0 && p.Valid()
}
