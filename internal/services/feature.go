package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/apierr"
	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

// statusRank orders the lifecycle for promotion/downgrade detection.
// ARCHIVED sits outside the ladder; moving there is never gated.
var statusRank = map[types.FeatureStatus]int{
	types.FeatureStatusDiscovery: 0,
	types.FeatureStatusValidated: 1,
	types.FeatureStatusInBuild:   2,
	types.FeatureStatusInReview:  3,
	types.FeatureStatusShipped:   4,
}

type FeatureService interface {
	Get(ctx context.Context, featureID uuid.UUID) (*types.Feature, error)
	// Update edits the definition fields; the gate reads them on promotion.
	Update(ctx context.Context, featureID uuid.UUID, updates map[string]interface{}) (*types.Feature, error)
	// UpdateStatus applies the promotion gate: a feature cannot leave
	// DISCOVERY without its core definition, nor enter IN_BUILD without
	// validation evidence. Downgrades are unrestricted.
	UpdateStatus(ctx context.Context, featureID uuid.UUID, status string) (*types.Feature, error)
}

type featureService struct {
	log      *logger.Logger
	db       *gorm.DB
	features repos.FeatureRepo
}

func NewFeatureService(log *logger.Logger, db *gorm.DB, features repos.FeatureRepo) FeatureService {
	return &featureService{
		log:      log.With("service", "FeatureService"),
		db:       db,
		features: features,
	}
}

func (s *featureService) Get(ctx context.Context, featureID uuid.UUID) (*types.Feature, error) {
	feature, err := s.features.GetByID(ctx, nil, featureID)
	if err != nil {
		return nil, err
	}
	if feature == nil {
		return nil, apierr.NotFound("feature")
	}
	return feature, nil
}

var featureUpdatableFields = map[string]bool{
	"title":               true,
	"description":         true,
	"priority":            true,
	"problem_statement":   true,
	"target_user":         true,
	"expected_outcome":    true,
	"success_metric":      true,
	"validation_evidence": true,
}

func (s *featureService) Update(ctx context.Context, featureID uuid.UUID, updates map[string]interface{}) (*types.Feature, error) {
	if _, err := s.Get(ctx, featureID); err != nil {
		return nil, err
	}
	filtered := map[string]interface{}{}
	for k, v := range updates {
		if featureUpdatableFields[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return nil, apierr.InvalidInput("no updatable fields given")
	}
	if raw, ok := filtered["priority"]; ok {
		p, valid := types.ParsePriority(toString(raw))
		if !valid {
			return nil, apierr.InvalidInput("unknown priority")
		}
		filtered["priority"] = p
	}
	if err := s.features.UpdateFields(ctx, nil, featureID, filtered); err != nil {
		return nil, err
	}
	return s.Get(ctx, featureID)
}

func (s *featureService) UpdateStatus(ctx context.Context, featureID uuid.UUID, status string) (*types.Feature, error) {
	next, ok := types.ParseFeatureStatus(status)
	if !ok {
		return nil, apierr.InvalidInput("unknown feature status")
	}
	feature, err := s.Get(ctx, featureID)
	if err != nil {
		return nil, err
	}
	if feature.Status == next {
		return feature, nil
	}
	if missing := gateViolations(feature, next); len(missing) > 0 {
		return nil, apierr.GateNotSatisfied(missing)
	}
	if err := s.features.UpdateFields(ctx, nil, featureID, map[string]interface{}{"status": next}); err != nil {
		return nil, err
	}
	feature.Status = next
	return feature, nil
}

// gateViolations returns the definition fields a promotion still needs.
func gateViolations(feature *types.Feature, next types.FeatureStatus) []string {
	fromRank, fromOnLadder := statusRank[feature.Status]
	toRank, toOnLadder := statusRank[next]
	if !fromOnLadder || !toOnLadder || toRank <= fromRank {
		return nil
	}

	var missing []string
	if fromRank < statusRank[types.FeatureStatusValidated] && toRank >= statusRank[types.FeatureStatusValidated] {
		core := []struct {
			field string
			value string
		}{
			{"problem_statement", feature.ProblemStatement},
			{"target_user", feature.TargetUser},
			{"expected_outcome", feature.ExpectedOutcome},
			{"success_metric", feature.SuccessMetric},
		}
		for _, c := range core {
			if strings.TrimSpace(c.value) == "" {
				missing = append(missing, c.field)
			}
		}
	}
	if fromRank < statusRank[types.FeatureStatusInBuild] && toRank >= statusRank[types.FeatureStatusInBuild] {
		if strings.TrimSpace(feature.ValidationEvidence) == "" {
			missing = append(missing, "validation_evidence")
		}
	}
	return missing
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}
