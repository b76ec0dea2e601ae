package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FeatureType string

const (
	FeatureTypeCore        FeatureType = "CORE"
	FeatureTypeEnhancement FeatureType = "ENHANCEMENT"
	FeatureTypeIntegration FeatureType = "INTEGRATION"
	FeatureTypeInfra       FeatureType = "INFRA"
)

type FeatureStatus string

const (
	FeatureStatusDiscovery FeatureStatus = "DISCOVERY"
	FeatureStatusValidated FeatureStatus = "VALIDATED"
	FeatureStatusInBuild   FeatureStatus = "IN_BUILD"
	FeatureStatusInReview  FeatureStatus = "IN_REVIEW"
	FeatureStatusShipped   FeatureStatus = "SHIPPED"
	FeatureStatusArchived  FeatureStatus = "ARCHIVED"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// ParseFeatureType coerces an AI-supplied string, falling back to the default
// rather than failing.
func ParseFeatureType(s string) (FeatureType, bool) {
	switch FeatureType(normalizeEnum(s)) {
	case FeatureTypeCore:
		return FeatureTypeCore, true
	case FeatureTypeEnhancement:
		return FeatureTypeEnhancement, true
	case FeatureTypeIntegration:
		return FeatureTypeIntegration, true
	case FeatureTypeInfra:
		return FeatureTypeInfra, true
	}
	return FeatureTypeCore, false
}

func ParseFeatureStatus(s string) (FeatureStatus, bool) {
	switch FeatureStatus(normalizeEnum(s)) {
	case FeatureStatusDiscovery:
		return FeatureStatusDiscovery, true
	case FeatureStatusValidated:
		return FeatureStatusValidated, true
	case FeatureStatusInBuild:
		return FeatureStatusInBuild, true
	case FeatureStatusInReview:
		return FeatureStatusInReview, true
	case FeatureStatusShipped:
		return FeatureStatusShipped, true
	case FeatureStatusArchived:
		return FeatureStatusArchived, true
	}
	return FeatureStatusDiscovery, false
}

func ParsePriority(s string) (Priority, bool) {
	switch Priority(normalizeEnum(s)) {
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	case PriorityUrgent:
		return PriorityUrgent, true
	}
	return PriorityMedium, false
}

type Feature struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	TeamID    uuid.UUID `gorm:"type:uuid;not null;index" json:"team_id"`

	// Identifier is globally unique, e.g. ENG-F7.
	Identifier string `gorm:"column:identifier;uniqueIndex;not null" json:"identifier"`

	ParentFeatureID *uuid.UUID `gorm:"type:uuid;index" json:"parent_feature_id,omitempty"`
	ParentFeature   *Feature   `gorm:"constraint:OnDelete:SET NULL;foreignKey:ParentFeatureID;references:ID" json:"parent_feature,omitempty"`

	Title       string        `gorm:"column:title;not null" json:"title"`
	Description string        `gorm:"column:description" json:"description"`
	Type        FeatureType   `gorm:"column:type;not null;default:'CORE'" json:"type"`
	Status      FeatureStatus `gorm:"column:status;not null;index;default:'DISCOVERY'" json:"status"`
	Priority    Priority      `gorm:"column:priority;not null;default:'MEDIUM'" json:"priority"`

	// Soft back-reference to the blueprint diagram node that produced this
	// feature; traceability only, not an ownership edge.
	BlueprintNodeID string `gorm:"column:blueprint_node_id;index" json:"blueprint_node_id,omitempty"`

	// Core definition fields checked by the status gate.
	ProblemStatement   string `gorm:"column:problem_statement" json:"problem_statement"`
	TargetUser         string `gorm:"column:target_user" json:"target_user"`
	ExpectedOutcome    string `gorm:"column:expected_outcome" json:"expected_outcome"`
	SuccessMetric      string `gorm:"column:success_metric" json:"success_metric"`
	ValidationEvidence string `gorm:"column:validation_evidence" json:"validation_evidence"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Feature) TableName() string { return "feature" }

type Milestone struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FeatureID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"feature_id"`
	Feature     *Feature       `gorm:"constraint:OnDelete:CASCADE;foreignKey:FeatureID;references:ID" json:"feature,omitempty"`
	Title       string         `gorm:"column:title;not null" json:"title"`
	Description string         `gorm:"column:description" json:"description"`
	SortIndex   int            `gorm:"column:sort_index;not null;default:0" json:"sort_index"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Milestone) TableName() string { return "milestone" }
