package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Clarification is one question/answer pair collected before validation.
// Suggestion holds the AI-proposed answer, if any.
type Clarification struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Suggestion string `json:"suggestion,omitempty"`
}

type Idea struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User               *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	RawText            string         `gorm:"column:raw_text;not null" json:"raw_text"`
	RefinedDescription string         `gorm:"column:refined_description" json:"refined_description"`
	Clarifications     datatypes.JSON `gorm:"column:clarifications;type:jsonb" json:"clarifications"`
	Phase              IdeaPhase      `gorm:"column:phase;not null;index;default:'DRAFT'" json:"phase"`
	ProjectID          *uuid.UUID     `gorm:"type:uuid;index" json:"project_id,omitempty"`
	Project            *Project       `gorm:"constraint:OnDelete:SET NULL;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Idea) TableName() string { return "idea" }

// DecodeClarifications reads the stored blob into tagged records. Unreadable
// or missing data decodes to an empty slice rather than an error.
func DecodeClarifications(raw datatypes.JSON) []Clarification {
	if len(raw) == 0 {
		return []Clarification{}
	}
	var out []Clarification
	if err := json.Unmarshal(raw, &out); err != nil {
		return []Clarification{}
	}
	return out
}

func EncodeClarifications(clarifications []Clarification) datatypes.JSON {
	if clarifications == nil {
		clarifications = []Clarification{}
	}
	raw, err := json.Marshal(clarifications)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}

// ValidationReport is one-to-one with Idea. The five fields are
// schema-on-read JSON: the model decides their inner shape.
type ValidationReport struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	IdeaID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"idea_id"`
	Idea              *Idea          `gorm:"constraint:OnDelete:CASCADE;foreignKey:IdeaID;references:ID" json:"idea,omitempty"`
	MarketFeasibility datatypes.JSON `gorm:"column:market_feasibility;type:jsonb" json:"market_feasibility"`
	Improvements      datatypes.JSON `gorm:"column:improvements;type:jsonb" json:"improvements"`
	CoreFeatures      datatypes.JSON `gorm:"column:core_features;type:jsonb" json:"core_features"`
	TechStack         datatypes.JSON `gorm:"column:tech_stack;type:jsonb" json:"tech_stack"`
	PricingModel      datatypes.JSON `gorm:"column:pricing_model;type:jsonb" json:"pricing_model"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ValidationReport) TableName() string { return "validation_report" }

// ValidationFields enumerates the report columns that can be regenerated
// individually.
var ValidationFields = []string{
	"market_feasibility",
	"improvements",
	"core_features",
	"tech_stack",
	"pricing_model",
}
