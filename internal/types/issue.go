package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IssueType string

const (
	IssueTypeTask  IssueType = "TASK"
	IssueTypeBug   IssueType = "BUG"
	IssueTypeChore IssueType = "CHORE"
	IssueTypeSpike IssueType = "SPIKE"
)

type IssueStatus string

const (
	IssueStatusTodo       IssueStatus = "TODO"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusInReview   IssueStatus = "IN_REVIEW"
	IssueStatusDone       IssueStatus = "DONE"
	IssueStatusCanceled   IssueStatus = "CANCELED"
)

func ParseIssueType(s string) (IssueType, bool) {
	switch IssueType(normalizeEnum(s)) {
	case IssueTypeTask:
		return IssueTypeTask, true
	case IssueTypeBug:
		return IssueTypeBug, true
	case IssueTypeChore:
		return IssueTypeChore, true
	case IssueTypeSpike:
		return IssueTypeSpike, true
	}
	return IssueTypeTask, false
}

func ParseIssueStatus(s string) (IssueStatus, bool) {
	switch IssueStatus(normalizeEnum(s)) {
	case IssueStatusTodo:
		return IssueStatusTodo, true
	case IssueStatusInProgress:
		return IssueStatusInProgress, true
	case IssueStatusInReview:
		return IssueStatusInReview, true
	case IssueStatusDone:
		return IssueStatusDone, true
	case IssueStatusCanceled:
		return IssueStatusCanceled, true
	}
	return IssueStatusTodo, false
}

func normalizeEnum(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
}

type Issue struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	TeamID    uuid.UUID `gorm:"type:uuid;not null;index" json:"team_id"`

	// Identifier is globally unique for allocator-issued codes (ENG-42).
	// Sub-issues carry positional {parent}-S{n} codes in the same column.
	Identifier string `gorm:"column:identifier;uniqueIndex;not null" json:"identifier"`

	FeatureID uuid.UUID `gorm:"type:uuid;not null;index" json:"feature_id"`
	Feature   *Feature  `gorm:"constraint:OnDelete:CASCADE;foreignKey:FeatureID;references:ID" json:"feature,omitempty"`

	MilestoneID *uuid.UUID `gorm:"type:uuid;index" json:"milestone_id,omitempty"`
	Milestone   *Milestone `gorm:"constraint:OnDelete:SET NULL;foreignKey:MilestoneID;references:ID" json:"milestone,omitempty"`

	ParentIssueID *uuid.UUID `gorm:"type:uuid;index" json:"parent_issue_id,omitempty"`
	ParentIssue   *Issue     `gorm:"constraint:OnDelete:CASCADE;foreignKey:ParentIssueID;references:ID" json:"parent_issue,omitempty"`

	Title       string      `gorm:"column:title;not null" json:"title"`
	Description string      `gorm:"column:description" json:"description"`
	Type        IssueType   `gorm:"column:type;not null;default:'TASK'" json:"type"`
	Status      IssueStatus `gorm:"column:status;not null;index;default:'TODO'" json:"status"`
	Priority    Priority    `gorm:"column:priority;not null;default:'MEDIUM'" json:"priority"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Issue) TableName() string { return "issue" }
