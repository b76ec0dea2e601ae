package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Team carries the identifier counters. Prefix is globally unique so two
// teams can never be assigned colliding identifier strings.
type Team struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	Prefix      string         `gorm:"column:prefix;size:5;uniqueIndex;not null" json:"prefix"`
	Description string         `gorm:"column:description" json:"description"`

	// Per-kind allocation counters, advanced atomically by the allocator.
	IssueCounter   int `gorm:"column:issue_counter;not null;default:0" json:"issue_counter"`
	FeatureCounter int `gorm:"column:feature_counter;not null;default:0" json:"feature_counter"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Team) TableName() string { return "team" }

type Project struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TeamID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"team_id"`
	Team        *Team          `gorm:"constraint:OnDelete:CASCADE;foreignKey:TeamID;references:ID" json:"team,omitempty"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	Description string         `gorm:"column:description" json:"description"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Project) TableName() string { return "project" }
