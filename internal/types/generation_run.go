package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Generation job types dispatched by the worker registry.
const (
	JobTypeValidationGenerate = "validation_generate"
	JobTypeDocumentGenerate   = "document_generate"
)

// Generation run statuses.
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// GenerationRun is one background generation step. Rows are claimed by the
// worker with FOR UPDATE SKIP LOCKED; a stale heartbeat makes a running row
// claimable again after a crash.
type GenerationRun struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	IdeaID uuid.UUID `gorm:"type:uuid;not null;index" json:"idea_id"`

	JobType  string `gorm:"column:job_type;not null;index" json:"job_type"`
	Status   string `gorm:"column:status;not null;index" json:"status"`
	Stage    string `gorm:"column:stage;not null" json:"stage"`
	Progress int    `gorm:"column:progress;not null;default:0" json:"progress"`

	Attempts    int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error       string     `gorm:"column:error" json:"error"`
	LastErrorAt *time.Time `gorm:"column:last_error_at" json:"last_error_at,omitempty"`

	LockedAt    *time.Time `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`

	Payload datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (GenerationRun) TableName() string { return "generation_run" }
