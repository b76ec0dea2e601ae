package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ArtifactType string

const (
	ArtifactDiagramUserFlow ArtifactType = "DIAGRAM_USER_FLOW"
	ArtifactDiagramKanban   ArtifactType = "DIAGRAM_KANBAN"

	ArtifactPRD                ArtifactType = "PRD"
	ArtifactAppFlow            ArtifactType = "APP_FLOW"
	ArtifactTechStack          ArtifactType = "TECH_STACK"
	ArtifactFrontendGuidelines ArtifactType = "FRONTEND_GUIDELINES"
	ArtifactBackendSchema      ArtifactType = "BACKEND_SCHEMA"
	ArtifactImplementationPlan ArtifactType = "IMPLEMENTATION_PLAN"
)

// DocumentOrder is the fixed pipeline sequence; each entry is gated on its
// immediate predecessor being COMPLETED.
var DocumentOrder = []ArtifactType{
	ArtifactPRD,
	ArtifactAppFlow,
	ArtifactTechStack,
	ArtifactFrontendGuidelines,
	ArtifactBackendSchema,
	ArtifactImplementationPlan,
}

// DocumentIndex returns the position of t in the pipeline, or -1 when t is
// not a pipeline document (diagram artifacts are not ordered).
func DocumentIndex(t ArtifactType) int {
	for i, d := range DocumentOrder {
		if d == t {
			return i
		}
	}
	return -1
}

type ArtifactStatus string

const (
	ArtifactStatusPending    ArtifactStatus = "PENDING"
	ArtifactStatusGenerating ArtifactStatus = "GENERATING"
	ArtifactStatusCompleted  ArtifactStatus = "COMPLETED"
	ArtifactStatusFailed     ArtifactStatus = "FAILED"
)

// ChatMessage is one entry of an artifact's refinement history.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// DecodeChatHistory reads the stored history into tagged records. Unreadable
// or missing data decodes to an empty slice.
func DecodeChatHistory(raw datatypes.JSON) []ChatMessage {
	if len(raw) == 0 {
		return []ChatMessage{}
	}
	var out []ChatMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return []ChatMessage{}
	}
	return out
}

func EncodeChatHistory(history []ChatMessage) datatypes.JSON {
	if history == nil {
		history = []ChatMessage{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}

// Artifact is any generated output keyed by (idea, type). At most one row
// exists per key; all writes are upserts.
type Artifact struct {
	ID     uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	IdeaID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_artifact_idea_type,priority:1" json:"idea_id"`
	Idea   *Idea        `gorm:"constraint:OnDelete:CASCADE;foreignKey:IdeaID;references:ID" json:"idea,omitempty"`
	Type   ArtifactType `gorm:"column:type;not null;uniqueIndex:idx_artifact_idea_type,priority:2" json:"type"`

	Content     string         `gorm:"column:content" json:"content"`
	ContentJSON datatypes.JSON `gorm:"column:content_json;type:jsonb" json:"content_json,omitempty"`

	Status ArtifactStatus `gorm:"column:status;not null;index;default:'PENDING'" json:"status"`

	// Object storage keys for rendered exports; empty until rendered.
	MarkdownKey string `gorm:"column:markdown_key" json:"markdown_key,omitempty"`
	PDFKey      string `gorm:"column:pdf_key" json:"pdf_key,omitempty"`
	DocxKey     string `gorm:"column:docx_key" json:"docx_key,omitempty"`

	ChatHistory datatypes.JSON `gorm:"column:chat_history;type:jsonb" json:"chat_history"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Artifact) TableName() string { return "artifact" }
