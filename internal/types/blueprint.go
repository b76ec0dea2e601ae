package types

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// BlueprintPlan is the kanban diagram's structured content, the input to
// project materialization. Features reference parents by name, milestones
// and issues reference features by name; resolution happens at
// materialization time.
type BlueprintPlan struct {
	Features   []PlanFeature   `json:"features"`
	Milestones []PlanMilestone `json:"milestones"`
	Issues     []PlanIssue     `json:"issues"`
}

type PlanFeature struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parent      string `json:"parent,omitempty"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	NodeID      string `json:"node_id,omitempty"`
}

type PlanMilestone struct {
	Feature     string `json:"feature"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type PlanIssue struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        string         `json:"type"`
	Priority    string         `json:"priority"`
	Feature     string         `json:"feature,omitempty"`
	Milestone   string         `json:"milestone,omitempty"`
	SubIssues   []PlanSubIssue `json:"sub_issues,omitempty"`
}

type PlanSubIssue struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// DecodeBlueprintPlan reads stored plan JSON into tagged records. Unreadable
// data decodes to an empty plan; per-item problems are handled downstream.
func DecodeBlueprintPlan(raw datatypes.JSON) *BlueprintPlan {
	plan := &BlueprintPlan{}
	if len(raw) == 0 {
		return plan
	}
	if err := json.Unmarshal(raw, plan); err != nil {
		return &BlueprintPlan{}
	}
	return plan
}

// UserFlow is the user flow diagram's structured content.
type UserFlow struct {
	Nodes []FlowNode `json:"nodes"`
	Edges []FlowEdge `json:"edges"`
}

type FlowNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

type FlowEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}
