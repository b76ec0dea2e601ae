package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/repos"
	"github.com/ideaforge/ideaforge-backend/internal/services"
	"github.com/ideaforge/ideaforge-backend/internal/sse"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

// Context is the execution handle for one claimed generation run. Handlers
// go through it for progress and payload access; they never touch the run
// row directly.
type Context struct {
	Ctx    context.Context
	DB     *gorm.DB
	Run    *types.GenerationRun
	Repo   repos.GenerationRunRepo
	Notify services.Notifier

	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, run *types.GenerationRun, repo repos.GenerationRunRepo, notify services.Notifier) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Run:    run,
		Repo:   repo,
		Notify: notify,
	}
	c.decodePayload()
	return c
}

// decodePayload is tolerant: an unreadable payload decodes to an empty map
// and the handler decides whether missing fields fail the run.
func (c *Context) decodePayload() {
	c.payload = map[string]any{}
	if c.Run == nil || len(c.Run.Payload) == 0 {
		return
	}
	var m map[string]any
	if err := json.Unmarshal(c.Run.Payload, &m); err != nil {
		return
	}
	c.payload = m
}

func (c *Context) Payload() map[string]any {
	return c.payload
}

func (c *Context) PayloadString(key string) string {
	v, ok := c.payload[key]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.PayloadString(key))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *Context) PayloadStrings(key string) []string {
	raw, err := json.Marshal(c.payload[key])
	if err != nil {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Progress persists a non-terminal stage update with a fresh heartbeat and
// tells the owner's stream about it.
func (c *Context) Progress(stage string, pct int) {
	now := time.Now()
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Run.ID, map[string]interface{}{
		"stage":        stage,
		"progress":     pct,
		"heartbeat_at": now,
	})
	c.Run.Stage = stage
	c.Run.Progress = pct
	c.Run.HeartbeatAt = &now
	c.Notify.Notify(c.Ctx, c.Run.UserID, sse.SSEEventGenerationProgress, map[string]any{
		"run_id":   c.Run.ID.String(),
		"idea_id":  c.Run.IdeaID.String(),
		"job_type": c.Run.JobType,
		"stage":    stage,
		"progress": pct,
	})
}

func (c *Context) fail(stage string, err error) {
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Run.ID, map[string]interface{}{
		"status":        types.RunStatusFailed,
		"stage":         stage,
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
	})
	c.Run.Status = types.RunStatusFailed
	c.Run.Stage = stage
	c.Run.Error = msg
	c.Run.LastErrorAt = &now
	c.Run.LockedAt = nil
	c.Notify.Notify(c.Ctx, c.Run.UserID, sse.SSEEventGenerationFailed, map[string]any{
		"run_id":   c.Run.ID.String(),
		"idea_id":  c.Run.IdeaID.String(),
		"job_type": c.Run.JobType,
		"stage":    stage,
		"error":    msg,
	})
}

func (c *Context) succeed(stage string) {
	now := time.Now()
	_ = c.Repo.UpdateFields(c.Ctx, nil, c.Run.ID, map[string]interface{}{
		"status":       types.RunStatusSucceeded,
		"stage":        stage,
		"progress":     100,
		"error":        "",
		"locked_at":    nil,
		"heartbeat_at": now,
	})
	c.Run.Status = types.RunStatusSucceeded
	c.Run.Stage = stage
	c.Run.Progress = 100
	c.Run.Error = ""
	c.Run.LockedAt = nil
	c.Run.HeartbeatAt = &now
	c.Notify.Notify(c.Ctx, c.Run.UserID, sse.SSEEventGenerationCompleted, map[string]any{
		"run_id":   c.Run.ID.String(),
		"idea_id":  c.Run.IdeaID.String(),
		"job_type": c.Run.JobType,
	})
}
