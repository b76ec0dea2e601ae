package jobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/repos"
	"github.com/ideaforge/ideaforge-backend/internal/services"
)

const (
	maxAttempts  = 5
	staleRunning = 2 * time.Minute

	heartbeatEvery = 30 * time.Second
)

// Worker polls for runnable generation runs and dispatches them through the
// registry. Claims use FOR UPDATE SKIP LOCKED so multiple workers and
// multiple instances never double-run a row.
type Worker struct {
	db          *gorm.DB
	log         *logger.Logger
	repo        repos.GenerationRunRepo
	registry    *Registry
	notify      services.Notifier
	concurrency int
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.GenerationRunRepo, registry *Registry, notify services.Notifier, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		db:          db,
		log:         baseLog.With("component", "JobWorker"),
		repo:        repo,
		registry:    registry,
		notify:      notify,
		concurrency: concurrency,
	}
}

func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		go w.loop(ctx)
	}
	w.log.Info("job worker started", "concurrency", w.concurrency)
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run, err := w.repo.ClaimNextRunnable(ctx, nil, maxAttempts, staleRunning)
			if err != nil {
				w.log.Warn("failed to claim runnable generation run", "error", err)
				continue
			}
			if run == nil {
				continue
			}
			w.execute(ctx, NewContext(ctx, w.db, run, w.repo, w.notify))
		}
	}
}

func (w *Worker) execute(ctx context.Context, jc *Context) {
	h, ok := w.registry.Get(jc.Run.JobType)
	if !ok {
		w.log.Warn("no handler registered", "job_type", jc.Run.JobType, "run_id", jc.Run.ID)
		jc.fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", jc.Run.JobType))
		return
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go w.heartbeat(hbCtx, jc)
	defer stopHeartbeat()

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("job handler panic", "run_id", jc.Run.ID, "job_type", jc.Run.JobType, "panic", r)
				runErr = fmt.Errorf("handler panic: %v", r)
			}
		}()
		runErr = h.Run(jc)
	}()

	if runErr != nil {
		w.log.Warn("generation run failed", "run_id", jc.Run.ID, "job_type", jc.Run.JobType, "error", runErr)
		jc.fail(jc.Run.Stage, runErr)
		return
	}
	jc.succeed("done")
}

// heartbeat keeps the claimed row visibly alive; a crashed worker stops
// beating and the stale-running claim path recovers the run.
func (w *Worker) heartbeat(ctx context.Context, jc *Context) {
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.repo.Heartbeat(ctx, nil, jc.Run.ID); err != nil {
				w.log.Warn("heartbeat failed", "run_id", jc.Run.ID, "error", err)
			}
		}
	}
}
