package bootstrap

import (
	"context"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/config"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/logger"
)

// Worker is the pipeline's single process role: it runs the job
// dispatcher (three named queues, spec.md §4.6) and the inbox sync
// scheduler (spec.md §4.1) side by side. There is no separate API role —
// this core has no HTTP serving surface (spec.md §1 Non-goals).
type Worker struct {
	deps      *Dependencies
	scheduler *SyncScheduler
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *logger.Logger
}

// NewWorker builds the full dependency graph and the worker that drives
// it. The returned cleanup closes the database pool and Redis client.
func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, cleanup, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		deps:      deps,
		scheduler: NewSyncScheduler(deps.Users, deps.Synchronizer, logger.Default().WithField("component", "sync_scheduler")),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.Default().WithField("component", "worker"),
	}
	return w, cleanup, nil
}

// Start launches the dispatcher's per-queue consumer pools and the sync
// scheduler, then blocks until Stop is called. Both run as long-lived
// background loops of their own; this call only needs to keep the
// process alive.
func (w *Worker) Start() error {
	if err := w.deps.Dispatcher.Start(); err != nil {
		return err
	}
	w.scheduler.Start()
	w.logger.Info("worker started")
	<-w.ctx.Done()
	return nil
}

// Stop drains the dispatcher's worker pools and stops the sync scheduler.
func (w *Worker) Stop() {
	w.scheduler.Stop()
	w.deps.Dispatcher.Stop()
	w.cancel()
	w.logger.Info("worker stopped")
}

// Dependencies exposes the constructed graph, e.g. for a one-off
// evaluation harness run invoked outside the normal job flow.
func (w *Worker) Dependencies() *Dependencies {
	return w.deps
}
