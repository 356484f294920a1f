package scheduler

import (
	"context"
	"log/slog"
	"time"

	"mediascore/internal/config"
	"mediascore/internal/pipeline"
)

// Scheduler handles periodic tasks
type Scheduler struct {
	worker   *pipeline.Worker
	config   *config.PipelineConfig
	stopChan chan bool
}

// NewScheduler creates a new scheduler
func NewScheduler(worker *pipeline.Worker, cfg *config.PipelineConfig) *Scheduler {
	return &Scheduler{
		worker:   worker,
		config:   cfg,
		stopChan: make(chan bool),
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler",
		"worker_enabled", s.config.EnableWorker,
		"interval", s.config.WorkerInterval)

	if s.config.EnableWorker {
		go s.scheduleIntervalTask(s.config.WorkerInterval, "process_queued_reports", s.processQueuedReports)
	}

	slog.Info("Scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	slog.Info("Stopping scheduler")
	close(s.stopChan)
}

// scheduleIntervalTask runs a task at regular intervals
func (s *Scheduler) scheduleIntervalTask(interval time.Duration, taskName string, task func()) {
	slog.Info("Starting interval task", "task", taskName, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	slog.Info("Running interval task", "task", taskName)
	task()

	for {
		select {
		case <-ticker.C:
			slog.Info("Running interval task", "task", taskName)
			task()
		case <-s.stopChan:
			return
		}
	}
}

// processQueuedReports drains the report queue once
func (s *Scheduler) processQueuedReports() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	n, err := s.worker.ProcessQueued(ctx)
	if err != nil {
		slog.Error("Queued report processing failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Queued report processing completed", "processed", n)
	}
}
