package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/landledger/internal/observability/metrics"
)

// TaskPruner drops finished verification tasks older than maxAge
type TaskPruner interface {
	Prune(maxAge time.Duration) int
}

// SessionPruner drops expired sessions from an in-process registry
type SessionPruner interface {
	Prune(ctx context.Context) (int, error)
}

// Janitor periodically removes state that outlived its use: finished verification
// tasks nobody polls anymore and expired in-memory sessions.
type Janitor struct {
	tasks    TaskPruner
	sessions SessionPruner
	logger   *slog.Logger
	interval time.Duration
	taskTTL  time.Duration
}

// NewJanitor creates a new janitor. sessions may be nil when sessions live in Redis,
// which expires keys on its own.
func NewJanitor(tasks TaskPruner, sessions SessionPruner, logger *slog.Logger, interval, taskTTL time.Duration) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if taskTTL <= 0 {
		taskTTL = 30 * time.Minute
	}
	return &Janitor{
		tasks:    tasks,
		sessions: sessions,
		logger:   logger,
		interval: interval,
		taskTTL:  taskTTL,
	}
}

// Start runs the janitor loop until ctx is cancelled
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("janitor started", slog.Duration("interval", j.interval))

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cleanup pass
func (j *Janitor) RunOnce(ctx context.Context) {
	if j.tasks != nil {
		n := j.tasks.Prune(j.taskTTL)
		metrics.ObserveJanitor("verification_task", n)
		if n > 0 {
			j.logger.Debug("pruned finished verification tasks", slog.Int("count", n))
		}
	}

	if j.sessions != nil {
		n, err := j.sessions.Prune(ctx)
		if err != nil {
			j.logger.Error("failed to prune sessions", slog.String("error", err.Error()))
			return
		}
		metrics.ObserveJanitor("session", n)
		if n > 0 {
			j.logger.Debug("pruned expired sessions", slog.Int("count", n))
		}
	}
}
