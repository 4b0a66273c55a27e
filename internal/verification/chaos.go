package verification

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"

	"github.com/aryan0dhankhar/landledger/internal/observability/metrics"
)

// ErrInjectedFault is returned by a ChaosExecutor when it decides to fail a stage
var ErrInjectedFault = errors.New("injected verification fault")

// ChaosExecutor wraps a stage executor and fails a share of runs after the inner
// executor finished, so the runner's failure path and retries get exercised.
type ChaosExecutor struct {
	inner       StageExecutor
	probability float64
	logger      *slog.Logger
	roll        func() float64
}

// NewChaosExecutor fails roughly probability of the runs of inner
func NewChaosExecutor(inner StageExecutor, probability float64, logger *slog.Logger) *ChaosExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	probability = max(0, min(probability, 1))
	return &ChaosExecutor{inner: inner, probability: probability, logger: logger, roll: rand.Float64}
}

func (c *ChaosExecutor) Execute(ctx context.Context, req StageRequest, report func(int)) (StageResult, error) {
	result, err := c.inner.Execute(ctx, req, report)
	if err != nil {
		return result, err
	}
	if c.roll() < c.probability {
		c.logger.Warn("injecting verification fault",
			slog.String("land_id", req.Land.ID),
			slog.String("stage", req.Stage.String()),
		)
		metrics.ObserveFaultInjection(req.Stage.String())
		return StageResult{}, ErrInjectedFault
	}
	return result, nil
}

// WithChaos wraps every executor in executors
func WithChaos(executors map[Stage]StageExecutor, probability float64, logger *slog.Logger) map[Stage]StageExecutor {
	out := make(map[Stage]StageExecutor, len(executors))
	for stage, exec := range executors {
		out[stage] = NewChaosExecutor(exec, probability, logger)
	}
	return out
}
