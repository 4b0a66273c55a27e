package verification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct{ calls int }

func (s *stubExecutor) Execute(_ context.Context, req StageRequest, report func(int)) (StageResult, error) {
	s.calls++
	report(100)
	return StageResult{Reference: "ok"}, nil
}

func TestChaosExecutor(t *testing.T) {
	inner := &stubExecutor{}
	c := NewChaosExecutor(inner, 0.5, nil)
	noop := func(int) {}

	c.roll = func() float64 { return 0.9 }
	res, err := c.Execute(context.Background(), StageRequest{Stage: StageProof}, noop)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Reference)

	c.roll = func() float64 { return 0.1 }
	_, err = c.Execute(context.Background(), StageRequest{Stage: StageProof}, noop)
	assert.ErrorIs(t, err, ErrInjectedFault)
	assert.Equal(t, 2, inner.calls)
}

func TestChaosProbabilityIsClamped(t *testing.T) {
	assert.Equal(t, 1.0, NewChaosExecutor(&stubExecutor{}, 7, nil).probability)
	assert.Equal(t, 0.0, NewChaosExecutor(&stubExecutor{}, -1, nil).probability)
}

func TestWithChaosWrapsEveryStage(t *testing.T) {
	wrapped := WithChaos(SimulatedExecutors(Timing{}), 0, nil)
	require.Len(t, wrapped, 4)
	for _, stage := range Stages() {
		assert.IsType(t, &ChaosExecutor{}, wrapped[stage])
	}
}
