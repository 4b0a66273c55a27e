package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastTiming() Timing {
	return Timing{Tick: time.Millisecond}
}

func TestProgressExecutorReportsToCompletion(t *testing.T) {
	exec := SimulatedExecutors(fastTiming())[StageProof]
	var reports []int
	res, err := exec.Execute(context.Background(), StageRequest{Land: *pendingLand(), Stage: StageProof}, func(p int) {
		reports = append(reports, p)
	})
	require.NoError(t, err)
	assert.Regexp(t, `^zkp_[0-9a-z]{9}$`, res.Reference)
	assert.Equal(t, []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, reports)
}

func TestMintExecutorDefaultsNameFromLand(t *testing.T) {
	exec := SimulatedExecutors(fastTiming())[StageMint]
	res, err := exec.Execute(context.Background(), StageRequest{Land: *pendingLand(), Stage: StageMint}, func(int) {})
	require.NoError(t, err)
	assert.Regexp(t, `^nft_[0-9a-z]{9}$`, res.CertificateID)
	assert.Equal(t, "Plot", res.Details["name"])
}

func TestNotaryExecutorReference(t *testing.T) {
	exec := SimulatedExecutors(fastTiming())[StageNotary]
	res, err := exec.Execute(context.Background(), StageRequest{
		Land:  *pendingLand(),
		Stage: StageNotary,
		Input: StageInput{Appointment: "2026-05-01T10:00:00Z"},
	}, func(int) {})
	require.NoError(t, err)
	assert.Regexp(t, `^DN-[0-9A-Z]{9}$`, res.Reference)
	assert.Equal(t, "2026-05-01T10:00:00Z", res.Details["appointment"])
}

func TestDelayExecutorHonoursCancellation(t *testing.T) {
	exec := SimulatedExecutors(Timing{DocumentDelay: time.Hour})[StageDocuments]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := exec.Execute(ctx, StageRequest{Land: *pendingLand()}, func(int) {})
	assert.ErrorIs(t, err, context.Canceled)
}
