package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// StageExecutor performs the work of one stage, reporting progress in percent
type StageExecutor interface {
	Execute(ctx context.Context, req StageRequest, report func(percent int)) (StageResult, error)
}

// Timing configures the simulated executors
type Timing struct {
	DocumentDelay time.Duration
	NotaryDelay   time.Duration
	Tick          time.Duration
	ProofStep     int
	MintStep      int
}

// DefaultTiming is the pace used outside tests
func DefaultTiming() Timing {
	return Timing{
		DocumentDelay: 2 * time.Second,
		NotaryDelay:   3 * time.Second,
		Tick:          500 * time.Millisecond,
		ProofStep:     10,
		MintStep:      20,
	}
}

// SimulatedExecutors returns an executor for every stage
func SimulatedExecutors(t Timing) map[Stage]StageExecutor {
	if t.Tick <= 0 {
		t.Tick = time.Millisecond
	}
	if t.ProofStep <= 0 {
		t.ProofStep = 10
	}
	if t.MintStep <= 0 {
		t.MintStep = 20
	}
	return map[Stage]StageExecutor{
		StageDocuments: &delayExecutor{delay: t.DocumentDelay, finish: finishDocuments},
		StageNotary:    &delayExecutor{delay: t.NotaryDelay, finish: finishNotary},
		StageProof:     &progressExecutor{tick: t.Tick, step: t.ProofStep, finish: finishProof},
		StageMint:      &progressExecutor{tick: t.Tick, step: t.MintStep, finish: finishMint},
	}
}

type finishFunc func(req StageRequest) (StageResult, error)

// delayExecutor waits once and completes
type delayExecutor struct {
	delay  time.Duration
	finish finishFunc
}

func (e *delayExecutor) Execute(ctx context.Context, req StageRequest, report func(int)) (StageResult, error) {
	report(0)
	timer := time.NewTimer(e.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return StageResult{}, ctx.Err()
	case <-timer.C:
	}
	report(100)
	return e.finish(req)
}

// progressExecutor advances by step percent every tick
type progressExecutor struct {
	tick   time.Duration
	step   int
	finish finishFunc
}

func (e *progressExecutor) Execute(ctx context.Context, req StageRequest, report func(int)) (StageResult, error) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	progress := 0
	report(progress)
	for progress < 100 {
		select {
		case <-ctx.Done():
			return StageResult{}, ctx.Err()
		case <-ticker.C:
			progress = min(progress+e.step, 100)
			report(progress)
		}
	}
	return e.finish(req)
}

func finishDocuments(req StageRequest) (StageResult, error) {
	docs := make([]string, 0, len(req.Input.Documents))
	for _, d := range req.Input.Documents {
		if d = strings.TrimSpace(d); d != "" {
			docs = append(docs, d)
		}
	}
	return StageResult{
		Reference: fmt.Sprintf("%d document(s) verified", len(docs)),
		Documents: docs,
	}, nil
}

func finishNotary(req StageRequest) (StageResult, error) {
	ref, err := randomString(notaryAlphabet, 9)
	if err != nil {
		return StageResult{}, err
	}
	return StageResult{
		Reference: "DN-" + ref,
		Details:   map[string]string{"appointment": strings.TrimSpace(req.Input.Appointment)},
	}, nil
}

func finishProof(StageRequest) (StageResult, error) {
	ref, err := randomString(base36Alphabet, 9)
	if err != nil {
		return StageResult{}, err
	}
	return StageResult{Reference: "zkp_" + ref}, nil
}

func finishMint(req StageRequest) (StageResult, error) {
	cert, err := NewCertificateID()
	if err != nil {
		return StageResult{}, err
	}
	name := req.Input.NFTName
	if name == "" {
		name = req.Land.Title
	}
	description := req.Input.NFTDescription
	if description == "" {
		description = req.Land.Description
	}
	return StageResult{
		Reference:     cert,
		CertificateID: cert,
		Details: map[string]string{
			"name":        name,
			"description": description,
			"area":        strconv.FormatFloat(req.Land.Area, 'f', -1, 64),
		},
	}, nil
}

const (
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	notaryAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewCertificateID returns nft_ followed by nine random base36 characters
func NewCertificateID() (string, error) {
	s, err := randomString(base36Alphabet, 9)
	if err != nil {
		return "", err
	}
	return "nft_" + s, nil
}

func randomString(alphabet string, n int) (string, error) {
	limit := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}
