package verification

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/repository"
)

// gatedExecutor blocks until released. With ignoreCancel it finishes successfully
// even after its context ends, which exercises the commit-time target check.
type gatedExecutor struct {
	once         sync.Once
	started      chan struct{}
	release      chan struct{}
	ignoreCancel bool
}

func newGatedExecutor(ignoreCancel bool) *gatedExecutor {
	return &gatedExecutor{started: make(chan struct{}), release: make(chan struct{}), ignoreCancel: ignoreCancel}
}

func (g *gatedExecutor) Execute(ctx context.Context, req StageRequest, report func(int)) (StageResult, error) {
	g.once.Do(func() { close(g.started) })
	report(50)
	if g.ignoreCancel {
		<-g.release
		return StageResult{Documents: req.Input.Documents}, nil
	}
	select {
	case <-ctx.Done():
		return StageResult{}, ctx.Err()
	case <-g.release:
		return StageResult{Documents: req.Input.Documents}, nil
	}
}

var alice = &domain.User{ID: "u1", Name: "Alice", Email: "alice@example.com", Role: domain.RoleUser}

func newRunnerFixture(t *testing.T, executors map[Stage]StageExecutor) (*Runner, *repository.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	store, err := repository.NewMemoryStore(ctx, nil, nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.Update(ctx, func(tx domain.Tx) error {
		u := *alice
		require.NoError(t, tx.CreateUser(&u))
		for _, id := range []string{"l1", "l2"} {
			require.NoError(t, tx.CreateLand(&domain.Land{
				ID: id, Title: "Plot " + id, Area: 50, Address: "a", City: "c", State: "s", Country: "x",
				Pincode: "1", OwnerID: alice.ID, Status: domain.LandPending, VerificationStep: 1,
				RegisteredAt: now, UpdatedAt: now,
			}))
		}
		return tx.CreateLand(&domain.Land{
			ID: "foreign", Title: "Not mine", Area: 50, Address: "a", City: "c", State: "s", Country: "x",
			Pincode: "1", OwnerID: "someone-else", Status: domain.LandPending, VerificationStep: 1,
			RegisteredAt: now, UpdatedAt: now,
		})
	}))

	r := NewRunner(store, executors, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r, store
}

func getLand(t *testing.T, store domain.Store, id string) *domain.Land {
	t.Helper()
	var land *domain.Land
	require.NoError(t, store.View(context.Background(), func(tx domain.Tx) error {
		var err error
		land, err = tx.GetLand(id)
		return err
	}))
	return land
}

func waitFor(t *testing.T, r *Runner, task Task) Task {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done, err := r.Wait(ctx, task.ID)
	require.NoError(t, err)
	return done
}

func TestRunnerFullVerification(t *testing.T) {
	r, store := newRunnerFixture(t, SimulatedExecutors(fastTiming()))
	ctx := context.Background()

	_, err := r.Select(ctx, alice, "l1")
	require.NoError(t, err)

	inputs := map[Stage]StageInput{
		StageDocuments: {Documents: []string{"deed.pdf", "survey.pdf"}},
		StageNotary:    {Appointment: "2026-05-01T10:00:00Z"},
		StageProof:     {},
		StageMint:      {},
	}
	for _, stage := range Stages() {
		task, err := r.Start(ctx, alice, stage, inputs[stage])
		require.NoError(t, err, stage.String())
		done := waitFor(t, r, task)
		require.Equal(t, TaskSucceeded, done.State, done.Error)
		assert.Equal(t, 100, done.Progress)
	}

	land := getLand(t, store, "l1")
	assert.Equal(t, domain.LandVerified, land.Status)
	assert.Equal(t, domain.VerificationComplete, land.VerificationStep)
	require.NotNil(t, land.CertificateID)
	assert.Regexp(t, `^nft_[0-9a-z]{9}$`, *land.CertificateID)
	assert.Equal(t, []string{"deed.pdf", "survey.pdf"}, land.Documents)

	_, err = r.Start(ctx, alice, StageMint, StageInput{})
	assert.ErrorIs(t, err, domain.ErrPrecondition)
	_, err = r.Select(ctx, alice, "l1")
	assert.ErrorIs(t, err, domain.ErrPrecondition)
}

func TestRunnerStartPreconditions(t *testing.T) {
	r, _ := newRunnerFixture(t, SimulatedExecutors(fastTiming()))
	ctx := context.Background()

	_, err := r.Start(ctx, alice, StageDocuments, StageInput{Documents: []string{"d"}})
	assert.ErrorIs(t, err, domain.ErrPrecondition, "no target selected")

	_, err = r.Select(ctx, alice, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.Select(ctx, alice, "foreign")
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	_, err = r.Select(ctx, alice, "l1")
	require.NoError(t, err)

	_, err = r.Start(ctx, alice, StageNotary, StageInput{Appointment: "2026-05-01T10:00:00Z"})
	assert.ErrorIs(t, err, domain.ErrPrecondition, "out of order")

	_, err = r.Start(ctx, alice, StageDocuments, StageInput{})
	assert.ErrorIs(t, err, domain.ErrValidation, "no documents")
}

func TestRunnerRejectsSecondTaskWhileRunning(t *testing.T) {
	gate := newGatedExecutor(false)
	r, _ := newRunnerFixture(t, map[Stage]StageExecutor{StageDocuments: gate})
	ctx := context.Background()

	_, err := r.Select(ctx, alice, "l1")
	require.NoError(t, err)
	task, err := r.Start(ctx, alice, StageDocuments, StageInput{Documents: []string{"d"}})
	require.NoError(t, err)
	<-gate.started

	_, err = r.Start(ctx, alice, StageDocuments, StageInput{Documents: []string{"d"}})
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	status := r.Current(alice.ID)
	assert.Equal(t, "l1", status.LandID)
	require.NotNil(t, status.Task)
	assert.Equal(t, TaskRunning, status.Task.State)

	close(gate.release)
	assert.Equal(t, TaskSucceeded, waitFor(t, r, task).State)
}

func TestRunnerSelectCancelsPreviousTarget(t *testing.T) {
	gate := newGatedExecutor(false)
	r, store := newRunnerFixture(t, map[Stage]StageExecutor{StageDocuments: gate})
	ctx := context.Background()

	_, err := r.Select(ctx, alice, "l1")
	require.NoError(t, err)
	task, err := r.Start(ctx, alice, StageDocuments, StageInput{Documents: []string{"d"}})
	require.NoError(t, err)
	<-gate.started

	_, err = r.Select(ctx, alice, "l2")
	require.NoError(t, err)

	done := waitFor(t, r, task)
	assert.Equal(t, TaskCancelled, done.State)
	land := getLand(t, store, "l1")
	assert.Equal(t, 1, land.VerificationStep)
	assert.Empty(t, land.Documents)
}

func TestRunnerDeselectedTaskNeverWrites(t *testing.T) {
	gate := newGatedExecutor(true)
	r, store := newRunnerFixture(t, map[Stage]StageExecutor{StageDocuments: gate})
	ctx := context.Background()

	_, err := r.Select(ctx, alice, "l1")
	require.NoError(t, err)
	task, err := r.Start(ctx, alice, StageDocuments, StageInput{Documents: []string{"d"}})
	require.NoError(t, err)
	<-gate.started

	_, err = r.Select(ctx, alice, "l2")
	require.NoError(t, err)
	close(gate.release)

	done := waitFor(t, r, task)
	assert.Equal(t, TaskCancelled, done.State)
	land := getLand(t, store, "l1")
	assert.Equal(t, 1, land.VerificationStep)
	assert.Equal(t, int64(1), land.Version)
}

// slowStore holds armed writes until released
type slowStore struct {
	*repository.MemoryStore
	armed   atomic.Bool
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *slowStore) Update(ctx context.Context, fn func(tx domain.Tx) error) error {
	if s.armed.Load() {
		s.once.Do(func() { close(s.entered) })
		<-s.release
	}
	return s.MemoryStore.Update(ctx, fn)
}

func returnsWithin(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("call blocked for more than %s", d)
	}
}

func TestRunnerSlowWriteOnlyBlocksItsUser(t *testing.T) {
	_, mem := newRunnerFixture(t, nil)
	store := &slowStore{MemoryStore: mem, entered: make(chan struct{}), release: make(chan struct{})}
	r := NewRunner(store, SimulatedExecutors(fastTiming()), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	ctx := context.Background()

	_, err := r.Select(ctx, alice, "l1")
	require.NoError(t, err)
	store.armed.Store(true)
	task, err := r.Start(ctx, alice, StageDocuments, StageInput{Documents: []string{"deed.pdf"}})
	require.NoError(t, err)
	<-store.entered

	returnsWithin(t, time.Second, func() {
		assert.Equal(t, "l1", r.Current(alice.ID).LandID)
		assert.Equal(t, Status{}, r.Current("u2"))
		_, unsubscribe := r.Subscribe("u2")
		unsubscribe()
		r.Clear("u2")
	})

	reselected := make(chan struct{})
	go func() {
		defer close(reselected)
		_, err := r.Select(ctx, alice, "l2")
		assert.NoError(t, err)
	}()
	select {
	case <-reselected:
		t.Fatal("select returned while a write for the previous target was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	<-reselected

	assert.Equal(t, TaskSucceeded, waitFor(t, r, task).State)
	assert.Equal(t, 2, getLand(t, store, "l1").VerificationStep)
	assert.Equal(t, "l2", r.Current(alice.ID).LandID)
}

func TestRunnerClearCancelsAndClosesSubscribers(t *testing.T) {
	gate := newGatedExecutor(false)
	r, _ := newRunnerFixture(t, map[Stage]StageExecutor{StageDocuments: gate})
	ctx := context.Background()

	events, unsubscribe := r.Subscribe(alice.ID)
	defer unsubscribe()

	_, err := r.Select(ctx, alice, "l1")
	require.NoError(t, err)
	task, err := r.Start(ctx, alice, StageDocuments, StageInput{Documents: []string{"d"}})
	require.NoError(t, err)
	<-gate.started

	r.Clear(alice.ID)
	assert.Equal(t, TaskCancelled, waitFor(t, r, task).State)
	assert.Equal(t, Status{}, r.Current(alice.ID))

	var types []EventType
	for ev := range events {
		types = append(types, ev.Type)
	}
	require.NotEmpty(t, types)
	assert.Equal(t, EventSelected, types[0])
}

func TestRunnerStreamsProgress(t *testing.T) {
	r, _ := newRunnerFixture(t, SimulatedExecutors(fastTiming()))
	ctx := context.Background()

	events, unsubscribe := r.Subscribe(alice.ID)
	defer unsubscribe()

	_, err := r.Select(ctx, alice, "l1")
	require.NoError(t, err)
	task, err := r.Start(ctx, alice, StageDocuments, StageInput{Documents: []string{"d"}})
	require.NoError(t, err)
	waitFor(t, r, task)

	var finished *Event
	timeout := time.After(2 * time.Second)
	for finished == nil {
		select {
		case ev := <-events:
			if ev.Type == EventFinished {
				finished = &ev
			}
		case <-timeout:
			t.Fatal("no finished event")
		}
	}
	require.NotNil(t, finished.Land)
	assert.Equal(t, 2, finished.Land.VerificationStep)
	assert.Equal(t, TaskSucceeded, finished.Task.State)
}

func TestRunnerPrune(t *testing.T) {
	r, _ := newRunnerFixture(t, SimulatedExecutors(fastTiming()))
	ctx := context.Background()

	_, err := r.Select(ctx, alice, "l1")
	require.NoError(t, err)
	task, err := r.Start(ctx, alice, StageDocuments, StageInput{Documents: []string{"d"}})
	require.NoError(t, err)
	waitFor(t, r, task)

	assert.Equal(t, 0, r.Prune(time.Hour))
	assert.Equal(t, 1, r.Prune(-time.Minute))

	_, err = r.Wait(ctx, task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
