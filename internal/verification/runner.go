package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/observability/metrics"
	"github.com/aryan0dhankhar/landledger/internal/observability/tracing"
)

// TaskState is the lifecycle state of a stage run
type TaskState string

const (
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// Task is a snapshot of one stage run
type Task struct {
	ID         string            `json:"id"`
	LandID     string            `json:"landId"`
	UserID     string            `json:"-"`
	Stage      Stage             `json:"stage"`
	State      TaskState         `json:"state"`
	Progress   int               `json:"progress"`
	Reference  string            `json:"reference,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt *time.Time        `json:"finishedAt,omitempty"`
}

// Done reports whether the task reached a final state
func (t Task) Done() bool {
	return t.State != TaskRunning
}

// EventType classifies a runner event
type EventType string

const (
	EventSelected EventType = "selected"
	EventProgress EventType = "progress"
	EventFinished EventType = "finished"
)

// Event is pushed to subscribers of a user's verification activity
type Event struct {
	Type EventType    `json:"type"`
	Task *Task        `json:"task,omitempty"`
	Land *domain.Land `json:"land,omitempty"`
}

// Status is the user's current target and its latest task
type Status struct {
	LandID string `json:"landId"`
	Task   *Task  `json:"task"`
}

var errDeselected = errors.New("verification target was deselected")

const subscriberBuffer = 32

// Runner schedules stage executors per user. Each user has at most one target
// parcel; changing or clearing the target cancels the work started for it, and a
// cancelled run never writes to the store.
type Runner struct {
	store     domain.Store
	executors map[Stage]StageExecutor
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	actors map[string]*actorState
	tasks  map[string]*taskEntry

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

type actorState struct {
	// commitMu is held across a stage's store write. It is taken before r.mu.
	commitMu sync.Mutex

	landID  string
	ctx     context.Context
	cancel  context.CancelFunc
	current *taskEntry
	subs    map[chan Event]struct{}
}

type taskEntry struct {
	task Task
	done chan struct{}
}

func (e *taskEntry) snapshot() Task {
	t := e.task
	t.Details = maps.Clone(e.task.Details)
	if e.task.FinishedAt != nil {
		at := *e.task.FinishedAt
		t.FinishedAt = &at
	}
	return t
}

// NewRunner creates a runner over store using the given executors
func NewRunner(store domain.Store, executors map[Stage]StageExecutor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Runner{
		store:     store,
		executors: executors,
		logger:    logger,
		now:       time.Now,
		actors:    make(map[string]*actorState),
		tasks:     make(map[string]*taskEntry),
		baseCtx:   ctx,
		stop:      stop,
	}
}

func (r *Runner) actorLocked(userID string) *actorState {
	st, ok := r.actors[userID]
	if !ok {
		st = &actorState{subs: make(map[chan Event]struct{})}
		r.actors[userID] = st
	}
	return st
}

// lockActor returns the user's state with both its commit lock and r.mu held,
// so no store write for that user is in flight.
func (r *Runner) lockActor(userID string) *actorState {
	for {
		r.mu.Lock()
		st := r.actorLocked(userID)
		r.mu.Unlock()

		st.commitMu.Lock()
		r.mu.Lock()
		if r.actors[userID] == st {
			return st
		}
		r.mu.Unlock()
		st.commitMu.Unlock()
	}
}

func (r *Runner) unlockActor(st *actorState) {
	r.mu.Unlock()
	st.commitMu.Unlock()
}

func (r *Runner) resetTargetLocked(st *actorState) {
	if st.cancel != nil {
		st.cancel()
	}
	st.landID = ""
	st.ctx = nil
	st.cancel = nil
	st.current = nil
}

func (r *Runner) publishLocked(st *actorState, ev Event) {
	for ch := range st.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Select makes landID the actor's verification target. Work still running for a
// previous target is cancelled. Re-selecting the current target keeps its task.
func (r *Runner) Select(ctx context.Context, actor *domain.User, landID string) (*domain.Land, error) {
	var land *domain.Land
	err := r.store.View(ctx, func(tx domain.Tx) error {
		l, err := tx.GetLand(landID)
		land = l
		return err
	})
	if err != nil {
		return nil, domain.FromStore(err, "land")
	}
	if land.OwnerID != actor.ID {
		return nil, domain.Precondition("you can only verify your own land")
	}
	if land.IsVerified() {
		return nil, domain.Precondition("land is already verified")
	}

	st := r.lockActor(actor.ID)
	defer r.unlockActor(st)

	if st.landID == landID && st.ctx != nil && st.ctx.Err() == nil {
		return land, nil
	}
	r.resetTargetLocked(st)
	st.landID = landID
	st.ctx, st.cancel = context.WithCancel(r.baseCtx)
	r.publishLocked(st, Event{Type: EventSelected, Land: land})

	r.logger.Info("verification target selected",
		slog.String("user_id", actor.ID),
		slog.String("land_id", landID),
		slog.Int("step", land.VerificationStep),
	)
	return land, nil
}

// Start launches stage for the actor's target and returns immediately
func (r *Runner) Start(ctx context.Context, actor *domain.User, stage Stage, input StageInput) (Task, error) {
	r.mu.Lock()
	st := r.actors[actor.ID]
	if st == nil || st.landID == "" {
		r.mu.Unlock()
		return Task{}, domain.Precondition("select a land to verify first")
	}
	landID := st.landID
	if st.current != nil && !st.current.task.Done() {
		r.mu.Unlock()
		return Task{}, domain.Precondition("a verification stage is already running for this land")
	}
	r.mu.Unlock()

	var land *domain.Land
	err := r.store.View(ctx, func(tx domain.Tx) error {
		l, err := tx.GetLand(landID)
		land = l
		return err
	})
	if err != nil {
		return Task{}, domain.FromStore(err, "land")
	}
	if err := CanStart(land, stage); err != nil {
		return Task{}, err
	}
	if err := ValidateInput(stage, input); err != nil {
		return Task{}, err
	}
	exec, ok := r.executors[stage]
	if !ok {
		return Task{}, fmt.Errorf("no executor registered for stage %s", stage)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.actors[actor.ID] != st || st.landID != landID || st.ctx == nil {
		return Task{}, domain.Precondition("verification target changed, select the land again")
	}
	if st.current != nil && !st.current.task.Done() {
		return Task{}, domain.Precondition("a verification stage is already running for this land")
	}

	entry := &taskEntry{
		task: Task{
			ID:        uuid.NewString(),
			LandID:    landID,
			UserID:    actor.ID,
			Stage:     stage,
			State:     TaskRunning,
			StartedAt: r.now(),
		},
		done: make(chan struct{}),
	}
	st.current = entry
	r.tasks[entry.task.ID] = entry

	req := StageRequest{Land: land.Clone(), Stage: stage, Input: input}
	r.wg.Add(1)
	metrics.IncrementActiveVerifications()
	go r.run(st.ctx, actor.ID, st, entry, exec, req)

	return entry.snapshot(), nil
}

func (r *Runner) run(ctx context.Context, userID string, st *actorState, entry *taskEntry, exec StageExecutor, req StageRequest) {
	defer r.wg.Done()
	defer metrics.DecrementActiveVerifications()

	ctx, span := tracing.Tracer().Start(ctx, "verification.stage", trace.WithAttributes(
		attribute.String("land.id", req.Land.ID),
		attribute.String("verification.stage", req.Stage.String()),
	))
	defer span.End()

	started := r.now()
	result, err := exec.Execute(ctx, req, func(percent int) {
		r.progress(st, entry, percent)
	})

	var land *domain.Land
	if err == nil {
		land, err = r.commit(ctx, userID, st, entry, req.Stage, result)
	}

	state := r.finish(st, entry, result, land, err)
	metrics.ObserveVerificationStage(req.Stage.String(), string(state), r.now().Sub(started))

	logger := r.logger.With(
		slog.String("task_id", entry.task.ID),
		slog.String("land_id", req.Land.ID),
		slog.String("stage", req.Stage.String()),
		slog.String("state", string(state)),
	)
	switch state {
	case TaskFailed:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("verification stage failed", slog.String("error", err.Error()))
	case TaskCancelled:
		logger.Info("verification stage cancelled")
	default:
		logger.Info("verification stage completed")
	}
}

func (r *Runner) progress(st *actorState, entry *taskEntry, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.task.Done() {
		return
	}
	entry.task.Progress = max(0, min(percent, 100))
	t := entry.snapshot()
	r.publishLocked(st, Event{Type: EventProgress, Task: &t})
}

// commit applies the finished stage if the land is still the user's target.
// Only the user's commit lock is held across the store update; Select and Clear
// take it too, so they cannot change the target between the check and the write.
func (r *Runner) commit(ctx context.Context, userID string, st *actorState, entry *taskEntry, stage Stage, result StageResult) (*domain.Land, error) {
	st.commitMu.Lock()
	defer st.commitMu.Unlock()

	r.mu.Lock()
	live := r.actors[userID] == st && st.current == entry && st.ctx != nil && st.ctx.Err() == nil
	r.mu.Unlock()
	if !live {
		return nil, errDeselected
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	var updated *domain.Land
	err := r.store.Update(writeCtx, func(tx domain.Tx) error {
		land, err := tx.GetLand(entry.task.LandID)
		if err != nil {
			return err
		}
		if land.OwnerID != userID {
			return domain.Precondition("land changed owner during verification")
		}
		if err := Apply(land, stage, result, r.now().UTC()); err != nil {
			return err
		}
		if err := tx.UpdateLand(land); err != nil {
			return err
		}
		updated = land
		return nil
	})
	if err != nil {
		return nil, domain.FromStore(err, "land")
	}
	return updated, nil
}

func (r *Runner) finish(st *actorState, entry *taskEntry, result StageResult, land *domain.Land, err error) TaskState {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	t := &entry.task
	t.FinishedAt = &now
	switch {
	case err == nil:
		t.State = TaskSucceeded
		t.Progress = 100
		t.Reference = result.Reference
		t.Details = result.Details
	case errors.Is(err, errDeselected) || errors.Is(err, context.Canceled):
		t.State = TaskCancelled
		t.Error = "verification target changed"
	default:
		t.State = TaskFailed
		t.Error = "verification failed"
		if domain.KindOf(err) != nil {
			t.Error = err.Error()
		}
	}
	close(entry.done)

	snap := entry.snapshot()
	r.publishLocked(st, Event{Type: EventFinished, Task: &snap, Land: land})
	return t.State
}

// Current returns the actor's target and latest task
func (r *Runner) Current(userID string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.actors[userID]
	if st == nil {
		return Status{}
	}
	status := Status{LandID: st.landID}
	if st.current != nil {
		t := st.current.snapshot()
		status.Task = &t
	}
	return status
}

// Subscribe streams the user's verification events until the returned func is
// called or the user's state is cleared. Slow readers miss events rather than
// block the runner.
func (r *Runner) Subscribe(userID string) (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.actorLocked(userID)
	ch := make(chan Event, subscriberBuffer)
	st.subs[ch] = struct{}{}

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur := r.actors[userID]; cur != nil {
			if _, ok := cur.subs[ch]; ok {
				delete(cur.subs, ch)
				close(ch)
			}
		}
	}
	return ch, unsubscribe
}

// Clear cancels the user's target and drops their subscribers
func (r *Runner) Clear(userID string) {
	st := r.lockActor(userID)
	defer r.unlockActor(st)

	r.resetTargetLocked(st)
	for ch := range st.subs {
		close(ch)
	}
	st.subs = make(map[chan Event]struct{})
	delete(r.actors, userID)
}

// Wait blocks until the task finishes or ctx ends
func (r *Runner) Wait(ctx context.Context, taskID string) (Task, error) {
	r.mu.Lock()
	entry := r.tasks[taskID]
	r.mu.Unlock()
	if entry == nil {
		return Task{}, domain.NotFound("task not found")
	}

	select {
	case <-entry.done:
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return entry.snapshot(), nil
}

// Prune forgets tasks that finished more than maxAge ago and idle users
func (r *Runner) Prune(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	pruned := 0
	for id, entry := range r.tasks {
		if entry.task.FinishedAt != nil && entry.task.FinishedAt.Before(cutoff) {
			delete(r.tasks, id)
			pruned++
		}
	}
	for userID, st := range r.actors {
		if st.landID == "" && len(st.subs) == 0 {
			delete(r.actors, userID)
		}
	}
	return pruned
}

// Shutdown cancels all running tasks and waits for them to exit
func (r *Runner) Shutdown(ctx context.Context) error {
	r.stop()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
