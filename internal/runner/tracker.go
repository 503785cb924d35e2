package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/profile-sync/internal/model"
)

// Outcome is the terminal result of a run.
type Outcome struct {
	Result *model.RunResult
	Err    error
}

// Snapshot is a point-in-time view of a tracked run.
type Snapshot struct {
	ID        string
	Kind      model.RunKind
	Status    model.RunStatus
	Result    *model.RunResult
	Err       error
	StartedAt time.Time
}

// Work is the body of a background run.
type Work func(ctx context.Context) (*model.RunResult, error)

// FinishFunc observes a run's outcome before it becomes visible to Poll.
type FinishFunc func(ctx context.Context, id string, out Outcome)

type entry struct {
	kind     model.RunKind
	started  time.Time
	finished time.Time    // zero while running
	ch       chan Outcome // single slot, written once
	done     *Outcome
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithRetention drops finished runs once they have been finished for longer
// than d. Zero keeps them for the life of the Tracker.
func WithRetention(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.retention = d }
}

// Tracker runs work on background goroutines and exposes each run's
// terminal outcome through a non-blocking Poll. Runs cannot be cancelled.
type Tracker struct {
	mu        sync.Mutex
	runs      map[string]*entry
	onFinish  FinishFunc
	retention time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewTracker creates a Tracker. onFinish may be nil.
func NewTracker(onFinish FinishFunc, opts ...TrackerOption) *Tracker {
	t := &Tracker{runs: make(map[string]*entry), onFinish: onFinish, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Go starts work under id. The run is detached from ctx's cancellation so
// an HTTP request finishing does not abort it.
func (t *Tracker) Go(ctx context.Context, id string, kind model.RunKind, work Work) error {
	t.mu.Lock()
	t.pruneLocked()
	if _, ok := t.runs[id]; ok {
		t.mu.Unlock()
		return eris.Errorf("runner: run %s already exists", id)
	}
	e := &entry{kind: kind, started: t.now().UTC(), ch: make(chan Outcome, 1)}
	t.runs[id] = e
	t.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		out := execute(runCtx, id, work)
		if t.onFinish != nil {
			t.onFinish(runCtx, id, out)
		}
		e.ch <- out

		t.mu.Lock()
		e.finished = t.now()
		t.mu.Unlock()
	}()
	return nil
}

// pruneLocked removes runs that finished more than the retention period ago.
// Callers hold t.mu.
func (t *Tracker) pruneLocked() {
	if t.retention <= 0 {
		return
	}
	cutoff := t.now().Add(-t.retention)
	for id, e := range t.runs {
		if !e.finished.IsZero() && e.finished.Before(cutoff) {
			delete(t.runs, id)
		}
	}
}

func execute(ctx context.Context, id string, work Work) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("runner: run panicked", zap.String("run_id", id), zap.Any("panic", r))
			out = Outcome{Err: eris.New(fmt.Sprintf("runner: run panicked: %v", r))}
		}
	}()
	res, err := work(ctx)
	return Outcome{Result: res, Err: err}
}

// Poll reports the state of run id without blocking. A run with no result
// yet reports RunStatusRunning. The second return is false for unknown ids
// and for runs already dropped by the retention period.
func (t *Tracker) Poll(id string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pruneLocked()
	e, ok := t.runs[id]
	if !ok {
		return Snapshot{}, false
	}
	if e.done == nil {
		select {
		case out := <-e.ch:
			e.done = &out
		default:
		}
	}

	snap := Snapshot{ID: id, Kind: e.kind, Status: model.RunStatusRunning, StartedAt: e.started}
	if e.done != nil {
		snap.Result = e.done.Result
		snap.Err = e.done.Err
		snap.Status = model.RunStatusSuccess
		if e.done.Err != nil {
			snap.Status = model.RunStatusError
		}
	}
	return snap, true
}

// Wait blocks until every started run has finished. Used on shutdown and in
// tests.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
