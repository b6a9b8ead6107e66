package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hylla/mauflow/internal/clock"
	"github.com/hylla/mauflow/internal/domain"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *clock.FakeClock, *[]time.Duration) {
	t.Helper()
	fc := clock.Fake(testNow)
	c := NewCoordinator(DefaultCoordinatorConfig(), fc, sequentialIDs("op"), nil)
	waits := []time.Duration{}
	c.SetWaiter(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	})
	return c, fc, &waits
}

func appendInt(v int) func([]int) []int {
	return func(in []int) []int {
		out := append([]int(nil), in...)
		return append(out, v)
	}
}

func TestRunMutationOptimisticSuccess(t *testing.T) {
	c, _, waits := newTestCoordinator(t)
	state := NewOptimisticState([]int{1})
	var seen []int
	outcome, err := RunMutation(context.Background(), c, state, Mutation[[]int]{
		Type:  OperationAdd,
		Apply: appendInt(2),
		Persist: func(context.Context) error {
			seen = state.Get()
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RunMutation() error = %v", err)
	}
	if !outcome.Optimistic || outcome.Attempts != 1 {
		t.Fatalf("unexpected outcome %#v", outcome)
	}
	if len(seen) != 2 {
		t.Fatalf("expected state applied before persist, saw %v", seen)
	}
	if got := state.Get(); len(got) != 2 || got[1] != 2 {
		t.Fatalf("unexpected state %v", got)
	}
	if len(*waits) != 0 || len(c.Pending()) != 0 {
		t.Fatalf("expected no retries, waits=%v pending=%v", *waits, c.Pending())
	}
}

func TestRunMutationAlwaysFailingAttemptsFourTimes(t *testing.T) {
	c, _, waits := newTestCoordinator(t)
	state := NewOptimisticState([]int{1})
	calls := 0
	outcome, err := RunMutation(context.Background(), c, state, Mutation[[]int]{
		Type:      OperationAdd,
		TargetIDs: []string{"x"},
		Apply:     appendInt(2),
		Persist: func(context.Context) error {
			calls++
			return domain.NewCollaborationError(domain.KindStorage, "write failed", errBackendDown)
		},
	})
	ce := wantKind(t, err, domain.KindStorage)
	if ce.Code != "retries_exhausted" || !errors.Is(err, errBackendDown) {
		t.Fatalf("unexpected terminal error %#v", ce)
	}
	if calls != 4 || outcome.Attempts != 4 {
		t.Fatalf("expected 4 attempts, got calls=%d outcome=%#v", calls, outcome)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	if len(*waits) != len(want) {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
	for i := range want {
		if (*waits)[i] != want[i] {
			t.Fatalf("waits = %v, want %v", *waits, want)
		}
	}
	if got := state.Get(); len(got) != 1 {
		t.Fatalf("expected rollback to snapshot, got %v", got)
	}
	pending := c.Pending()
	if len(pending) != 1 || pending[0].Attempts != 4 || pending[0].Type != OperationAdd {
		t.Fatalf("unexpected pending operations %#v", pending)
	}
}

func TestRunMutationRetriedPathAppliesAfterCommit(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	state := NewOptimisticState([]int{1})
	calls := 0
	var duringRetry []int
	outcome, err := RunMutation(context.Background(), c, state, Mutation[[]int]{
		Type:  OperationEdit,
		Apply: appendInt(2),
		Persist: func(context.Context) error {
			calls++
			if calls == 1 {
				return errBackendDown
			}
			duringRetry = state.Get()
			return nil
		},
	})
	if err != nil {
		t.Fatalf("RunMutation() error = %v", err)
	}
	if outcome.Optimistic || outcome.Attempts != 2 {
		t.Fatalf("unexpected outcome %#v", outcome)
	}
	if len(duringRetry) != 1 {
		t.Fatalf("expected retried write to run before in-memory apply, saw %v", duringRetry)
	}
	if got := state.Get(); len(got) != 2 {
		t.Fatalf("expected state applied after commit, got %v", got)
	}
	if len(c.Pending()) != 0 {
		t.Fatalf("expected pending operation cleared, got %#v", c.Pending())
	}
}

func TestRunMutationStopsWhenContextEnds(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	c.SetWaiter(func(ctx context.Context, _ time.Duration) error {
		return context.DeadlineExceeded
	})
	state := NewOptimisticState(0)
	outcome, err := RunMutation(context.Background(), c, state, Mutation[int]{
		Type:    OperationDelete,
		Apply:   func(v int) int { return v + 1 },
		Persist: func(context.Context) error { return errBackendDown },
	})
	wantKind(t, err, domain.KindTimeout)
	if outcome.Attempts != 1 {
		t.Fatalf("expected a single attempt, got %#v", outcome)
	}
}

func TestCoordinatorSweepsStalePendingOperations(t *testing.T) {
	c, fc, _ := newTestCoordinator(t)
	state := NewOptimisticState(0)
	_, _ = RunMutation(context.Background(), c, state, Mutation[int]{
		Type:    OperationAdd,
		Apply:   func(v int) int { return v + 1 },
		Persist: func(context.Context) error { return errBackendDown },
	})
	if len(c.Pending()) != 1 {
		t.Fatalf("expected one pending operation, got %#v", c.Pending())
	}

	c.Start()
	c.Start()
	if got := fc.PendingCount(); got != 1 {
		t.Fatalf("expected one sweep timer, got %d", got)
	}
	fc.Advance(30 * time.Second)
	if len(c.Pending()) != 1 {
		t.Fatal("expected operation younger than the TTL to survive the first sweep")
	}
	fc.Advance(60 * time.Second)
	if len(c.Pending()) != 0 {
		t.Fatalf("expected stale operation pruned, got %#v", c.Pending())
	}
	c.Stop()
	if got := fc.PendingCount(); got != 0 {
		t.Fatalf("expected sweep timer stopped, got %d", got)
	}
}
