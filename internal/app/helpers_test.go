package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hylla/mauflow/internal/clock"
	"github.com/hylla/mauflow/internal/domain"
)

var errBackendDown = errors.New("backend down")

// fakeKV is an in-memory KeyValueStore with per-key failure injection.
type fakeKV struct {
	mu       sync.Mutex
	data     map[string][]byte
	failSet  map[string]bool
	setCalls map[string]int
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		data:     map[string][]byte{},
		failSet:  map[string]bool{},
		setCalls: map[string]int{},
	}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls[key]++
	if f.failSet[key] {
		return errBackendDown
	}
	f.data[key] = append([]byte(nil), value...)
	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeKV) setFailing(key string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSet[key] = failing
}

func (f *fakeKV) sets(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCalls[key]
}

func (f *fakeKV) put(key, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = []byte(raw)
}

// testNow is the fixed start time for fake clocks in this package.
var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func sequentialIDs(prefix string) IDGenerator {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type testEnv struct {
	engine *Engine
	kv     *fakeKV
	clock  *clock.FakeClock
	waits  *[]time.Duration
}

// newTestEnv builds an engine over a fake store and clock, seeded with a small team:
// alice (manager), bob (member), carol (viewer), dave (inactive member).
func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	kv := newFakeKV()
	fc := clock.Fake(testNow)
	engine := NewEngine(kv, ServiceConfig{
		Clock:   fc,
		IDGen:   sequentialIDs("id"),
		Backoff: BackoffPolicy{MaxAttempts: 1},
	})
	waits := []time.Duration{}
	engine.Coordinator.SetWaiter(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	})
	engine.Delivery.SetSampler(func() float64 { return 0 })
	t.Cleanup(engine.Close)

	ctx := context.Background()
	for _, seed := range []struct {
		id, name string
		role     domain.RoleName
		active   bool
	}{
		{"alice", "Alice", domain.RoleManager, true},
		{"bob", "Bob", domain.RoleMember, true},
		{"carol", "Carol", domain.RoleViewer, true},
		{"dave", "Dave", domain.RoleMember, false},
	} {
		m, err := domain.NewTeamMember(seed.id, seed.name, seed.id+"@example.com", seed.role)
		if err != nil {
			t.Fatalf("NewTeamMember() error = %v", err)
		}
		m.IsActive = seed.active
		if err := engine.Directory.Upsert(ctx, m); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	if err := engine.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return testEnv{engine: engine, kv: kv, clock: fc, waits: &waits}
}

func as(userID string) context.Context {
	return WithActor(context.Background(), userID)
}

func wantKind(t *testing.T, err error, kind domain.ErrorKind) *domain.CollaborationError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	ce, ok := domain.AsCollaborationError(err)
	if !ok {
		t.Fatalf("expected CollaborationError, got %T (%v)", err, err)
	}
	if ce.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, ce.Kind, err)
	}
	return ce
}
