package memory

import (
	"context"
	"testing"

	"github.com/hylla/mauflow/internal/app"
)

var _ app.KeyValueStore = (*Store)(nil)

func TestStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := New()
	in := []byte(`["a"]`)
	if err := s.Set(ctx, "k", in); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	in[0] = 'x'
	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(got) != `["a"]` {
		t.Fatalf("unexpected value %q ok=%t err=%v", got, ok, err)
	}
	got[0] = 'y'
	again, _, _ := s.Get(ctx, "k")
	if string(again) != `["a"]` {
		t.Fatalf("expected stored value isolated from callers, got %q", again)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok || s.Len() != 0 {
		t.Fatal("expected key removed")
	}
}

func TestStoreBacksEngine(t *testing.T) {
	ctx := context.Background()
	engine := app.NewEngine(New(), app.ServiceConfig{})
	t.Cleanup(engine.Close)
	if !engine.Store.Available() {
		t.Fatal("expected store available")
	}
	if err := engine.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := engine.Store.DataVersion(ctx); got != app.CurrentDataVersion {
		t.Fatalf("DataVersion() = %d, want %d", got, app.CurrentDataVersion)
	}
}
