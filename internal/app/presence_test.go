package app

import (
	"context"
	"testing"
	"time"

	"github.com/hylla/mauflow/internal/domain"
)

func TestPresenceToggleFlipsSampledMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.engine.Presence

	// Four members; a sample of 0.3 lands on the second.
	if err := p.Toggle(ctx, 0.3); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	online := p.Online(ctx)
	if len(online) != 1 || online[0].ID != "bob" {
		t.Fatalf("expected bob online, got %#v", online)
	}
	if online[0].LastSeen == nil || !online[0].LastSeen.Equal(testNow) {
		t.Fatalf("expected lastSeen stamped, got %v", online[0].LastSeen)
	}
	if err := p.Toggle(ctx, 0.3); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if got := p.Online(ctx); len(got) != 0 {
		t.Fatalf("expected bob offline again, got %#v", got)
	}
}

func TestPresenceSetOnline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.engine.Presence.SetOnline(ctx, "carol", true); err != nil {
		t.Fatalf("SetOnline() error = %v", err)
	}
	m, ok := env.engine.Directory.Lookup(ctx, "carol")
	if !ok || !m.IsOnline {
		t.Fatalf("expected carol online, got %#v", m)
	}
	wantKind(t, env.engine.Presence.SetOnline(ctx, "zed", true), domain.KindUserNotFound)
}

func TestPresenceToggleWithoutMembersSkipsWrite(t *testing.T) {
	kv := newFakeKV()
	engine := NewEngine(kv, ServiceConfig{IDGen: sequentialIDs("id")})
	t.Cleanup(engine.Close)
	if err := engine.Presence.Toggle(context.Background(), 0.5); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if got := kv.sets(KeyTeamMembers); got != 0 {
		t.Fatalf("expected no write, got %d", got)
	}
}

func TestPresenceSimulatorSchedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.engine.Presence
	p.SetSampler(func() float64 { return 0 })

	p.Start()
	p.Start()
	if !p.Running() {
		t.Fatal("expected simulator running")
	}
	env.clock.Advance(DefaultPresenceInterval)
	if got := p.Online(ctx); len(got) != 1 || got[0].ID != "alice" {
		t.Fatalf("expected alice toggled online, got %#v", got)
	}
	env.clock.Advance(DefaultPresenceInterval)
	if got := p.Online(ctx); len(got) != 0 {
		t.Fatalf("expected alice toggled offline, got %#v", got)
	}

	p.Stop()
	p.Stop()
	env.clock.Advance(10 * time.Minute)
	if p.Running() {
		t.Fatal("expected simulator stopped")
	}
	if got := p.Online(ctx); len(got) != 0 {
		t.Fatalf("expected no toggles after stop, got %#v", got)
	}
}
