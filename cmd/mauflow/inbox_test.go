package main

import (
	"errors"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/hylla/mauflow/internal/tui"
)

// fakeProgram stands in for the interactive program.
type fakeProgram struct {
	model  tea.Model
	runErr error
	seen   *tea.Model
}

func (f fakeProgram) Run() (tea.Model, error) {
	if f.seen != nil {
		*f.seen = f.model
	}
	return f.model, f.runErr
}

func stubProgram(t *testing.T, runErr error) *tea.Model {
	t.Helper()
	orig := programFactory
	t.Cleanup(func() { programFactory = orig })
	var seen tea.Model
	programFactory = func(m tea.Model) program {
		return fakeProgram{model: m, runErr: runErr, seen: &seen}
	}
	return &seen
}

func TestRunInboxStartsProgramForActingUser(t *testing.T) {
	env := newCLIEnv(t, "")
	env.seedTeam()
	env.run("--as", "alice", "delegate", "T1", "bob", "--title", "Parser")

	seen := stubProgram(t, nil)
	env.run("--as", "bob", "inbox", "--connect")
	if _, ok := (*seen).(tui.Model); !ok {
		t.Fatalf("expected inbox model, got %T", *seen)
	}
}

func TestRunInboxRequiresUserAndWrapsProgramErrors(t *testing.T) {
	env := newCLIEnv(t, "")
	env.seedTeam()

	stubProgram(t, nil)
	if err := env.runErr("inbox"); err == nil {
		t.Fatal("expected inbox without an acting user to fail")
	}

	stubProgram(t, errors.New("terminal gone"))
	err := env.runErr("inbox", "--for", "bob")
	if err == nil || !strings.Contains(err.Error(), "run tui program") {
		t.Fatalf("expected wrapped program error, got %v", err)
	}
}
