package installer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/domisafe-bootstrap/internal/process"
)

type fakeProcess struct {
	code int
}

func (p *fakeProcess) Signal(os.Signal) error { return nil }

func (p *fakeProcess) Wait() (int, error) { return p.code, nil }

// scriptedStarter returns the queued exit codes in order and records commands.
type scriptedStarter struct {
	codes    []int
	startErr error
	commands []process.Command
}

func (s *scriptedStarter) Start(_ context.Context, cmd process.Command) (process.Process, error) {
	s.commands = append(s.commands, cmd)
	if s.startErr != nil {
		return nil, s.startErr
	}
	code := 0
	if len(s.codes) > 0 {
		code, s.codes = s.codes[0], s.codes[1:]
	}
	return &fakeProcess{code: code}, nil
}

func writeRequirements(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("paho-mqtt\nadafruit-io\n"), 0o600); err != nil {
		t.Fatalf("write requirements: %v", err)
	}
	return dir
}

func newTestInstaller(t *testing.T, starter process.Starter, dir string, strict bool) *Installer {
	t.Helper()
	return New(starter, Options{
		Python:       "python3",
		Requirements: "requirements.txt",
		Dir:          dir,
		Strict:       strict,
		Stdout:       io.Discard,
		Stderr:       io.Discard,
	}, zaptest.NewLogger(t))
}

func TestSyncRunsUpgradeThenManifest(t *testing.T) {
	starter := &scriptedStarter{}
	inst := newTestInstaller(t, starter, writeRequirements(t), false)

	if err := inst.Sync(context.Background()); err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}

	if len(starter.commands) != 2 {
		t.Fatalf("expected 2 installer commands, got %d", len(starter.commands))
	}
	if got := starter.commands[0].String(); got != "python3 -m pip install --upgrade pip" {
		t.Fatalf("unexpected upgrade command %q", got)
	}
	if got := starter.commands[1].String(); got != "python3 -m pip install -r requirements.txt" {
		t.Fatalf("unexpected install command %q", got)
	}
}

func TestSyncLenientContinuesAfterFailure(t *testing.T) {
	starter := &scriptedStarter{codes: []int{1, 0}}
	inst := newTestInstaller(t, starter, writeRequirements(t), false)

	err := inst.Sync(context.Background())
	if !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("expected ErrInstallFailed, got %v", err)
	}
	if len(starter.commands) != 2 {
		t.Fatalf("expected manifest install to run after failed upgrade, got %d commands", len(starter.commands))
	}
}

func TestSyncLenientCollectsEveryFailure(t *testing.T) {
	starter := &scriptedStarter{codes: []int{1, 2}}
	inst := newTestInstaller(t, starter, writeRequirements(t), false)

	err := inst.Sync(context.Background())
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 collected failures, got %d (%v)", got, err)
	}
}

func TestSyncStrictStopsAtFirstFailure(t *testing.T) {
	starter := &scriptedStarter{codes: []int{1}}
	inst := newTestInstaller(t, starter, writeRequirements(t), true)

	err := inst.Sync(context.Background())
	if !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("expected ErrInstallFailed, got %v", err)
	}
	if len(starter.commands) != 1 {
		t.Fatalf("expected strict mode to stop after upgrade, got %d commands", len(starter.commands))
	}
}

func TestSyncMissingManifest(t *testing.T) {
	starter := &scriptedStarter{}
	inst := newTestInstaller(t, starter, t.TempDir(), true)

	err := inst.Sync(context.Background())
	if !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("expected ErrInstallFailed, got %v", err)
	}
	if len(starter.commands) != 1 {
		t.Fatalf("expected manifest install to be skipped, got %d commands", len(starter.commands))
	}
}

func TestSyncStartFailure(t *testing.T) {
	starter := &scriptedStarter{startErr: process.ErrStart}
	inst := newTestInstaller(t, starter, writeRequirements(t), true)

	if err := inst.Sync(context.Background()); !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("expected ErrInstallFailed, got %v", err)
	}
}
