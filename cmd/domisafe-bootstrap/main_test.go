package main

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/eugenenazirov/domisafe-bootstrap/internal/bootstrap"
	"github.com/eugenenazirov/domisafe-bootstrap/internal/config"
)

type stubRunner struct {
	code int
}

func (s stubRunner) Run(context.Context) (int, error) {
	return s.code, nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range config.EnvVars {
		t.Setenv(name, "")
	}
}

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	overrides, err := parseFlags([]string{
		"--python", "python3.11",
		"--strict-install",
		"--key", "aio_xxxREPLACE_ME",
		"--restart-per-minute", "2",
		"--", "./run.sh", "--mock",
	}, &stderr)
	if err != nil {
		t.Fatalf("parseFlags returned error: %v", err)
	}

	if overrides.Python == nil || *overrides.Python != "python3.11" {
		t.Fatalf("expected python override")
	}
	if overrides.StrictInstall == nil || !*overrides.StrictInstall {
		t.Fatalf("expected strict install override")
	}
	if overrides.PlaceholderKey == nil || *overrides.PlaceholderKey != "aio_xxxREPLACE_ME" {
		t.Fatalf("expected placeholder override")
	}
	if overrides.RestartPerMin == nil || *overrides.RestartPerMin != 2 {
		t.Fatalf("expected restart override")
	}
	if overrides.SkipInstall != nil || overrides.Requirements != nil {
		t.Fatalf("unset flags must not override configuration")
	}
	if want := []string{"./run.sh", "--mock"}; !slices.Equal(overrides.AppCommand, want) {
		t.Fatalf("expected app command %v, got %v", want, overrides.AppCommand)
	}
}

func TestRunPassesExitCodeThrough(t *testing.T) {
	clearEnv(t)

	var got config.Config
	factory := func(cfg config.Config, _ *zap.Logger) runner {
		got = cfg
		return stubRunner{code: 42}
	}

	var stderr bytes.Buffer
	code := run([]string{"--skip-install", "--key", "aio_key", "--log-level", "error"}, &stderr, factory)
	if code != 42 {
		t.Fatalf("expected exit code 42, got %d", code)
	}
	if !got.SkipInstall || got.PlaceholderKey != "aio_key" {
		t.Fatalf("flags were not applied to configuration: %+v", got)
	}
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	clearEnv(t)

	var stderr bytes.Buffer
	code := run([]string{"--bogus"}, &stderr, func(config.Config, *zap.Logger) runner {
		t.Fatalf("bootstrapper must not run on flag errors")
		return nil
	})
	if code != bootstrap.ExitInvalidConfig {
		t.Fatalf("expected exit code %d, got %d", bootstrap.ExitInvalidConfig, code)
	}
	if !strings.Contains(stderr.String(), "bogus") {
		t.Fatalf("expected flag error on stderr, got %q", stderr.String())
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	clearEnv(t)

	var stderr bytes.Buffer
	code := run([]string{"--log-format", "xml"}, &stderr, func(config.Config, *zap.Logger) runner {
		t.Fatalf("bootstrapper must not run with invalid configuration")
		return nil
	})
	if code != bootstrap.ExitInvalidConfig {
		t.Fatalf("expected exit code %d, got %d", bootstrap.ExitInvalidConfig, code)
	}
}

func TestRunRejectsNegativeRestartBudget(t *testing.T) {
	clearEnv(t)

	var stderr bytes.Buffer
	code := run([]string{"--restart-per-minute", "-5"}, &stderr, func(config.Config, *zap.Logger) runner {
		t.Fatalf("bootstrapper must not run with a negative restart budget")
		return nil
	})
	if code != bootstrap.ExitInvalidConfig {
		t.Fatalf("expected exit code %d, got %d", bootstrap.ExitInvalidConfig, code)
	}
	if !strings.Contains(stderr.String(), "restart budget") {
		t.Fatalf("expected restart budget error on stderr, got %q", stderr.String())
	}
}

func TestParseFlagsLeavesRestartBudgetUnsetByDefault(t *testing.T) {
	overrides, err := parseFlags(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseFlags returned error: %v", err)
	}
	if overrides.RestartPerMin != nil {
		t.Fatalf("expected no restart override, got %d", *overrides.RestartPerMin)
	}
}
