package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/eugenenazirov/domisafe-bootstrap/internal/config"
	"github.com/eugenenazirov/domisafe-bootstrap/internal/credential"
	"github.com/eugenenazirov/domisafe-bootstrap/internal/installer"
	"github.com/eugenenazirov/domisafe-bootstrap/internal/launcher"
	"github.com/eugenenazirov/domisafe-bootstrap/internal/process"
)

// Exit codes reported by the bootstrapper itself. A launched application's
// own exit code is passed through unchanged, so 0, 1 and 2 can also come
// from the application. Launch and configuration failures use 127 and 78
// (sysexits EX_CONFIG), which Python applications do not normally return.
const (
	ExitOK                = 0
	ExitMissingCredential = 1
	ExitInstallFailed     = 2
	ExitInvalidConfig     = 78
	ExitLaunchFailed      = 127
)

// Resolver produces the API key handed to the application.
type Resolver interface {
	Resolve() (credential.Credential, error)
}

// Option configures the behaviour of New.
type Option func(*Bootstrapper)

// WithStarter replaces the process starter used for installer and launch.
func WithStarter(starter process.Starter) Option {
	return func(b *Bootstrapper) {
		b.starter = starter
	}
}

// WithEnviron replaces the environment the child inherits (defaults to os.Environ).
func WithEnviron(environ func() []string) Option {
	return func(b *Bootstrapper) {
		b.environ = environ
	}
}

// WithResolver replaces the credential resolver.
func WithResolver(resolver Resolver) Option {
	return func(b *Bootstrapper) {
		b.resolver = resolver
	}
}

// WithOutput redirects child stdio and the missing-key guidance.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(b *Bootstrapper) {
		b.stdout = stdout
		b.stderr = stderr
	}
}

// Bootstrapper syncs dependencies, resolves the credential and launches the
// downstream application.
type Bootstrapper struct {
	cfg      config.Config
	logger   *zap.Logger
	starter  process.Starter
	environ  func() []string
	resolver Resolver
	stdout   io.Writer
	stderr   io.Writer
}

// New wires a Bootstrapper from the provided configuration.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		cfg:      cfg,
		logger:   logger,
		starter:  process.ExecStarter{},
		environ:  os.Environ,
		resolver: credential.NewResolver(cfg.PlaceholderKey, cfg.EnvFilePath()),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes the bootstrap sequence and returns the process exit code.
func (b *Bootstrapper) Run(ctx context.Context) (int, error) {
	if b.cfg.SkipInstall {
		b.logger.Info("skipping dependency install")
	} else if err := b.newInstaller().Sync(ctx); err != nil {
		if b.cfg.StrictInstall {
			b.logger.Error("dependency install failed", zap.Error(err))
			return ExitInstallFailed, err
		}
		b.logger.Warn("dependency install failed, continuing", zap.Error(err))
	}

	cred, err := b.resolver.Resolve()
	if err != nil {
		if errors.Is(err, credential.ErrMissingCredential) {
			b.logger.Warn("credential not resolved", zap.Error(err))
			fmt.Fprintln(b.stderr, credential.Guidance)
			return ExitMissingCredential, err
		}
		return ExitInvalidConfig, fmt.Errorf("resolve credential: %w", err)
	}
	b.logger.Info("credential resolved",
		zap.String("source", string(cred.Source)),
		zap.Int("length", len(cred.Value)),
	)

	l := launcher.New(b.starter, launcher.Options{
		Command:          b.cfg.AppCommand,
		Dir:              b.cfg.AppDir,
		Env:              ChildEnv(b.environ(), cred, b.cfg.ExtraEnv),
		RestartPerMinute: b.cfg.RestartPerMin,
		Stdout:           b.stdout,
		Stderr:           b.stderr,
	}, b.logger)

	code, err := l.Run(ctx)
	if err != nil {
		return ExitLaunchFailed, fmt.Errorf("launch application: %w", err)
	}
	return code, nil
}

func (b *Bootstrapper) newInstaller() *installer.Installer {
	return installer.New(b.starter, installer.Options{
		Python:       b.cfg.Python,
		Requirements: b.cfg.Requirements,
		Dir:          b.cfg.AppDir,
		Strict:       b.cfg.StrictInstall,
		Stdout:       b.stdout,
		Stderr:       b.stderr,
	}, b.logger)
}

// ChildEnv builds the application environment: base with the extra variables
// applied and the credential exported. The credential always wins over an
// extra entry of the same name.
func ChildEnv(base []string, cred credential.Credential, extra map[string]string) []string {
	overrides := make(map[string]string, len(extra)+1)
	for name, value := range extra {
		overrides[name] = value
	}
	overrides[credential.EnvName] = cred.Value
	return process.MergeEnv(base, overrides)
}
