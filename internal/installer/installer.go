package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eugenenazirov/domisafe-bootstrap/internal/process"
)

var (
	// ErrInstallFailed wraps every failed installer step.
	ErrInstallFailed = errors.New("dependency install failed")
)

// Options configures the installer invocations.
type Options struct {
	Python       string
	Requirements string
	Dir          string
	Strict       bool
	Stdout       io.Writer
	Stderr       io.Writer
}

// Installer upgrades pip and installs the requirements manifest.
type Installer struct {
	starter process.Starter
	opts    Options
	logger  *zap.Logger
}

type step struct {
	name     string
	args     []string
	manifest bool
}

// New returns an Installer running commands through starter.
func New(starter process.Starter, opts Options, logger *zap.Logger) *Installer {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Installer{starter: starter, opts: opts, logger: logger}
}

// Sync runs the upgrade and manifest install steps. In strict mode the first
// failure is returned immediately. Otherwise every step runs and the failures
// are returned combined so the caller can report them and carry on.
func (i *Installer) Sync(ctx context.Context) error {
	steps := []step{
		{name: "upgrade pip", args: []string{"-m", "pip", "install", "--upgrade", "pip"}},
		{name: "install requirements", args: []string{"-m", "pip", "install", "-r", i.opts.Requirements}, manifest: true},
	}

	var errs error
	for _, s := range steps {
		err := i.runStep(ctx, s)
		if err == nil {
			continue
		}
		if i.opts.Strict {
			return err
		}
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (i *Installer) runStep(ctx context.Context, s step) error {
	if s.manifest {
		if _, err := os.Stat(i.manifestPath()); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInstallFailed, s.name, err)
		}
	}

	cmd := process.Command{
		Name:   i.opts.Python,
		Args:   s.args,
		Dir:    i.opts.Dir,
		Stdout: i.opts.Stdout,
		Stderr: i.opts.Stderr,
	}
	i.logger.Info("installing dependencies", zap.String("step", s.name), zap.String("command", cmd.String()))

	code, err := process.Run(ctx, i.starter, cmd)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInstallFailed, s.name, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: %s exited with status %d", ErrInstallFailed, s.name, code)
	}
	return nil
}

// manifestPath resolves the requirements file against the working directory
// pip will run in.
func (i *Installer) manifestPath() string {
	if i.opts.Dir == "" || filepath.IsAbs(i.opts.Requirements) {
		return i.opts.Requirements
	}
	return filepath.Join(i.opts.Dir, i.opts.Requirements)
}
