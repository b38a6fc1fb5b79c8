package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/eugenenazirov/domisafe-bootstrap/internal/process"
)

var (
	signalNotify = signal.Notify
	signalStop   = signal.Stop
)

// Options describes the downstream application launch.
type Options struct {
	Command          []string
	Dir              string
	Env              []string
	RestartPerMinute int
	Stdin            io.Reader
	Stdout           io.Writer
	Stderr           io.Writer
}

// Option configures the behaviour of New.
type Option func(*Launcher)

// WithRestartLimiter overrides the restart budget limiter (primarily for tests).
func WithRestartLimiter(limiter restartLimiter) Option {
	return func(l *Launcher) {
		l.restarts = limiter
	}
}

// Launcher starts the downstream application and relays its exit status.
type Launcher struct {
	starter  process.Starter
	opts     Options
	logger   *zap.Logger
	restarts restartLimiter
}

// New creates a Launcher. Stdio defaults to the bootstrapper's own streams.
func New(starter process.Starter, opts Options, logger *zap.Logger, options ...Option) *Launcher {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	l := &Launcher{
		starter:  starter,
		opts:     opts,
		logger:   logger,
		restarts: newRestartLimiter(opts.RestartPerMinute),
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Run launches the application and blocks until it exits, returning the
// child's exit code. The child runs in its own process group and SIGINT and
// SIGTERM are forwarded to it, so a terminal Ctrl-C is delivered exactly
// once. When a restart budget is configured, a child that fails on its own is
// relaunched while the budget allows.
func (l *Launcher) Run(ctx context.Context) (int, error) {
	sigCh := make(chan os.Signal, 1)
	signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signalStop(sigCh)

	if len(l.opts.Command) == 0 {
		return -1, fmt.Errorf("%w: empty application command", process.ErrStart)
	}

	cmd := process.Command{
		Name:   l.opts.Command[0],
		Args:   l.opts.Command[1:],
		Dir:    l.opts.Dir,
		Env:    l.opts.Env,
		Stdin:  l.opts.Stdin,
		Stdout: l.opts.Stdout,
		Stderr: l.opts.Stderr,

		OwnGroup: true,
	}

	for attempt := 1; ; attempt++ {
		l.logger.Info("starting application", zap.String("command", cmd.String()), zap.Int("attempt", attempt))

		proc, err := l.starter.Start(ctx, cmd)
		if err != nil {
			return -1, err
		}

		code, interrupted, err := l.wait(proc, sigCh)
		if err != nil {
			return code, err
		}

		l.logger.Info("application exited", zap.Int("exit_code", code))
		if code == 0 || interrupted || ctx.Err() != nil || !l.allowRestart() {
			return code, nil
		}
		l.logger.Warn("restarting application", zap.Int("exit_code", code))
	}
}

// wait relays signals to proc until it exits.
func (l *Launcher) wait(proc process.Process, sigCh <-chan os.Signal) (int, bool, error) {
	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := proc.Wait()
		done <- result{code: code, err: err}
	}()

	interrupted := false
	for {
		select {
		case sig := <-sigCh:
			interrupted = true
			l.logger.Info("forwarding signal", zap.String("signal", sig.String()))
			if err := proc.Signal(sig); err != nil {
				l.logger.Warn("signal delivery failed", zap.Error(err))
			}
		case res := <-done:
			return res.code, interrupted, res.err
		}
	}
}

func (l *Launcher) allowRestart() bool {
	if l.restarts == nil {
		return false
	}
	return l.restarts.Allow()
}
