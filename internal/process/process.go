package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
)

var (
	// ErrStart is returned when a command could not be started at all.
	ErrStart = errors.New("start process")
)

// Command describes a child process invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// OwnGroup starts the child in a new process group so terminal signals
	// reach it only when the parent relays them.
	OwnGroup bool
}

// String renders the command line for log output.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Process is a started child that can be signalled and waited on.
type Process interface {
	Signal(sig os.Signal) error
	Wait() (int, error)
}

// Starter starts commands. ExecStarter is the production implementation;
// tests substitute fakes.
type Starter interface {
	Start(ctx context.Context, cmd Command) (Process, error)
}

// ExecStarter starts commands with os/exec.
type ExecStarter struct{}

// Start launches cmd. A nil Env inherits the current process environment.
func (ExecStarter) Start(ctx context.Context, cmd Command) (Process, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	if cmd.OwnGroup {
		c.SysProcAttr = ownGroupAttr()
	}

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrStart, cmd.Name, err)
	}
	return &execProcess{cmd: c}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

// Wait blocks until the child exits and returns its exit code. A child
// terminated by a signal reports 128+signal, as a shell would.
func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}

	return -1, err
}

// Run starts cmd and waits for it to finish.
func Run(ctx context.Context, starter Starter, cmd Command) (int, error) {
	proc, err := starter.Start(ctx, cmd)
	if err != nil {
		return -1, err
	}
	return proc.Wait()
}

// MergeEnv returns base with every key in overrides replaced. Overrides are
// appended in sorted order so the result is stable across runs.
func MergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	for _, entry := range base {
		name, _, _ := strings.Cut(entry, "=")
		if _, replaced := overrides[name]; replaced {
			continue
		}
		out = append(out, entry)
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, name+"="+overrides[name])
	}
	return out
}

// Lookup returns the value of name in env, honouring the last assignment.
func Lookup(env []string, name string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		key, value, ok := strings.Cut(env[i], "=")
		if ok && key == name {
			return value, true
		}
	}
	return "", false
}
