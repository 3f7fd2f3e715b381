package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/datametry/edr/pkg/logger"
	"go.uber.org/multierr"
	"sigs.k8s.io/yaml"
)

const maxStderrTail = 2048

type CLIOpts struct {
	// Binary is the engine executable.  Defaults to dbt.
	Binary string

	// ProjectDir is the directory holding the engine project.
	ProjectDir string

	// ProfilesDir is the directory holding the warehouse connection profiles.
	ProfilesDir string

	// Target selects a profile target.  Empty uses the profile default.
	Target string

	// Vars are passed to every command.
	Vars map[string]any

	// Env is appended to the current process environment.
	Env []string
}

// CommandError is returned when the engine process exits with a non-zero status.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("engine command %q exited with code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("engine command %q exited with code %d: %s", e.Command, e.ExitCode, e.Stderr)
}

type execFn func(ctx context.Context, dir string, env []string, name string, args ...string) (stdout, stderr []byte, err error)

// CLI runs engine commands through a dbt compatible command line executable.
type CLI struct {
	opts CLIOpts
	exec execFn
}

func NewCLI(opts CLIOpts) (*CLI, error) {
	if opts.Binary == "" {
		opts.Binary = "dbt"
	}
	if opts.ProjectDir == "" {
		return nil, errors.New("engine project dir is required")
	}
	return &CLI{opts: opts, exec: execCommand}, nil
}

func (c *CLI) Deps(ctx context.Context) error {
	_, err := c.invoke(ctx, "deps")
	return err
}

func (c *CLI) Run(ctx context.Context, opts RunOptions) error {
	args := []string{"run"}
	if opts.Models != "" {
		args = append(args, "--select", opts.Models)
	}
	if opts.FullRefresh {
		args = append(args, "--full-refresh")
	}
	_, err := c.invoke(ctx, args...)
	return err
}

func (c *CLI) Test(ctx context.Context, opts TestOptions) error {
	args := []string{"test"}
	if opts.Select != "" {
		args = append(args, "--select", opts.Select)
	}
	_, err := c.invoke(ctx, args...)
	return err
}

func (c *CLI) RunOperation(ctx context.Context, name string, args map[string]any) ([]string, error) {
	cmd := []string{"run-operation", name}
	if len(args) > 0 {
		b, err := yaml.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode args for %s: %w", name, err)
		}
		cmd = append(cmd, "--args", string(b))
	}

	stdout, err := c.invoke(ctx, cmd...)
	if err != nil {
		return nil, err
	}

	rows, _, err := parseOutput(stdout)
	if err != nil {
		return nil, fmt.Errorf("run-operation %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows, nil
}

func (c *CLI) invoke(ctx context.Context, args ...string) ([]byte, error) {
	args = append(args, c.commonArgs()...)

	env := os.Environ()
	env = append(env, c.opts.Env...)

	start := time.Now()
	logger.Debugf("Executing %s %s", c.opts.Binary, strings.Join(args, " "))
	stdout, stderr, err := c.exec(ctx, c.opts.ProjectDir, env, c.opts.Binary, args...)
	logger.Since(fmt.Sprintf("%s %s", c.opts.Binary, args[0]), start)
	if err == nil {
		return stdout, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return stdout, fmt.Errorf("execute %s %s: %w", c.opts.Binary, args[0], err)
	}

	cmdErr := &CommandError{
		Command:  args[0],
		ExitCode: exitErr.ExitCode(),
		Stderr:   tail(strings.TrimSpace(string(stderr)), maxStderrTail),
	}
	_, engineErrs, scanErr := parseOutput(stdout)
	return stdout, multierr.Combine(append([]error{cmdErr, scanErr}, engineErrs...)...)
}

func (c *CLI) commonArgs() []string {
	args := []string{"--project-dir", c.opts.ProjectDir}
	if c.opts.ProfilesDir != "" {
		args = append(args, "--profiles-dir", c.opts.ProfilesDir)
	}
	if c.opts.Target != "" {
		args = append(args, "--target", c.opts.Target)
	}
	if len(c.opts.Vars) > 0 {
		if b, err := yaml.Marshal(c.opts.Vars); err == nil {
			args = append(args, "--vars", string(b))
		} else {
			logger.Warnf("Ignoring engine vars that cannot be encoded: %s", err)
		}
	}
	return append(args, "--log-format", "json")
}

func execCommand(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
