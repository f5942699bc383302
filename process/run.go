package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const defaultGracePeriod = 5 * time.Second

// Run starts cmd and waits for it. When ctx is done the process group gets
// SIGTERM and, after the grace period, SIGKILL. The returned Result is
// non-nil whenever the process was started.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, errors.New("process: binary is required")
	}
	path, err := exec.LookPath(cmd.Binary)
	if err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}

	var stdout bytes.Buffer
	stderr := &tailBuffer{max: maxStderr}
	c := command(ctx, path, cmd, &stdout, stderr)

	start := time.Now()
	runErr := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.buf,
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	switch {
	case runErr == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, fmt.Errorf("process: %s killed by context: %w", cmd.Binary, ctx.Err())
	default:
		return res, fmt.Errorf("process: %s: exit code %d: %w", cmd.Binary, res.ExitCode, runErr)
	}
}

func command(ctx context.Context, path string, cmd Command, stdout *bytes.Buffer, stderr *tailBuffer) *exec.Cmd {
	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdin = cmd.Stdin
	c.Stdout = stdout
	if cmd.Stdout != nil {
		c.Stdout = cmd.Stdout
	}
	c.Stderr = stderr

	// Signal the whole group so that children of a shell command stop too.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
	}
	c.WaitDelay = cmd.GracePeriod
	if c.WaitDelay <= 0 {
		c.WaitDelay = defaultGracePeriod
	}
	return c
}
