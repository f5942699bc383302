package process

import (
	"strings"
	"time"
)

// maxStderr bounds the captured standard error.
const maxStderr = 64 * 1024

// Result holds the output and status of a completed subprocess.
type Result struct {
	// Stdout is the captured standard output, empty when Command.Stdout was set.
	Stdout []byte
	// Stderr is the tail of the standard error.
	Stderr []byte
	// ExitCode is the process exit code. -1 if the process was killed.
	ExitCode int
	// Duration is how long the process ran.
	Duration time.Duration
}

// StderrLines returns the non-blank lines of Stderr.
func (r *Result) StderrLines() []string {
	var out []string
	for _, line := range strings.Split(string(r.Stderr), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}
