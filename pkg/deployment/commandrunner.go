package deployment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Command is one external process invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the parent process environment.
	Env []string
}

// String renders the command the way an operator would type it.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandRunner is the seam between the deployer and external programs.
type CommandRunner interface {
	// Run executes cmd and returns its combined output.
	Run(ctx context.Context, cmd Command) ([]byte, error)
	// LookPath resolves an executable on PATH.
	LookPath(name string) (string, error)
}

// ExecCommandRunner runs commands with os/exec and mirrors their output to the logger.
type ExecCommandRunner struct {
	logger zerolog.Logger
}

// NewExecCommandRunner creates a runner backed by os/exec.
func NewExecCommandRunner(logger zerolog.Logger) *ExecCommandRunner {
	return &ExecCommandRunner{
		logger: logger.With().Str("component", "CommandRunner").Logger(),
	}
}

func (r *ExecCommandRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	log := r.logger.With().Str("command", c.String()).Logger()
	log.Debug().Str("dir", c.Dir).Msg("Running command...")

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)

	var out bytes.Buffer
	lines := &debugLineWriter{logger: log}
	sink := io.MultiWriter(&out, lines)
	cmd.Stdout = sink
	cmd.Stderr = sink

	err := cmd.Run()
	lines.Flush()
	if err != nil {
		return out.Bytes(), fmt.Errorf("command %q failed: %w", c.String(), err)
	}
	return out.Bytes(), nil
}

func (r *ExecCommandRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// debugLineWriter logs every complete line written to it as a debug event.
// A trailing partial line is held until the next write or Flush.
type debugLineWriter struct {
	logger  zerolog.Logger
	pending []byte
}

func (w *debugLineWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.emit(w.pending[:i])
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

// Flush logs whatever is left after the last newline.
func (w *debugLineWriter) Flush() {
	if len(w.pending) > 0 {
		w.emit(w.pending)
		w.pending = nil
	}
}

func (w *debugLineWriter) emit(line []byte) {
	text := strings.TrimRight(string(line), "\r")
	if text == "" {
		return
	}
	w.logger.Debug().Msg(text)
}
