package encode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// outputTailLines bounds how much tool output is kept for error messages.
const outputTailLines = 20

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, cmd Command, onOutput func(string)) error
}

// CommandExecutor runs commands as child processes. Every line the tool
// writes to stdout or stderr is passed to onOutput when it is set.
type CommandExecutor struct{}

// Run starts the command and waits for it. Failures are returned as
// *EncoderFailureError carrying the last lines of output.
func (CommandExecutor) Run(ctx context.Context, command Command, onOutput func(string)) error {
	tool := filepath.Base(command.Binary)
	cmd := exec.CommandContext(ctx, command.Binary, command.Args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &EncoderFailureError{Tool: tool, Command: command.String(), ExitCode: -1, Err: err}
	}

	tail := newLineTail(outputTailLines)
	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			tail.add(line)
			if onOutput != nil {
				onOutput(line)
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	waitErr := cmd.Wait()
	if waitErr == nil && scanErr != nil {
		return fmt.Errorf("scan %s output: %w", tool, scanErr)
	}
	if waitErr == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &EncoderFailureError{Tool: tool, Command: command.String(), ExitCode: -1, Output: tail.String(), Err: ctxErr}
	}
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &EncoderFailureError{Tool: tool, Command: command.String(), ExitCode: exitCode, Output: tail.String(), Err: waitErr}
}

type lineTail struct {
	mu    sync.Mutex
	limit int
	lines []string
}

func newLineTail(limit int) *lineTail {
	return &lineTail{limit: limit}
}

func (t *lineTail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
