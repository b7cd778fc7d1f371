package runner

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// pythonHarness runs the learner's file with stdout captured. When nothing
// was printed and the last statement is an expression, its value is written
// instead.
//
//go:embed harness.py
var pythonHarness string

const (
	harnessFile = "harness.py"
	mainFile    = "main.py"
)

// PythonExecutor runs Python code with a local python3 interpreter
type PythonExecutor struct {
	interpreter string
}

// NewPythonExecutor creates a new Python executor
func NewPythonExecutor() *PythonExecutor {
	return &PythonExecutor{interpreter: "python3"}
}

// Language returns the language this executor handles
func (e *PythonExecutor) Language() Language {
	return LanguagePython
}

// Available reports whether the interpreter can be found on PATH
func (e *PythonExecutor) Available() bool {
	_, err := exec.LookPath(e.interpreter)
	return err == nil
}

// Execute runs code and captures its standard output
func (e *PythonExecutor) Execute(ctx context.Context, code string) (*Output, error) {
	tmpDir, err := createTempCodeDir(map[string]string{
		harnessFile: pythonHarness,
		mainFile:    code,
	})
	if err != nil {
		return nil, fmt.Errorf("prepare code dir: %w", err)
	}
	defer removeTempDir(tmpDir)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.interpreter, harnessFile, filepath.Join(tmpDir, mainFile))
	cmd.Dir = tmpDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Output{Err: timeoutMessage, Duration: duration}, nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("run python: %w", runErr)
		}
		return &Output{Err: pythonError(stderr.String(), exitErr), Duration: duration}, nil
	}

	return &Output{Stdout: stdout.String(), Duration: duration}, nil
}

func pythonError(stderr string, exitErr *exec.ExitError) string {
	if msg := strings.TrimSpace(stderr); msg != "" {
		return msg
	}
	return fmt.Sprintf("process exited with status %d", exitErr.ExitCode())
}

var _ Executor = (*PythonExecutor)(nil)
