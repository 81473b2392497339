package solver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdptw-visualizer/backend/internal/models"
)

// ErrSolverTimeout is returned when the solver exceeds its time budget.
var ErrSolverTimeout = errors.New("solver timed out")

const (
	inputFileName  = "input.txt"
	outputFileName = "output.txt"
	// maxStderrTail bounds how much solver output is quoted in errors.
	maxStderrTail = 512
)

// Executor runs one solve and returns the raw solution text.
type Executor interface {
	Run(ctx context.Context, jobID string, params map[string]string, instance string) (string, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, jobID string, params map[string]string, instance string) (string, error)

func (f ExecutorFunc) Run(ctx context.Context, jobID string, params map[string]string, instance string) (string, error) {
	return f(ctx, jobID, params, instance)
}

// ParamLine renders params as space-separated key=value pairs sorted by key.
func ParamLine(params map[string]string) string {
	keys := models.SortedKeys(params)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, " ")
}

// Runner invokes the external solver binary as "<binary> <input> <output>".
type Runner struct {
	binary        string
	workDir       string
	timeout       time.Duration
	keepWorkFiles bool
}

// NewRunner creates a runner. Each job gets its own directory under workDir.
func NewRunner(binary, workDir string, timeout time.Duration, keepWorkFiles bool) *Runner {
	return &Runner{
		binary:        binary,
		workDir:       workDir,
		timeout:       timeout,
		keepWorkFiles: keepWorkFiles,
	}
}

// Run writes the parameter line and instance to an input file, runs the
// solver and returns the content of its output file.
func (r *Runner) Run(ctx context.Context, jobID string, params map[string]string, instance string) (string, error) {
	jobDir := filepath.Join(r.workDir, jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return "", fmt.Errorf("creating job directory: %w", err)
	}
	if !r.keepWorkFiles {
		defer os.RemoveAll(jobDir)
	}

	inputPath := filepath.Join(jobDir, inputFileName)
	outputPath := filepath.Join(jobDir, outputFileName)
	input := ParamLine(params) + "\n" + instance
	if err := os.WriteFile(inputPath, []byte(input), 0644); err != nil {
		return "", fmt.Errorf("writing solver input: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.binary, inputPath, outputPath)
	cmd.Dir = jobDir
	cmd.WaitDelay = 2 * time.Second
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrSolverTimeout, r.timeout)
		}
		return "", fmt.Errorf("running solver: %w: %s", err, tail(out))
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return "", fmt.Errorf("reading solver output: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("solver produced an empty output file")
	}
	return string(data), nil
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxStderrTail {
		s = "..." + s[len(s)-maxStderrTail:]
	}
	return s
}
