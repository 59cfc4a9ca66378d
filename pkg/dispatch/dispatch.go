package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/errs"
	"github.com/solaudit/solaudit/pkg/observability"
	"github.com/solaudit/solaudit/pkg/registry"
	"github.com/solaudit/solaudit/pkg/sandbox"
)

// DefaultTimeout bounds analyzers that give no timeout of their own.
const DefaultTimeout = 300 * time.Second

// Status is the terminal state of one execution
type Status string

const (
	// StatusCompleted means the process ran to its own exit, whatever
	// the exit code. Analyzers signal findings through non-zero exits.
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// Request describes one tool invocation
type Request struct {
	Candidate  registry.Candidate
	Fallbacks  []registry.Candidate     // tried in order when the candidate fails
	Descriptor *registry.ToolDescriptor // nil for ad-hoc binaries
	Target     string
	ExtraArgs  []string // replaces the descriptor's argument template
	Timeout    time.Duration
	Env        []string // extra KEY=VALUE pairs
}

// Result is the execution record for one invocation
type Result struct {
	RunID     string
	Tool      string
	Command   string
	Status    Status
	ExitCode  int
	Output    []byte
	Truncated bool
	StartedAt time.Time
	Duration  time.Duration
	WorkDir   string
	Err       error
}

// ToolRun flattens the result into the report's execution log entry.
func (r *Result) ToolRun() engine.ToolRun {
	note := ""
	if r.Err != nil {
		note = r.Err.Error()
	}
	return engine.ToolRun{
		Tool:       r.Tool,
		Command:    r.Command,
		Status:     string(r.Status),
		ExitCode:   r.ExitCode,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
		Truncated:  r.Truncated,
		Note:       note,
	}
}

// Config tunes the dispatcher. Zero values get working defaults.
type Config struct {
	WorkRoot    string // parent of per-run scratch dirs, default os.TempDir()
	HeadBytes   int
	TailBytes   int
	Concurrency int
}

// Dispatcher runs resolved tool candidates in isolated scratch
// directories, killing the whole process group on timeout. Fuzzers
// fork worker processes; killing only the parent leaks them.
type Dispatcher struct {
	cfg     Config
	guard   *sandbox.Guard
	logger  *slog.Logger
	metrics *observability.Metrics
}

func New(cfg Config, guard *sandbox.Guard, logger *slog.Logger) *Dispatcher {
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = os.TempDir()
	}
	if cfg.HeadBytes <= 0 {
		cfg.HeadBytes = DefaultHeadBytes
	}
	if cfg.TailBytes <= 0 {
		cfg.TailBytes = DefaultTailBytes
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Dispatcher{
		cfg:     cfg,
		guard:   guard,
		logger:  logger,
		metrics: observability.GetMetrics(),
	}
}

// Run executes the request and always returns a Result unless the
// request itself is rejected. When a candidate fails to run, the
// fallbacks are tried in order; the Result reflects the last attempt.
// Tool failures are recorded in the result; only sandbox violations
// and setup failures return an error.
func (d *Dispatcher) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Target != "" {
		if err := d.guard.Check(req.Target); err != nil {
			return nil, err
		}
		// The child runs in a scratch dir; a relative target would
		// resolve against that instead of the caller's working dir.
		abs, err := filepath.Abs(req.Target)
		if err != nil {
			return nil, errs.NewFatalf("resolving target %s: %w", req.Target, err)
		}
		req.Target = abs
	}

	timeout := req.Timeout
	if timeout == 0 && req.Descriptor != nil {
		timeout = req.Descriptor.Timeout()
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	cands := append([]registry.Candidate{req.Candidate}, req.Fallbacks...)
	var res *Result
	for i, cand := range cands {
		r, err := d.runCandidate(ctx, req, cand, timeout)
		if err != nil {
			return nil, err
		}
		if res != nil {
			_ = Cleanup(res)
		}
		res = r
		if res.Status != StatusFailed {
			break
		}
		if i+1 < len(cands) {
			d.logger.Warn("candidate failed, trying next",
				"tool", cand.Tool,
				"command", res.Command,
				"next", cands[i+1].CommandLine())
		}
	}
	return res, nil
}

func (d *Dispatcher) runCandidate(ctx context.Context, req Request, cand registry.Candidate, timeout time.Duration) (*Result, error) {
	runID := uuid.NewString()
	scratch := filepath.Join(d.cfg.WorkRoot, "solaudit-"+runID)
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, errs.NewFatalf("creating scratch dir: %w", err)
	}

	args := append([]string(nil), cand.Args...)
	if req.Descriptor != nil {
		args = append(args, req.Descriptor.BuildArgs(req.Target, req.ExtraArgs)...)
	} else {
		args = append(args, req.ExtraArgs...)
		if req.Target != "" {
			args = append(args, req.Target)
		}
	}

	res := &Result{
		RunID:   runID,
		Tool:    cand.Tool,
		Command: cand.CommandLine(),
		WorkDir: scratch,
	}

	out := NewCapture(d.cfg.HeadBytes, d.cfg.TailBytes)
	cmd := exec.Command(cand.Program, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Dir = scratch
	if cand.Dir != "" {
		// Entry-point invocations only work from the install dir.
		cmd.Dir = cand.Dir
	}
	cmd.Env = append(os.Environ(), "TMPDIR="+scratch)
	cmd.Env = append(cmd.Env, req.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	d.logger.Info("executing tool",
		"run_id", runID,
		"tool", res.Tool,
		"command", res.Command,
		"dir", cmd.Dir,
		"timeout", timeout.String())

	res.StartedAt = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		res.Status = StatusFailed
		res.ExitCode = -1
		res.Err = errs.NewToolf(res.Tool, "starting %s: %w: %w", cand.Program, errs.ErrExecutionFailure, err)
		res.Duration = time.Since(res.StartedAt)
		d.record(res)
		return res, nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		res.finish(out, cmd, err)
	case <-timer.C:
		killGroup(cmd)
		<-done
		res.Status = StatusTimeout
		res.ExitCode = -1
		res.Err = errs.NewToolf(res.Tool, "killed after %s: %w", timeout, errs.ErrTimeout)
		res.Output = out.Bytes()
		res.Truncated = out.Truncated()
	case <-ctx.Done():
		killGroup(cmd)
		<-done
		res.Status = StatusCancelled
		res.ExitCode = -1
		res.Err = errs.NewToolf(res.Tool, "cancelled: %w", ctx.Err())
		res.Output = out.Bytes()
		res.Truncated = out.Truncated()
	}
	res.Duration = time.Since(res.StartedAt)
	d.record(res)
	return res, nil
}

func (res *Result) finish(out *Capture, cmd *exec.Cmd, err error) {
	res.Output = out.Bytes()
	res.Truncated = out.Truncated()
	if err == nil {
		res.Status = StatusCompleted
		res.ExitCode = 0
		return
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		res.Status = StatusCompleted
		res.ExitCode = exitErr.ExitCode()
		return
	}
	res.Status = StatusFailed
	res.ExitCode = -1
	res.Err = errs.NewToolf(res.Tool, "waiting on process: %w: %w", errs.ErrExecutionFailure, err)
}

func (d *Dispatcher) record(res *Result) {
	m := d.metrics
	m.ToolExecutions.WithLabelValues(res.Tool, string(res.Status)).Inc()
	m.ExecutionDuration.WithLabelValues(res.Tool).Observe(res.Duration.Seconds())
	if res.Truncated {
		m.OutputTruncated.Inc()
	}
	lvl := d.logger.Info
	if res.Status != StatusCompleted {
		lvl = d.logger.Warn
	}
	lvl("tool finished",
		"run_id", res.RunID,
		"tool", res.Tool,
		"status", string(res.Status),
		"exit_code", res.ExitCode,
		"duration", res.Duration.String(),
		"output_bytes", len(res.Output),
		"truncated", res.Truncated)
}

// RunAll executes the requests with bounded parallelism, preserving
// request order in the results. The first fatal error cancels the
// remaining executions; per-tool failures never do.
func (d *Dispatcher) RunAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*Result, len(reqs))
	sem := make(chan struct{}, d.cfg.Concurrency)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fatalErr error
	)
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = &Result{
					RunID:   uuid.NewString(),
					Tool:    req.Candidate.Tool,
					Command: req.Candidate.CommandLine(),
					Status:  StatusCancelled,
					Err:     errs.NewToolf(req.Candidate.Tool, "cancelled: %w", ctx.Err()),
				}
				return
			}
			res, err := d.Run(ctx, req)
			if err != nil {
				mu.Lock()
				if fatalErr == nil {
					fatalErr = err
				}
				mu.Unlock()
				cancel()
				results[i] = &Result{
					RunID:   uuid.NewString(),
					Tool:    req.Candidate.Tool,
					Command: req.Candidate.CommandLine(),
					Status:  StatusFailed,
					Err:     err,
				}
				return
			}
			results[i] = res
		}(i, req)
	}
	wg.Wait()

	if fatalErr != nil {
		return results, fatalErr
	}
	return results, nil
}

func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid addresses the process group set up at Start.
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}

// Cleanup removes the scratch directory of a finished run.
func Cleanup(res *Result) error {
	if res == nil || res.WorkDir == "" {
		return nil
	}
	if err := os.RemoveAll(res.WorkDir); err != nil {
		return fmt.Errorf("removing scratch dir: %w", err)
	}
	return nil
}
