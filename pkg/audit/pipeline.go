// Package audit runs the full pipeline: resolve the analyzer set,
// execute it against the target, normalize and merge tool output,
// triage the merged findings, and assemble the report.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/solaudit/solaudit/pkg/dispatch"
	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/history"
	"github.com/solaudit/solaudit/pkg/intel"
	"github.com/solaudit/solaudit/pkg/observability"
	"github.com/solaudit/solaudit/pkg/parsers"
	"github.com/solaudit/solaudit/pkg/registry"
	"github.com/solaudit/solaudit/pkg/sandbox"
	"github.com/solaudit/solaudit/pkg/triage"
)

// Exit codes the audit command maps outcomes to.
const (
	ExitClean    = 0 // full coverage, nothing accepted
	ExitFindings = 1 // audit completed with accepted findings
	ExitError    = 2 // audit aborted, or tool coverage incomplete
)

// Options select what one audit run covers.
type Options struct {
	Target     string
	Tools      []string // subset of the catalog; empty runs every analyzer
	Timeout    time.Duration
	ReportPath string // artifact destination, empty skips persistence
}

// Deps are the pipeline's collaborators. History is optional; a nil
// store disables prior-decision loading and run recording.
type Deps struct {
	Guard      *sandbox.Guard
	Resolver   *registry.Resolver
	Dispatcher *dispatch.Dispatcher
	Intel      *intel.Client
	Triage     *triage.Pipeline
	History    *history.Store
}

// Outcome is what one finished audit hands back to the caller.
type Outcome struct {
	Report     *engine.AuditReport
	ReportPath string
	ExitCode   int
	Warnings   []parsers.Warning
}

type Pipeline struct {
	deps    Deps
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func New(deps Deps, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		deps:    deps,
		logger:  logger,
		metrics: observability.GetMetrics(),
		now:     time.Now,
	}
}

// Run executes one audit. Per-tool failures are absorbed into the
// report's methodology; only sandbox violations, setup failures, and
// incomplete report input surface as errors.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Outcome, error) {
	p.metrics.AuditsTotal.Inc()
	out, err := p.run(ctx, opts)
	if err != nil {
		p.metrics.AuditsFailed.Inc()
	}
	return out, err
}

func (p *Pipeline) run(ctx context.Context, opts Options) (*Outcome, error) {
	if err := p.deps.Guard.Check(opts.Target); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	startedAt := p.now().UTC()
	logger := p.logger.With("run_id", runID, "target", opts.Target)

	tools := p.toolSet(opts)
	logger.Info("audit started", "tools", len(tools))

	reqs, execLog := p.buildRequests(tools, opts, startedAt, logger)

	results, err := p.deps.Dispatcher.RunAll(ctx, reqs)
	for _, res := range results {
		if res != nil {
			defer dispatch.Cleanup(res)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("dispatching tools: %w", err)
	}

	var (
		findings []engine.Finding
		warnings []parsers.Warning
	)
	for _, res := range results {
		execLog = append(execLog, res.ToolRun())
		if res.Status == dispatch.StatusCancelled || len(res.Output) == 0 {
			continue
		}
		desc, _ := p.deps.Resolver.Descriptor(res.Tool)
		parsed, warns := parsers.Parse(desc, res.Tool, res.Output, res.StartedAt)
		findings = engine.Merge(findings, parsed)
		warnings = append(warnings, warns...)
	}
	for _, w := range warnings {
		logger.Warn("parse warning", "tool", w.Tool, "message", w.Message)
	}

	ev := p.gatherEvidence(ctx, opts.Target, logger)
	prior := p.priorDecisions(ctx, opts.Target, logger)

	decisions, err := p.deps.Triage.Run(ctx, findings, prior, ev)
	if err != nil {
		return nil, fmt.Errorf("triaging findings: %w", err)
	}

	rep, err := engine.BuildReport(runID, opts.Target, findings, decisions, execLog, ev.Intents, p.now())
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Report:   rep,
		ExitCode: exitCode(rep),
		Warnings: warnings,
	}
	if opts.ReportPath != "" {
		if err := engine.SaveArtifact(opts.ReportPath, rep); err != nil {
			return nil, fmt.Errorf("saving report artifact: %w", err)
		}
		out.ReportPath = opts.ReportPath
	}

	p.recordRun(ctx, history.RunRecord{
		RunID:      runID,
		Target:     opts.Target,
		StartedAt:  startedAt,
		FinishedAt: p.now().UTC(),
		ExitCode:   out.ExitCode,
		ReportPath: out.ReportPath,
		Log:        rep.ExecutionLog,
		Decisions:  decisions,
	}, logger)

	logger.Info("audit finished",
		"findings", len(findings),
		"accepted", len(rep.Accepted),
		"needs_review", len(rep.NeedsReview),
		"exit_code", out.ExitCode)
	return out, nil
}

// toolSet resolves the requested tool names, defaulting to every
// non-utility analyzer in the catalog.
func (p *Pipeline) toolSet(opts Options) []string {
	if len(opts.Tools) > 0 {
		return opts.Tools
	}
	var names []string
	for _, d := range p.deps.Resolver.Tools() {
		if d.Utility {
			continue
		}
		names = append(names, d.Name)
	}
	return names
}

// buildRequests turns resolved candidates into dispatch requests. Tools
// that cannot be located are logged as failed executions so the report's
// methodology discloses the coverage gap.
func (p *Pipeline) buildRequests(tools []string, opts Options, startedAt time.Time, logger *slog.Logger) ([]dispatch.Request, []engine.ToolRun) {
	var (
		reqs    []dispatch.Request
		execLog []engine.ToolRun
	)
	for _, name := range tools {
		cands, err := p.deps.Resolver.Resolve(name)
		if err != nil {
			logger.Warn("tool unavailable", "tool", name, "error", err)
			execLog = append(execLog, engine.ToolRun{
				Tool:      name,
				Status:    string(dispatch.StatusFailed),
				ExitCode:  -1,
				StartedAt: startedAt,
				Note:      err.Error(),
			})
			continue
		}
		desc, _ := p.deps.Resolver.Descriptor(name)
		reqs = append(reqs, dispatch.Request{
			Candidate:  cands[0],
			Fallbacks:  cands[1:],
			Descriptor: desc,
			Target:     opts.Target,
			Timeout:    opts.Timeout,
		})
	}
	return reqs, execLog
}

// gatherEvidence asks the intent service about the target. The service
// is an optional collaborator: unreachable means triage proceeds on
// tool evidence alone.
func (p *Pipeline) gatherEvidence(ctx context.Context, target string, logger *slog.Logger) triage.Evidence {
	intents, err := p.deps.Intel.Intents(ctx, target)
	if err != nil {
		logger.Warn("intent analysis degraded", "error", err)
		return triage.Evidence{}
	}
	return triage.Evidence{Intents: intents}
}

func (p *Pipeline) priorDecisions(ctx context.Context, target string, logger *slog.Logger) map[string]engine.Decision {
	if p.deps.History == nil {
		return nil
	}
	prior, err := p.deps.History.LatestDecisions(ctx, target)
	if err != nil {
		logger.Warn("prior decisions unavailable", "error", err)
		return nil
	}
	return prior
}

func (p *Pipeline) recordRun(ctx context.Context, rec history.RunRecord, logger *slog.Logger) {
	if p.deps.History == nil {
		return
	}
	if err := p.deps.History.RecordRun(ctx, rec); err != nil {
		logger.Warn("recording run failed", "error", err)
	}
}

// exitCode maps a finished report to the process exit code. Accepted
// findings take precedence; a run that accepted nothing only exits
// clean when every tool actually ran. A partial run cannot vouch for
// the target, so failed or timed-out tools exit as an error even
// though a report was produced.
func exitCode(rep *engine.AuditReport) int {
	if rep.Methodology.ToolsExecuted == 0 {
		return ExitError
	}
	if len(rep.Accepted) > 0 {
		return ExitFindings
	}
	if rep.Methodology.ToolsFailed > 0 {
		return ExitError
	}
	return ExitClean
}
