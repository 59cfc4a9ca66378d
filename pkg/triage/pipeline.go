package triage

import (
	"context"
	"log/slog"
	"time"

	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/observability"
)

// Strategy is a pluggable decision function. Returning a nil verdict
// with a nil error abstains and hands the finding to the next
// strategy; errors are logged and also fall through.
type Strategy interface {
	Name() string
	Evaluate(ctx context.Context, f engine.Finding, ev Evidence) (*Verdict, error)
}

// Pipeline applies strategies in order, falling back to
// NeedsHumanReview when none of them can decide.
type Pipeline struct {
	strategies []Strategy
	logger     *slog.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewPipeline(logger *slog.Logger, strategies ...Strategy) *Pipeline {
	return &Pipeline{
		strategies: strategies,
		logger:     logger,
		metrics:    observability.GetMetrics(),
		now:        time.Now,
	}
}

// Run triages findings against prior decisions, returning a fresh
// decision set; the prior map is never mutated. Terminal decisions
// survive unchanged. A NeedsHumanReview decision re-enters review only
// when the evidence hash moved.
func (p *Pipeline) Run(ctx context.Context, findings []engine.Finding, prior map[string]engine.Decision, ev Evidence) (map[string]engine.Decision, error) {
	out := make(map[string]engine.Decision, len(prior)+len(findings))
	for id, d := range prior {
		out[id] = d
	}

	for _, f := range findings {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if d, ok := out[f.ID]; ok {
			if d.State.Terminal() {
				continue
			}
			if d.State == engine.StateNeedsHuman {
				if d.EvidenceHash == engine.HashEvidence(evidenceRefs(f, ev)) {
					continue
				}
				// New evidence re-opens the review. Other non-terminal
				// states are simply unfinished and get reviewed again.
				p.logger.Info("re-opening finding on new evidence", "finding", f.ID, "prior_state", string(d.State))
			}
		}

		d := p.review(ctx, f, ev)
		out[f.ID] = d
		p.metrics.TriageDecisions.WithLabelValues(string(d.State)).Inc()
	}
	return out, nil
}

// review walks the strategy chain for one finding already in
// UnderReview. The fallback verdict always applies cleanly, so review
// cannot fail.
func (p *Pipeline) review(ctx context.Context, f engine.Finding, ev Evidence) engine.Decision {
	for _, s := range p.strategies {
		v, err := s.Evaluate(ctx, f, ev)
		if err != nil {
			p.logger.Warn("triage strategy failed",
				"strategy", s.Name(),
				"finding", f.ID,
				"error", err.Error())
			continue
		}
		if v == nil {
			continue
		}
		if v.Strategy == "" {
			v.Strategy = s.Name()
		}
		d, err := Decide(f, engine.StateUnderReview, *v, ev, p.now())
		if err != nil {
			p.logger.Warn("triage strategy produced invalid verdict",
				"strategy", s.Name(),
				"finding", f.ID,
				"error", err.Error())
			continue
		}
		return d
	}

	d, _ := Decide(f, engine.StateUnderReview, Verdict{
		State:     engine.StateNeedsHuman,
		Rationale: "no strategy reached a decision",
		Strategy:  "fallback",
	}, ev, p.now())
	return d
}
