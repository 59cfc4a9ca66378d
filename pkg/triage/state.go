// Package triage drives findings through the review state machine:
// Raw findings enter review on ingestion, strategies decide, and only
// NeedsHumanReview decisions can re-enter review when new evidence
// arrives. Accepted and Rejected are terminal.
package triage

import (
	"fmt"
	"time"

	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/errs"
)

// Verdict is a strategy's proposed resolution for one finding.
type Verdict struct {
	State     engine.TriageState
	Rationale string
	Impact    string
	Strategy  string
}

// Evidence is what a triage pass gets to look at beyond the finding
// itself. The hash of a finding's evidence decides whether re-running
// triage counts as "new evidence".
type Evidence struct {
	Intents []string
}

func evidenceRefs(f engine.Finding, ev Evidence) []string {
	refs := make([]string, 0, 2+len(ev.Intents))
	refs = append(refs, "evidence:"+f.Evidence, "description:"+f.Description)
	for _, in := range ev.Intents {
		refs = append(refs, "intent:"+in)
	}
	return refs
}

func validTransition(from, to engine.TriageState) bool {
	switch from {
	case engine.StateRaw:
		return to == engine.StateUnderReview
	case engine.StateUnderReview:
		return to == engine.StateAccepted || to == engine.StateRejected || to == engine.StateNeedsHuman
	case engine.StateNeedsHuman:
		return to == engine.StateUnderReview
	default:
		// Accepted and Rejected are frozen.
		return false
	}
}

// Decide validates and applies one verdict to a finding under review,
// producing the decision record. The from state must be UnderReview;
// transitions never skip it.
func Decide(f engine.Finding, from engine.TriageState, v Verdict, ev Evidence, at time.Time) (engine.Decision, error) {
	if v.Rationale == "" {
		return engine.Decision{}, fmt.Errorf("decision for %s has no rationale: %w", f.ID, errs.ErrInvalidInput)
	}
	if !validTransition(from, v.State) {
		return engine.Decision{}, fmt.Errorf("transition %s -> %s for %s: %w", from, v.State, f.ID, errs.ErrInvalidInput)
	}
	refs := evidenceRefs(f, ev)
	return engine.Decision{
		FindingID:    f.ID,
		State:        v.State,
		Rationale:    v.Rationale,
		Impact:       v.Impact,
		EvidenceRefs: refs,
		EvidenceHash: engine.HashEvidence(refs),
		Strategy:     v.Strategy,
		DecidedAt:    at.UTC(),
	}, nil
}
