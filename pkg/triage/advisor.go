package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/solaudit/solaudit/pkg/advisor"
	"github.com/solaudit/solaudit/pkg/engine"
)

// AdvisorStrategy asks a model provider to judge findings the rules
// could not decide. Anything short of a well-formed verdict abstains;
// the fallback path catches what the model cannot.
type AdvisorStrategy struct {
	provider advisor.Provider
	timeout  time.Duration
}

func NewAdvisorStrategy(p advisor.Provider) *AdvisorStrategy {
	return &AdvisorStrategy{provider: p, timeout: 90 * time.Second}
}

func (s *AdvisorStrategy) Name() string { return "advisor" }

// advisorVerdict is the JSON contract the prompt demands.
type advisorVerdict struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale"`
	Impact    string `json:"impact"`
}

func (s *AdvisorStrategy) Evaluate(ctx context.Context, f engine.Finding, ev Evidence) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.provider.Verdict(ctx, advisor.BuildTriagePrompt(f, ev.Intents))
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}

	var av advisorVerdict
	if err := json.Unmarshal([]byte(extractJSON(raw)), &av); err != nil {
		return nil, fmt.Errorf("unparseable verdict %q: %w", clip(raw, 120), err)
	}
	if av.Rationale == "" {
		return nil, fmt.Errorf("verdict carried no rationale")
	}

	state, err := ruleState(av.Decision)
	if err != nil {
		return nil, err
	}
	if state == engine.StateAccepted && av.Impact == "" {
		return nil, fmt.Errorf("accepting verdict carried no impact estimate")
	}
	return &Verdict{
		State:     state,
		Rationale: av.Rationale,
		Impact:    av.Impact,
		Strategy:  s.Name(),
	}, nil
}

// extractJSON tolerates models that wrap the object in a code fence.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func clip(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
