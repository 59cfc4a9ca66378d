package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solaudit/solaudit/pkg/engine"
)

type fakeProvider struct {
	response string
	err      error
	prompt   string
}

func (p *fakeProvider) Verdict(_ context.Context, prompt string) (string, error) {
	p.prompt = prompt
	return p.response, p.err
}

func (p *fakeProvider) ListModels(context.Context) ([]string, error) { return nil, nil }
func (p *fakeProvider) Close() error                                 { return nil }

func TestAdvisorParsesVerdict(t *testing.T) {
	fp := &fakeProvider{response: `{"decision": "accept", "rationale": "reachable drain", "impact": "full vault balance"}`}
	s := NewAdvisorStrategy(fp)

	v, err := s.Evaluate(context.Background(), reentrancyFinding(), Evidence{Intents: []string{"defi"}})
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, engine.StateAccepted, v.State)
	assert.Equal(t, "reachable drain", v.Rationale)
	assert.Equal(t, "full vault balance", v.Impact)
	assert.Contains(t, fp.prompt, "reentrancy-eth")
	assert.Contains(t, fp.prompt, "repository intents: defi")
}

func TestAdvisorToleratesCodeFence(t *testing.T) {
	fp := &fakeProvider{response: "```json\n{\"decision\": \"reject\", \"rationale\": \"guarded by nonReentrant\"}\n```"}
	s := NewAdvisorStrategy(fp)

	v, err := s.Evaluate(context.Background(), reentrancyFinding(), Evidence{})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, engine.StateRejected, v.State)
}

func TestAdvisorProviderErrorAbstains(t *testing.T) {
	s := NewAdvisorStrategy(&fakeProvider{err: errors.New("quota exhausted")})

	v, err := s.Evaluate(context.Background(), reentrancyFinding(), Evidence{})
	assert.Nil(t, v)
	require.Error(t, err)
}

func TestAdvisorMalformedVerdictAbstains(t *testing.T) {
	s := NewAdvisorStrategy(&fakeProvider{response: "I think this is probably fine."})

	v, err := s.Evaluate(context.Background(), reentrancyFinding(), Evidence{})
	assert.Nil(t, v)
	require.Error(t, err)
}

func TestAdvisorRejectsAcceptWithoutImpact(t *testing.T) {
	s := NewAdvisorStrategy(&fakeProvider{response: `{"decision": "accept", "rationale": "looks bad"}`})

	v, err := s.Evaluate(context.Background(), reentrancyFinding(), Evidence{})
	assert.Nil(t, v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "impact")
}

func TestAdvisorRejectsUnknownDecision(t *testing.T) {
	s := NewAdvisorStrategy(&fakeProvider{response: `{"decision": "escalate", "rationale": "unsure"}`})

	v, err := s.Evaluate(context.Background(), reentrancyFinding(), Evidence{})
	assert.Nil(t, v)
	require.Error(t, err)
}
