package triage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/errs"
)

var decideTime = time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

func reentrancyFinding() engine.Finding {
	return engine.New(
		"slither",
		"reentrancy-eth",
		engine.SeverityHigh,
		engine.Location{File: "contracts/Vault.sol", StartLine: 42},
		"reentrancy",
		"external call before state update",
		"msg.sender.call{value: amount}(\"\")",
		0.9,
		decideTime,
	)
}

func TestDecideRecordsEvidenceHash(t *testing.T) {
	f := reentrancyFinding()
	ev := Evidence{Intents: []string{"defi"}}

	d, err := Decide(f, engine.StateUnderReview, Verdict{
		State:     engine.StateAccepted,
		Rationale: "attack scenario constructed",
		Impact:    "vault drain",
		Strategy:  "rules",
	}, ev, decideTime)
	require.NoError(t, err)

	assert.Equal(t, f.ID, d.FindingID)
	assert.Equal(t, engine.StateAccepted, d.State)
	assert.NotEmpty(t, d.EvidenceHash)
	assert.Contains(t, d.EvidenceRefs, "intent:defi")
	assert.Equal(t, decideTime, d.DecidedAt)

	// Same finding and evidence must hash identically on a re-run.
	d2, err := Decide(f, engine.StateUnderReview, Verdict{State: engine.StateAccepted, Rationale: "r", Impact: "i"}, ev, decideTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, d.EvidenceHash, d2.EvidenceHash)
}

func TestDecideRequiresRationale(t *testing.T) {
	_, err := Decide(reentrancyFinding(), engine.StateUnderReview, Verdict{State: engine.StateRejected}, Evidence{}, decideTime)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to engine.TriageState
		ok       bool
	}{
		{engine.StateRaw, engine.StateUnderReview, true},
		{engine.StateRaw, engine.StateAccepted, false},
		{engine.StateUnderReview, engine.StateAccepted, true},
		{engine.StateUnderReview, engine.StateRejected, true},
		{engine.StateUnderReview, engine.StateNeedsHuman, true},
		{engine.StateUnderReview, engine.StateRaw, false},
		{engine.StateNeedsHuman, engine.StateUnderReview, true},
		{engine.StateNeedsHuman, engine.StateAccepted, false},
		{engine.StateAccepted, engine.StateRejected, false},
		{engine.StateAccepted, engine.StateUnderReview, false},
		{engine.StateRejected, engine.StateUnderReview, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, validTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestDecideRejectsSkippingReview(t *testing.T) {
	_, err := Decide(reentrancyFinding(), engine.StateRaw, Verdict{
		State:     engine.StateAccepted,
		Rationale: "skipping review",
	}, Evidence{}, decideTime)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}

func TestEvidenceHashMovesWithNewEvidence(t *testing.T) {
	f := reentrancyFinding()

	a := engine.HashEvidence(evidenceRefs(f, Evidence{}))
	b := engine.HashEvidence(evidenceRefs(f, Evidence{Intents: []string{"defi"}}))
	assert.NotEqual(t, a, b)

	f2 := f
	f2.Evidence = "new call trace"
	c := engine.HashEvidence(evidenceRefs(f2, Evidence{}))
	assert.NotEqual(t, a, c)
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, engine.StateAccepted.Terminal())
	assert.True(t, engine.StateRejected.Terminal())
	assert.False(t, engine.StateNeedsHuman.Terminal())
	assert.False(t, engine.StateUnderReview.Terminal())
	assert.False(t, engine.StateRaw.Terminal())
}
