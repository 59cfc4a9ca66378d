package triage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/errs"
)

func TestDefaultRulesCompile(t *testing.T) {
	s, err := NewRuleStrategy(DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, "rules", s.Name())
}

func TestRuleAcceptsFuzzerCounterexample(t *testing.T) {
	s, err := NewRuleStrategy(DefaultRules())
	require.NoError(t, err)

	f := engine.New("echidna", "echidna_total_supply_constant", engine.SeverityHigh,
		engine.Location{}, "invariant-violation", "property failed", "deposit(1); withdraw(2)", 0.9, decideTime)

	v, err := s.Evaluate(context.Background(), f, Evidence{})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, engine.StateAccepted, v.State)
	assert.Contains(t, v.Rationale, "accept-fuzzer-counterexample")
	assert.NotEmpty(t, v.Impact)
}

func TestRuleRejectsUnclassifiedInfo(t *testing.T) {
	s, err := NewRuleStrategy(DefaultRules())
	require.NoError(t, err)

	f := engine.New("slither", "pragma", engine.SeverityInfo,
		engine.Location{}, "unclassified", "solidity version drift", "", 0.9, decideTime)

	v, err := s.Evaluate(context.Background(), f, Evidence{})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, engine.StateRejected, v.State)
}

func TestRuleAbstainsWhenNothingMatches(t *testing.T) {
	s, err := NewRuleStrategy(DefaultRules())
	require.NoError(t, err)

	// Medium single-tool finding with moderate confidence hits no rule.
	f := engine.New("mythril", "Integer Arithmetic Bugs", engine.SeverityMedium,
		engine.Location{File: "a.sol", StartLine: 5}, "integer-overflow", "may overflow", "", 0.7, decideTime)

	v, err := s.Evaluate(context.Background(), f, Evidence{})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRuleOrderFirstMatchWins(t *testing.T) {
	s, err := NewRuleStrategy([]Rule{
		{ID: "first", When: `severity == "high"`, Decision: "reject", Rationale: "first wins"},
		{ID: "second", When: `severity == "high"`, Decision: "needs_human", Rationale: "never reached"},
	})
	require.NoError(t, err)

	f := engine.New("slither", "x", engine.SeverityHigh, engine.Location{}, "reentrancy", "", "", 0.9, decideTime)
	v, err := s.Evaluate(context.Background(), f, Evidence{})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Contains(t, v.Rationale, "first")
}

func TestRuleCanUseIntents(t *testing.T) {
	s, err := NewRuleStrategy([]Rule{{
		ID:        "lending-strict",
		When:      `"lending" in intents && class == "precision-loss"`,
		Decision:  "needs_human",
		Rationale: "rounding matters in lending math",
	}})
	require.NoError(t, err)

	f := engine.New("slither", "divide-before-multiply", engine.SeverityMedium,
		engine.Location{}, "precision-loss", "", "", 0.6, decideTime)

	v, err := s.Evaluate(context.Background(), f, Evidence{Intents: []string{"lending"}})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, engine.StateNeedsHuman, v.State)

	v, err = s.Evaluate(context.Background(), f, Evidence{})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestNewRuleStrategyRejectsBadRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"no id", Rule{When: "true", Decision: "reject", Rationale: "r"}},
		{"no rationale", Rule{ID: "x", When: "true", Decision: "reject"}},
		{"bad decision", Rule{ID: "x", When: "true", Decision: "maybe", Rationale: "r"}},
		{"accept without impact", Rule{ID: "x", When: "true", Decision: "accept", Rationale: "r"}},
		{"does not compile", Rule{ID: "x", When: "severity ==", Decision: "reject", Rationale: "r"}},
		{"not boolean", Rule{ID: "x", When: `severity + "!"`, Decision: "reject", Rationale: "r"}},
		{"unknown variable", Rule{ID: "x", When: "exploitability > 5", Decision: "reject", Rationale: "r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleStrategy([]Rule{tt.rule})
			require.Error(t, err)
			assert.True(t, errs.IsFatal(err))
		})
	}
}

func TestLoadRulesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: reject-test-files
    description: Findings inside test contracts are not production exposure
    when: file.contains("test/")
    decision: reject
    rationale: finding is confined to test code
`), 0644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "reject-test-files", rules[0].ID)

	s, err := NewRuleStrategy(rules)
	require.NoError(t, err)

	f := engine.New("slither", "x", engine.SeverityLow,
		engine.Location{File: "test/Mock.sol", StartLine: 3}, "reentrancy", "", "", 0.5, decideTime)
	v, err := s.Evaluate(context.Background(), f, Evidence{})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, engine.StateRejected, v.State)
}

func TestLoadRulesMissingFileUsesDefaults(t *testing.T) {
	rules, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)
}

func TestLoadRulesMalformedYAMLIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: ["), 0644))

	_, err := LoadRules(path)
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
}
