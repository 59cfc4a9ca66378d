package triage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/errs"
)

// Rule is one declarative triage decision. The condition is a CEL
// expression over the finding's normalized fields.
type Rule struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	When        string `yaml:"when"`
	Decision    string `yaml:"decision"` // accept, reject, needs_human
	Rationale   string `yaml:"rationale"`
	Impact      string `yaml:"impact"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

type compiledRule struct {
	rule    Rule
	program cel.Program
	state   engine.TriageState
}

// RuleStrategy evaluates rules in declaration order; the first match
// decides. No match abstains.
type RuleStrategy struct {
	rules []compiledRule
}

func (s *RuleStrategy) Name() string { return "rules" }

func ruleEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("severity", cel.StringType),
		cel.Variable("class", cel.StringType),
		cel.Variable("title", cel.StringType),
		cel.Variable("confidence", cel.DoubleType),
		cel.Variable("tools", cel.ListType(cel.StringType)),
		cel.Variable("tool_count", cel.IntType),
		cel.Variable("located", cel.BoolType),
		cel.Variable("file", cel.StringType),
		cel.Variable("intents", cel.ListType(cel.StringType)),
	)
}

// NewRuleStrategy compiles the rules up front. A rule that does not
// compile, does not evaluate to bool, or carries an unusable decision
// is a configuration error, fatal at startup rather than silent at
// triage time.
func NewRuleStrategy(rules []Rule) (*RuleStrategy, error) {
	env, err := ruleEnv()
	if err != nil {
		return nil, fmt.Errorf("building rule environment: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			return nil, errs.NewFatalf("rule with no id: %w", errs.ErrInvalidInput)
		}
		if r.Rationale == "" {
			return nil, errs.NewFatalf("rule %s has no rationale: %w", r.ID, errs.ErrInvalidInput)
		}
		state, err := ruleState(r.Decision)
		if err != nil {
			return nil, errs.NewFatalf("rule %s: %w", r.ID, err)
		}
		if state == engine.StateAccepted && r.Impact == "" {
			return nil, errs.NewFatalf("accepting rule %s has no impact estimate: %w", r.ID, errs.ErrInvalidInput)
		}

		ast, iss := env.Compile(r.When)
		if iss != nil && iss.Err() != nil {
			return nil, errs.NewFatalf("rule %s does not compile: %w", r.ID, iss.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, errs.NewFatalf("rule %s must evaluate to a boolean, got %s", r.ID, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, errs.NewFatalf("rule %s: %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{rule: r, program: prg, state: state})
	}
	return &RuleStrategy{rules: compiled}, nil
}

func ruleState(decision string) (engine.TriageState, error) {
	switch decision {
	case "accept":
		return engine.StateAccepted, nil
	case "reject":
		return engine.StateRejected, nil
	case "needs_human":
		return engine.StateNeedsHuman, nil
	default:
		return "", fmt.Errorf("unknown decision %q: %w", decision, errs.ErrInvalidInput)
	}
}

func (s *RuleStrategy) Evaluate(_ context.Context, f engine.Finding, ev Evidence) (*Verdict, error) {
	intents := ev.Intents
	if intents == nil {
		intents = []string{}
	}
	// Rule files speak the lowercase severity vocabulary.
	vars := map[string]any{
		"severity":   strings.ToLower(f.Severity.String()),
		"class":      f.Class,
		"title":      f.Title,
		"confidence": f.Confidence,
		"tools":      f.Tools,
		"tool_count": len(f.Tools),
		"located":    !f.Location.IsZero(),
		"file":       f.Location.File,
		"intents":    intents,
	}

	for _, cr := range s.rules {
		out, _, err := cr.program.Eval(vars)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", cr.rule.ID, err)
		}
		matched, ok := out.Value().(bool)
		if !ok || !matched {
			continue
		}
		return &Verdict{
			State:     cr.state,
			Rationale: fmt.Sprintf("rule %s: %s", cr.rule.ID, cr.rule.Rationale),
			Impact:    cr.rule.Impact,
			Strategy:  s.Name(),
		}, nil
	}
	return nil, nil
}

// LoadRules reads a YAML rule file. A missing path loads the built-in
// default rule set.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRules(), nil
		}
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, errs.NewFatalf("parsing rules %s: %w", path, err)
	}
	return rf.Rules, nil
}

// DefaultRules encodes the decisions that hold regardless of target:
// reproducible counterexamples are real, unclassified informational
// noise is not, and everything contentious goes to a human.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "accept-fuzzer-counterexample",
			Description: "A replayable call sequence violating a property is proof, not a hypothesis",
			When:        `confidence >= 0.9 && (class == "invariant-violation" || class == "assert-violation")`,
			Decision:    "accept",
			Rationale:   "reproducing call sequence demonstrates the violation",
			Impact:      "invariant breach reachable by the recorded transaction sequence",
		},
		{
			ID:          "accept-cross-tool-critical",
			Description: "Independent engines agreeing on a located critical finding",
			When:        `tool_count >= 2 && located && (severity == "critical" || severity == "high") && confidence >= 0.8`,
			Decision:    "accept",
			Rationale:   "independent analyzers agree on the same located weakness",
			Impact:      "high-severity weakness corroborated by multiple engines",
		},
		{
			ID:          "reject-unclassified-info",
			Description: "Informational output with no weakness class is reporting noise",
			When:        `severity == "info" && class == "unclassified"`,
			Decision:    "reject",
			Rationale:   "informational output carries no weakness class",
		},
		{
			ID:          "reject-low-confidence-info",
			Description: "Single-tool informational guesses",
			When:        `severity == "info" && confidence < 0.5 && tool_count == 1`,
			Decision:    "reject",
			Rationale:   "low-confidence informational claim from a single tool",
		},
	}
}
