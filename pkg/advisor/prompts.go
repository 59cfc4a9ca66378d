package advisor

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/solaudit/solaudit/pkg/engine"
)

//go:embed prompts/triage_prompt.txt
var triagePrompt string

// BuildTriagePrompt renders the prompt for one finding. Evidence is
// included verbatim; intents give the model the protocol context the
// finding text lacks.
func BuildTriagePrompt(f engine.Finding, intents []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "title: %s\n", f.Title)
	fmt.Fprintf(&sb, "severity: %s\n", strings.ToLower(f.Severity.String()))
	fmt.Fprintf(&sb, "class: %s\n", f.Class)
	fmt.Fprintf(&sb, "reported by: %s\n", strings.Join(f.Tools, ", "))
	fmt.Fprintf(&sb, "confidence: %.2f\n", f.Confidence)
	if !f.Location.IsZero() {
		fmt.Fprintf(&sb, "location: %s\n", f.Location)
	}
	if len(intents) > 0 {
		fmt.Fprintf(&sb, "repository intents: %s\n", strings.Join(intents, ", "))
	}
	fmt.Fprintf(&sb, "description: %s\n", f.Description)
	if f.Evidence != "" {
		fmt.Fprintf(&sb, "evidence:\n%s\n", f.Evidence)
	}
	return fmt.Sprintf(triagePrompt, sb.String())
}
