package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Location points at the source the finding concerns. A zero Location is
// legal: not every tool reports one.
type Location struct {
	File      string `json:"file,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
}

func (l Location) IsZero() bool {
	return l.File == "" && l.StartLine == 0 && l.EndLine == 0
}

func (l Location) String() string {
	if l.IsZero() {
		return ""
	}
	if l.StartLine == 0 {
		return l.File
	}
	if l.EndLine == 0 || l.EndLine == l.StartLine {
		return fmt.Sprintf("%s:%d", l.File, l.StartLine)
	}
	return fmt.Sprintf("%s:%d-%d", l.File, l.StartLine, l.EndLine)
}

// Finding represents one normalized claim of a potential vulnerability
type Finding struct {
	ID           string    `json:"id"`
	Tools        []string  `json:"tools"`
	Title        string    `json:"title"`
	Severity     Severity  `json:"severity"`
	Location     Location  `json:"location,omitempty"`
	Class        string    `json:"class"`
	Description  string    `json:"description"`
	Evidence     string    `json:"evidence,omitempty"`
	Confidence   float64   `json:"confidence"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// NewFindingID derives the stable finding identity. The same tool
// reporting the same claim across independent runs yields the same id.
func NewFindingID(tool, title string, loc Location, description string) string {
	h := sha256.Sum256([]byte(tool + "|" + title + "|" + loc.String() + "|" + description))
	return hex.EncodeToString(h[:])[:16]
}

// New builds a Finding with its derived id and the given discovery time
func New(tool, title string, sev Severity, loc Location, class, description, evidence string, confidence float64, at time.Time) Finding {
	return Finding{
		ID:           NewFindingID(tool, title, loc, description),
		Tools:        []string{tool},
		Title:        title,
		Severity:     sev,
		Location:     loc,
		Class:        class,
		Description:  description,
		Evidence:     evidence,
		Confidence:   confidence,
		DiscoveredAt: at.UTC(),
	}
}
