package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// TriageState is the review lifecycle position of one finding
type TriageState string

const (
	StateRaw         TriageState = "Raw"
	StateUnderReview TriageState = "UnderReview"
	StateAccepted    TriageState = "Accepted"
	StateRejected    TriageState = "Rejected"
	StateNeedsHuman  TriageState = "NeedsHumanReview"
)

// Terminal reports whether the state is frozen. Terminal decisions are
// immutable; only NeedsHumanReview can re-enter review, and only when
// new evidence arrives.
func (s TriageState) Terminal() bool {
	return s == StateAccepted || s == StateRejected
}

// Decision is one triage verdict for one finding
type Decision struct {
	FindingID    string      `json:"finding_id"`
	State        TriageState `json:"state"`
	Rationale    string      `json:"rationale"`
	Impact       string      `json:"impact,omitempty"`
	EvidenceRefs []string    `json:"evidence_refs,omitempty"`
	EvidenceHash string      `json:"evidence_hash"`
	Strategy     string      `json:"strategy,omitempty"`
	DecidedAt    time.Time   `json:"decided_at"`
}

// HashEvidence digests the evidence references backing a decision.
// Re-triage compares hashes to detect whether anything actually changed.
func HashEvidence(refs []string) string {
	sorted := append([]string(nil), refs...)
	sort.Strings(sorted)
	h := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(h[:])[:16]
}
