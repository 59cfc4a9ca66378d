package engine

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// lineBucketWidth groups nearby line numbers so tools that point at
// slightly different lines of the same weakness still collide.
const lineBucketWidth = 10

// dedupKey computes the aggregation identity. Located findings collide
// on (file, line bucket, class); unlocated findings collide only within
// one tool and title, so cross-tool claims without a location are never
// collapsed together.
func dedupKey(f Finding) string {
	if f.Location.File != "" {
		bucket := f.Location.StartLine / lineBucketWidth
		return strings.Join([]string{
			"loc",
			filepath.Clean(f.Location.File),
			strconv.Itoa(bucket),
			f.Class,
		}, "|")
	}
	tool := ""
	if len(f.Tools) > 0 {
		tool = f.Tools[0]
	}
	return strings.Join([]string{"tool", tool, f.Title}, "|")
}

// Merge folds incoming findings into existing ones and returns a new
// canonically ordered slice; neither input is mutated. Merge is
// commutative, associative, and idempotent, so any tool ordering or
// subset regrouping yields the same content set.
func Merge(existing, incoming []Finding) []Finding {
	merged := make(map[string]Finding, len(existing)+len(incoming))
	for _, f := range existing {
		fold(merged, f)
	}
	for _, f := range incoming {
		fold(merged, f)
	}

	out := make([]Finding, 0, len(merged))
	for _, f := range merged {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func fold(merged map[string]Finding, f Finding) {
	key := dedupKey(f)
	if cur, ok := merged[key]; ok {
		merged[key] = mergeTwo(cur, f)
		return
	}
	merged[key] = normalize(f)
}

func normalize(f Finding) Finding {
	f.Tools = unionTools(f.Tools, nil)
	f.DiscoveredAt = f.DiscoveredAt.UTC()
	return f
}

// mergeTwo combines two findings that share a dedup key. Every rule is
// symmetric in its arguments, which is what makes Merge order-free: the
// id is the lexicographic minimum, tool sets union, severity and
// confidence take their maxima, the description follows the
// highest-confidence claim, and discovery keeps the earliest timestamp.
func mergeTwo(a, b Finding) Finding {
	m := a

	if b.ID < m.ID {
		m.ID = b.ID
	}
	m.Tools = unionTools(a.Tools, b.Tools)

	winner := a
	if wins(b, a) {
		winner = b
	}
	m.Title = winner.Title
	m.Class = winner.Class
	m.Description = winner.Description
	m.Evidence = winner.Evidence

	if b.Confidence > m.Confidence {
		m.Confidence = b.Confidence
	}
	if b.Severity > m.Severity {
		m.Severity = b.Severity
	}

	ta, tb := a.DiscoveredAt.UTC(), b.DiscoveredAt.UTC()
	if tb.Before(ta) {
		m.DiscoveredAt = tb
	} else {
		m.DiscoveredAt = ta
	}

	m.Location = mergeLocation(a.Location, b.Location)
	return m
}

// wins imposes a total order on the description-bearing fields; the
// outcome must never depend on argument order, even on confidence ties.
func wins(b, a Finding) bool {
	if b.Confidence != a.Confidence {
		return b.Confidence > a.Confidence
	}
	if b.Description != a.Description {
		return b.Description < a.Description
	}
	if b.Title != a.Title {
		return b.Title < a.Title
	}
	if b.Class != a.Class {
		return b.Class < a.Class
	}
	return b.Evidence < a.Evidence
}

func mergeLocation(a, b Location) Location {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if b.File < a.File {
		return b
	}
	if a.File < b.File {
		return a
	}
	if b.StartLine != a.StartLine {
		if b.StartLine < a.StartLine {
			return b
		}
		return a
	}
	if b.EndLine < a.EndLine {
		return b
	}
	return a
}

func unionTools(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, t := range a {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range b {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
