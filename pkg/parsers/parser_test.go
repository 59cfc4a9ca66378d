package parsers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/registry"
)

var parseTime = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func descriptor(t *testing.T, name string) *registry.ToolDescriptor {
	t.Helper()
	for _, d := range registry.Catalog() {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("no catalog descriptor for %s", name)
	return nil
}

func TestParseWithoutDescriptorWarns(t *testing.T) {
	findings, warnings := Parse(nil, "adhoc", []byte("whatever"), parseTime)

	assert.Empty(t, findings)
	require.Len(t, warnings, 1)
	assert.Equal(t, "adhoc", warnings[0].Tool)
	assert.Contains(t, warnings[0].String(), "no declared output format")
}

func TestMapSeverityUsesDescriptorVocabulary(t *testing.T) {
	securify := descriptor(t, "securify")

	tests := []struct {
		raw  string
		want engine.Severity
	}{
		{"critical", engine.SeverityCritical},
		{"CRITICAL", engine.SeverityCritical},
		{"error", engine.SeverityHigh},
		{"warning", engine.SeverityMedium},
		{"note", engine.SeverityLow},
		{"none", engine.SeverityInfo},
		{"bogus-vocab-word", engine.SeverityInfo},
		{"", engine.SeverityInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapSeverity(securify, tt.raw), "raw=%q", tt.raw)
	}
}

func TestMapSeverityFallsThroughToCanonicalWords(t *testing.T) {
	// Mythril already speaks the canonical scale.
	mythril := descriptor(t, "mythril")
	assert.Equal(t, engine.SeverityHigh, mapSeverity(mythril, "High"))
	assert.Equal(t, engine.SeverityLow, mapSeverity(mythril, "low"))
}
