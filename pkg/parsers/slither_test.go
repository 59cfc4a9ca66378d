package parsers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solaudit/solaudit/pkg/engine"
)

const slitherFixture = `{
  "success": true,
  "error": null,
  "results": {
    "detectors": [
      {
        "check": "reentrancy-eth",
        "impact": "High",
        "confidence": "Medium",
        "description": "Reentrancy in Vault.withdraw() (contracts/Vault.sol#42-48): external call before state update",
        "first_markdown_element": "contracts/Vault.sol#L42",
        "elements": [
          {
            "name": "withdraw",
            "type": "function",
            "source_mapping": {
              "filename_relative": "contracts/Vault.sol",
              "filename_absolute": "/work/contracts/Vault.sol",
              "lines": [42, 43, 44, 45, 46, 47, 48]
            }
          }
        ]
      },
      {
        "check": "pragma",
        "impact": "Informational",
        "confidence": "High",
        "description": "Different versions of Solidity are used",
        "elements": []
      }
    ]
  }
}`

func TestParseSlitherReport(t *testing.T) {
	findings, warnings := Parse(descriptor(t, "slither"), "slither", []byte(slitherFixture), parseTime)
	require.Empty(t, warnings)
	require.Len(t, findings, 2)

	re := findings[0]
	assert.Equal(t, "reentrancy-eth", re.Title)
	assert.Equal(t, engine.SeverityHigh, re.Severity)
	assert.Equal(t, "reentrancy", re.Class)
	assert.Equal(t, engine.Location{File: "contracts/Vault.sol", StartLine: 42, EndLine: 48}, re.Location)
	assert.InDelta(t, 0.6, re.Confidence, 1e-9)
	assert.Equal(t, []string{"slither"}, re.Tools)
	assert.Equal(t, parseTime, re.DiscoveredAt)
	assert.Len(t, re.ID, 16)

	info := findings[1]
	assert.Equal(t, engine.SeverityInfo, info.Severity)
	assert.True(t, info.Location.IsZero())
	assert.InDelta(t, 0.9, info.Confidence, 1e-9)
}

func TestParseSlitherAnalysisFailure(t *testing.T) {
	out := []byte(`{"success": false, "error": "Invalid solc compilation", "results": {}}`)

	findings, warnings := Parse(descriptor(t, "slither"), "slither", out, parseTime)

	assert.Empty(t, findings)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "Invalid solc compilation")
}

func TestParseSlitherMalformed(t *testing.T) {
	// Head+tail truncation chops JSON mid-document.
	out := []byte(`{"success": true, "results": {"detectors": [{"check": "re`)

	findings, warnings := Parse(descriptor(t, "slither"), "slither", out, parseTime)

	assert.Empty(t, findings)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "malformed JSON")
}

func TestParseSlitherEmptyOutput(t *testing.T) {
	findings, warnings := Parse(descriptor(t, "slither"), "slither", []byte("  \n"), parseTime)

	assert.Empty(t, findings)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "no output")
}

func TestParseSlitherStableIDs(t *testing.T) {
	a, _ := Parse(descriptor(t, "slither"), "slither", []byte(slitherFixture), parseTime)
	b, _ := Parse(descriptor(t, "slither"), "slither", []byte(slitherFixture), parseTime.Add(24*time.Hour))

	require.Len(t, a, 2)
	require.Len(t, b, 2)
	assert.Equal(t, a[0].ID, b[0].ID)
	assert.Equal(t, a[1].ID, b[1].ID)
}
