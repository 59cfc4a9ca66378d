package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solaudit/solaudit/pkg/engine"
)

const mythrilFixture = `{
  "error": null,
  "success": true,
  "issues": [
    {
      "title": "External Call To User-Supplied Address",
      "description": "A call to a user-supplied address is executed.",
      "severity": "High",
      "swc-id": "107",
      "contract": "Vault",
      "function": "withdraw(uint256)",
      "filename": "contracts/Vault.sol",
      "lineno": 44,
      "code": "msg.sender.call{value: amount}(\"\")"
    },
    {
      "title": "Integer Arithmetic Bugs",
      "description": "The arithmetic operator can overflow.",
      "severity": "Medium",
      "swc-id": "101",
      "contract": "Vault",
      "function": "deposit(uint256)",
      "filename": "",
      "lineno": 0,
      "code": ""
    }
  ]
}`

func TestParseMythrilReport(t *testing.T) {
	findings, warnings := Parse(descriptor(t, "mythril"), "mythril", []byte(mythrilFixture), parseTime)
	require.Empty(t, warnings)
	require.Len(t, findings, 2)

	call := findings[0]
	assert.Equal(t, "External Call To User-Supplied Address", call.Title)
	assert.Equal(t, engine.SeverityHigh, call.Severity)
	assert.Equal(t, engine.Location{File: "contracts/Vault.sol", StartLine: 44}, call.Location)
	assert.Equal(t, "reentrancy", call.Class)
	assert.Contains(t, call.Evidence, "msg.sender.call")
	assert.InDelta(t, mythrilConfidence, call.Confidence, 1e-9)

	overflow := findings[1]
	assert.Equal(t, engine.SeverityMedium, overflow.Severity)
	assert.True(t, overflow.Location.IsZero())
	assert.Equal(t, "integer-overflow", overflow.Class)
}

func TestParseMythrilAnalysisError(t *testing.T) {
	out := []byte(`{"error": "Solc experienced a fatal error", "success": false, "issues": []}`)

	findings, warnings := Parse(descriptor(t, "mythril"), "mythril", out, parseTime)

	assert.Empty(t, findings)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "Solc experienced a fatal error")
}

func TestParseMythrilMalformed(t *testing.T) {
	findings, warnings := Parse(descriptor(t, "mythril"), "mythril", []byte("Traceback (most recent call last):"), parseTime)

	assert.Empty(t, findings)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "malformed JSON")
}
