package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solaudit/solaudit/pkg/engine"
)

const securifyFixture = `{
  "version": "2.1.0",
  "runs": [
    {
      "tool": {
        "driver": {
          "name": "Securify",
          "rules": [
            {
              "id": "DAO",
              "shortDescription": {"text": "Reentrant call to untrusted contract"},
              "properties": {"severity": "CRITICAL"}
            },
            {
              "id": "UnhandledException",
              "shortDescription": {"text": "Unhandled external call exception"}
            }
          ]
        }
      },
      "results": [
        {
          "ruleId": "DAO",
          "level": "error",
          "message": {"text": "The contract may be vulnerable to reentrancy."},
          "locations": [
            {
              "physicalLocation": {
                "artifactLocation": {"uri": "contracts/Vault.sol"},
                "region": {"startLine": 40, "endLine": 48}
              }
            }
          ]
        },
        {
          "ruleId": "UnhandledException",
          "level": "warning",
          "message": {"text": "Return value of an external call is not checked."}
        }
      ]
    }
  ]
}`

func TestParseSecurifySARIF(t *testing.T) {
	findings, warnings := Parse(descriptor(t, "securify"), "securify", []byte(securifyFixture), parseTime)
	require.Empty(t, warnings)
	require.Len(t, findings, 2)

	dao := findings[0]
	assert.Equal(t, "Reentrant call to untrusted contract", dao.Title)
	// Rule metadata outranks the result level.
	assert.Equal(t, engine.SeverityCritical, dao.Severity)
	assert.Equal(t, "reentrancy", dao.Class)
	assert.Equal(t, engine.Location{File: "contracts/Vault.sol", StartLine: 40, EndLine: 48}, dao.Location)

	exc := findings[1]
	assert.Equal(t, "Unhandled external call exception", exc.Title)
	// No rule severity, so the result level's vocabulary applies.
	assert.Equal(t, engine.SeverityMedium, exc.Severity)
	assert.Equal(t, "unchecked-call", exc.Class)
	assert.True(t, exc.Location.IsZero())
}

func TestParseSARIFNoRuns(t *testing.T) {
	findings, warnings := Parse(descriptor(t, "securify"), "securify", []byte(`{"version": "2.1.0", "runs": []}`), parseTime)

	assert.Empty(t, findings)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "no runs")
}

func TestParseSARIFMalformed(t *testing.T) {
	findings, warnings := Parse(descriptor(t, "securify"), "securify", []byte("securify crashed"), parseTime)

	assert.Empty(t, findings)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "malformed SARIF")
}
