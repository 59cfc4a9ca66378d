package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solaudit/solaudit/pkg/engine"
)

const echidnaFixture = `Analyzing contract: contracts/Vault.sol:Vault
echidna_balance_never_negative: passing
echidna_total_supply_constant: failed!💥
  Call sequence:
    deposit(1000)
    withdraw(1000)
    withdraw(1000)

assertion in transfer(address,uint256): failed!💥
  Call sequence:
    transfer(0x0, 115792089237316195423570985008687907853)

Unique instructions: 1423
Corpus size: 37
`

func TestParseEchidnaOutput(t *testing.T) {
	findings, warnings := Parse(descriptor(t, "echidna"), "echidna", []byte(echidnaFixture), parseTime)
	require.Empty(t, warnings)
	require.Len(t, findings, 2)

	prop := findings[0]
	assert.Equal(t, "echidna_total_supply_constant", prop.Title)
	assert.Equal(t, engine.SeverityHigh, prop.Severity)
	assert.Equal(t, "invariant-violation", prop.Class)
	assert.Contains(t, prop.Evidence, "withdraw(1000)")
	assert.InDelta(t, fuzzerConfidence, prop.Confidence, 1e-9)

	asrt := findings[1]
	assert.Equal(t, "assertion in transfer(address,uint256)", asrt.Title)
	assert.Equal(t, "assert-violation", asrt.Class)
	assert.Contains(t, asrt.Evidence, "transfer(0x0")
}

const medusaFixture = `⇾ fuzz: elapsed: 30s, calls: 500000
[FAILED] Assertion Test: FuzzVault.fuzz_withdraw_never_exceeds_deposit()
Test for method "FuzzVault.fuzz_withdraw_never_exceeds_deposit()" resulted in an assertion failure after the following call sequence:
1) FuzzVault.deposit(123) (block=2, time=4, gas=12500000)
2) FuzzVault.withdraw(400) (block=3, time=6, gas=12500000)

[PASSED] Assertion Test: FuzzVault.fuzz_deposit_increases_balance()
`

func TestParseMedusaOutput(t *testing.T) {
	findings, warnings := Parse(descriptor(t, "medusa"), "medusa", []byte(medusaFixture), parseTime)
	require.Empty(t, warnings)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, "Assertion Test: FuzzVault.fuzz_withdraw_never_exceeds_deposit()", f.Title)
	assert.Equal(t, "assert-violation", f.Class)
	assert.Contains(t, f.Evidence, "FuzzVault.deposit(123)")
	assert.Contains(t, f.Evidence, "FuzzVault.withdraw(400)")
}

func TestParseTextLocationExtraction(t *testing.T) {
	out := []byte("invariant violated at contracts/Pool.sol:88\n  Call sequence:\n    drain()\n")

	findings, _ := Parse(descriptor(t, "echidna"), "echidna", out, parseTime)
	require.Len(t, findings, 1)
	assert.Equal(t, engine.Location{File: "contracts/Pool.sol", StartLine: 88}, findings[0].Location)
}

func TestParseTextNoFailuresNoFindings(t *testing.T) {
	out := []byte("echidna_balance_never_negative: passing\nUnique instructions: 1423\n")

	findings, warnings := Parse(descriptor(t, "echidna"), "echidna", out, parseTime)
	assert.Empty(t, findings)
	assert.Empty(t, warnings)
}

func TestParseSolcSelectVersions(t *testing.T) {
	out := []byte("0.8.19 (current, set by /work/.solc-version)\n0.8.24\n0.7.6\n")

	findings, warnings := Parse(descriptor(t, "solc-select"), "solc-select", out, parseTime)
	assert.Empty(t, findings)
	assert.Empty(t, warnings)
}

func TestParseTextEmptyOutputQuiet(t *testing.T) {
	findings, warnings := Parse(descriptor(t, "echidna"), "echidna", nil, parseTime)
	assert.Empty(t, findings)
	assert.Empty(t, warnings)
}
