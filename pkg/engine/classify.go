package engine

import (
	"strings"
)

// classTable folds the checkers' own rule identifiers into canonical
// vulnerability classes so the aggregator can recognize the same weakness
// reported by different tools. Keys are lowercased raw identifiers.
var classTable = map[string]string{
	// Slither detector names
	"reentrancy-eth":          "reentrancy",
	"reentrancy-no-eth":       "reentrancy",
	"reentrancy-benign":       "reentrancy",
	"reentrancy-events":       "reentrancy",
	"arbitrary-send":          "arbitrary-send",
	"arbitrary-send-eth":      "arbitrary-send",
	"arbitrary-send-erc20":    "arbitrary-send",
	"suicidal":                "suicidal",
	"unchecked-transfer":      "unchecked-call",
	"unchecked-lowlevel":      "unchecked-call",
	"unchecked-send":          "unchecked-call",
	"low-level-calls":         "unchecked-call",
	"tx-origin":               "tx-origin",
	"timestamp":               "timestamp-dependence",
	"block-timestamp":         "timestamp-dependence",
	"weak-prng":               "weak-randomness",
	"uninitialized-state":     "uninitialized-storage",
	"uninitialized-storage":   "uninitialized-storage",
	"uninitialized-local":     "uninitialized-storage",
	"controlled-delegatecall": "delegatecall",
	"delegatecall-loop":       "delegatecall",
	"divide-before-multiply":  "precision-loss",
	"incorrect-equality":      "strict-equality",
	"locked-ether":            "locked-ether",
	"shadowing-state":         "shadowing",
	"shadowing-local":         "shadowing",
	"missing-zero-check":      "input-validation",
	"unprotected-upgrade":     "access-control",

	// Mythril SWC identifiers
	"swc-100": "access-control",
	"swc-101": "integer-overflow",
	"swc-104": "unchecked-call",
	"swc-105": "arbitrary-send",
	"swc-106": "suicidal",
	"swc-107": "reentrancy",
	"swc-110": "assert-violation",
	"swc-112": "delegatecall",
	"swc-113": "denial-of-service",
	"swc-115": "tx-origin",
	"swc-116": "timestamp-dependence",
	"swc-120": "weak-randomness",
	"swc-124": "arbitrary-storage-write",

	// Securify rule names
	"dao":                 "reentrancy",
	"daoconstantgas":      "reentrancy",
	"unrestrictedwrite":   "access-control",
	"unrestrictedethflow": "arbitrary-send",
	"unhandledexception":  "unchecked-call",
	"txorigin":            "tx-origin",
	"lockedether":         "locked-ether",

	// Fuzzer outcomes
	"assertion-failure":  "assert-violation",
	"property-violation": "invariant-violation",
}

// remediationTable carries the standard fix guidance per canonical class
var remediationTable = map[string]string{
	"reentrancy":              "Apply checks-effects-interactions ordering or a reentrancy guard before external calls.",
	"arbitrary-send":          "Restrict who can direct value transfers; validate destination addresses against expected recipients.",
	"suicidal":                "Guard selfdestruct behind strict owner checks or remove it.",
	"unchecked-call":          "Check the return value of low-level calls and transfers, reverting on failure.",
	"tx-origin":               "Authenticate with msg.sender, never tx.origin.",
	"timestamp-dependence":    "Avoid using block timestamps for critical logic; tolerate miner drift or use block numbers.",
	"weak-randomness":         "Derive randomness from a commit-reveal scheme or an oracle, not chain state.",
	"uninitialized-storage":   "Initialize storage variables explicitly before use.",
	"delegatecall":            "Never delegatecall into attacker-influenced addresses; pin the implementation.",
	"integer-overflow":        "Use checked arithmetic (Solidity >=0.8 or SafeMath).",
	"precision-loss":          "Multiply before dividing and document rounding direction.",
	"strict-equality":         "Avoid strict balance equality checks that attackers can break by forced transfers.",
	"locked-ether":            "Add a withdrawal path or reject incoming value.",
	"access-control":          "Gate state-changing entry points with explicit role checks.",
	"assert-violation":        "Treat failed assertions as broken invariants; fix the violated assumption.",
	"invariant-violation":     "Reproduce the fuzzer's counterexample and repair the violated invariant.",
	"denial-of-service":       "Bound loops and avoid external calls that can block progress.",
	"arbitrary-storage-write": "Validate array indexes and storage pointers derived from user input.",
	"input-validation":        "Validate addresses and numeric ranges at the trust boundary.",
	"shadowing":               "Rename shadowed declarations so each identifier is unambiguous.",
}

// CanonicalClass maps a tool-specific check identifier to its canonical
// vulnerability class. Unknown identifiers pass through normalized so
// new checks still produce a usable dedup key.
func CanonicalClass(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "unclassified"
	}
	if class, ok := classTable[key]; ok {
		return class
	}
	// SWC ids sometimes arrive as "SWC ID: 107" or bare numbers
	if n := strings.TrimPrefix(key, "swc id: "); n != key {
		if class, ok := classTable["swc-"+strings.TrimSpace(n)]; ok {
			return class
		}
	}
	return strings.ReplaceAll(key, " ", "-")
}

// RemediationHint returns the standard guidance for a canonical class,
// or empty when none is cataloged
func RemediationHint(class string) string {
	return remediationTable[class]
}
