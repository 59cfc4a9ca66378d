package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solaudit/solaudit/pkg/engine"
	"github.com/solaudit/solaudit/pkg/observability"
)

var storeTime = time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), observability.NewLogger("error"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func decision(findingID string, state engine.TriageState, rationale string) engine.Decision {
	refs := []string{"evidence:" + findingID, "description:" + findingID}
	return engine.Decision{
		FindingID:    findingID,
		State:        state,
		Rationale:    rationale,
		Impact:       "attacker drains escrowed funds",
		EvidenceRefs: refs,
		EvidenceHash: engine.HashEvidence(refs),
		Strategy:     "rules",
		DecidedAt:    storeTime,
	}
}

func sampleRecord(runID string, startedAt time.Time) RunRecord {
	return RunRecord{
		RunID:      runID,
		Target:     "contracts/Vault.sol",
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(4 * time.Minute),
		ExitCode:   1,
		ReportPath: "/tmp/" + runID + ".json",
		Log: []engine.ToolRun{
			{Tool: "slither", Command: "slither contracts/Vault.sol --json -", Status: "completed", ExitCode: 255, StartedAt: startedAt, DurationMS: 9200},
			{Tool: "mythril", Command: "myth analyze contracts/Vault.sol", Status: "timeout", ExitCode: -1, StartedAt: startedAt, DurationMS: 300000, Truncated: true, Note: "killed after 300s"},
		},
		Decisions: map[string]engine.Decision{
			"aaa111": decision("aaa111", engine.StateAccepted, "cross-tool confirmation"),
			"bbb222": decision("bbb222", engine.StateRejected, "guarded by nonReentrant"),
			"ccc333": decision("ccc333", engine.StateNeedsHuman, "no strategy reached a decision"),
		},
	}
}

func TestStoreRecordAndLoadRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRun(ctx, sampleRecord("run-1", storeTime)))

	run, err := s.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "contracts/Vault.sol", run.Target)
	assert.Equal(t, 1, run.Accepted)
	assert.Equal(t, 1, run.Rejected)
	assert.Equal(t, 1, run.NeedsReview)
	assert.Equal(t, 1, run.ExitCode)
	assert.Equal(t, "/tmp/run-1.json", run.ReportPath)
	assert.WithinDuration(t, storeTime, run.StartedAt, time.Second)
	assert.WithinDuration(t, storeTime.Add(4*time.Minute), run.FinishedAt, time.Second)
}

func TestStoreExecutionsKeepOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRun(ctx, sampleRecord("run-1", storeTime)))

	log, err := s.Executions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, log, 2)

	assert.Equal(t, "slither", log[0].Tool)
	assert.Equal(t, "completed", log[0].Status)
	assert.Equal(t, 255, log[0].ExitCode)
	assert.False(t, log[0].Truncated)

	assert.Equal(t, "mythril", log[1].Tool)
	assert.Equal(t, "timeout", log[1].Status)
	assert.True(t, log[1].Truncated)
	assert.Equal(t, "killed after 300s", log[1].Note)
	assert.Equal(t, int64(300000), log[1].DurationMS)
}

func TestLatestDecisionsRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	rec := sampleRecord("run-1", storeTime)
	require.NoError(t, s.RecordRun(ctx, rec))

	got, err := s.LatestDecisions(ctx, "contracts/Vault.sol")
	require.NoError(t, err)
	require.Len(t, got, 3)

	want := rec.Decisions["aaa111"]
	d := got["aaa111"]
	assert.Equal(t, engine.StateAccepted, d.State)
	assert.Equal(t, want.Rationale, d.Rationale)
	assert.Equal(t, want.Impact, d.Impact)
	assert.Equal(t, want.EvidenceRefs, d.EvidenceRefs)
	assert.Equal(t, want.EvidenceHash, d.EvidenceHash)
	assert.Equal(t, "rules", d.Strategy)
	assert.WithinDuration(t, storeTime, d.DecidedAt, time.Second)
}

func TestLatestDecisionsPicksNewestRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first := sampleRecord("run-1", storeTime)
	require.NoError(t, s.RecordRun(ctx, first))

	second := sampleRecord("run-2", storeTime.Add(time.Hour))
	second.Decisions = map[string]engine.Decision{
		"ddd444": decision("ddd444", engine.StateAccepted, "reconfirmed on re-audit"),
	}
	require.NoError(t, s.RecordRun(ctx, second))

	got, err := s.LatestDecisions(ctx, "contracts/Vault.sol")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got, "ddd444")
}

func TestLatestDecisionsNoHistory(t *testing.T) {
	s := openStore(t)

	got, err := s.LatestDecisions(context.Background(), "contracts/Unknown.sol")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRunsListNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRun(ctx, sampleRecord("run-1", storeTime)))
	require.NoError(t, s.RecordRun(ctx, sampleRecord("run-2", storeTime.Add(time.Hour))))
	require.NoError(t, s.RecordRun(ctx, sampleRecord("run-3", storeTime.Add(2*time.Hour))))

	runs, err := s.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].RunID)
	assert.Equal(t, "run-2", runs[1].RunID)
}

func TestRunNotFound(t *testing.T) {
	s := openStore(t)

	_, err := s.Run(context.Background(), "run-missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRecordRunDuplicateIDFails(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRun(ctx, sampleRecord("run-1", storeTime)))
	assert.Error(t, s.RecordRun(ctx, sampleRecord("run-1", storeTime.Add(time.Minute))))
}
