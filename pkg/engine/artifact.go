package engine

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/klauspost/compress/gzip"
	"github.com/xeipuuv/gojsonschema"

	"github.com/solaudit/solaudit/pkg/errs"
)

// ArtifactSchemaVersion is stamped into every saved report. Loading
// refuses artifacts from a different major version.
const ArtifactSchemaVersion = "1.2.0"

//go:embed schema/report.schema.json
var reportSchema string

// SaveArtifact writes the report as JSON. A .gz suffix compresses the
// artifact; fuzzing campaigns produce execution logs large enough to
// make that worthwhile.
func SaveArtifact(path string, rep *AuditReport) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	if strings.HasSuffix(path, ".gz") {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("writing report artifact: %w", err)
		}
		defer f.Close()
		zw := gzip.NewWriter(f)
		if _, err := zw.Write(data); err != nil {
			return fmt.Errorf("compressing report artifact: %w", err)
		}
		return zw.Close()
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing report artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads a report saved by SaveArtifact, validating both
// the schema version and the document shape before trusting any field.
func LoadArtifact(path string) (*AuditReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening report artifact: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("decompressing report artifact: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading report artifact: %w", err)
	}
	return decodeArtifact(data)
}

func decodeArtifact(data []byte) (*AuditReport, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(reportSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validating report artifact: %w: %v", errs.ErrInvalidInput, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("report artifact failed validation: %w: %s", errs.ErrInvalidInput, strings.Join(msgs, "; "))
	}

	var rep AuditReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decoding report artifact: %w", err)
	}
	if err := checkSchemaVersion(rep.SchemaVersion); err != nil {
		return nil, err
	}
	return &rep, nil
}

func checkSchemaVersion(v string) error {
	got, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("report artifact has malformed schema version %q: %w", v, errs.ErrInvalidInput)
	}
	want := semver.MustParse(ArtifactSchemaVersion)
	if got.Major() != want.Major() {
		return fmt.Errorf("report artifact schema %s is incompatible with %s: %w", v, ArtifactSchemaVersion, errs.ErrInvalidInput)
	}
	return nil
}

// ReportDiff is the weakness-level delta between two runs of the same
// target. Findings are matched on their dedup identity rather than
// their IDs, so a reworded description does not register as new.
type ReportDiff struct {
	BeforeRun string            `json:"before_run"`
	AfterRun  string            `json:"after_run"`
	New       []ReportedFinding `json:"new,omitempty"`
	Fixed     []ReportedFinding `json:"fixed,omitempty"`
	Unchanged []ReportedFinding `json:"unchanged,omitempty"`
}

// DiffReports compares the accepted findings of two reports.
func DiffReports(before, after *AuditReport) *ReportDiff {
	diff := &ReportDiff{BeforeRun: before.RunID, AfterRun: after.RunID}

	prev := make(map[string]ReportedFinding, len(before.Accepted))
	for _, f := range before.Accepted {
		prev[dedupKey(f.Finding)] = f
	}
	seen := make(map[string]bool, len(after.Accepted))
	for _, f := range after.Accepted {
		key := dedupKey(f.Finding)
		seen[key] = true
		if _, ok := prev[key]; ok {
			diff.Unchanged = append(diff.Unchanged, f)
		} else {
			diff.New = append(diff.New, f)
		}
	}
	for _, f := range before.Accepted {
		if !seen[dedupKey(f.Finding)] {
			diff.Fixed = append(diff.Fixed, f)
		}
	}

	sortReported(diff.New)
	sortReported(diff.Fixed)
	sortReported(diff.Unchanged)
	return diff
}
