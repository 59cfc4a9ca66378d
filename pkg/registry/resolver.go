package registry

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/solaudit/solaudit/pkg/errs"
)

// Source records which discovery strategy produced a candidate
type Source string

const (
	SourcePath      Source = "path"
	SourceToolsRoot Source = "tools-root"
	SourceEntry     Source = "entry"
	SourceManual    Source = "manual"
)

// Confidence grades how likely a candidate is to actually run
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Candidate is one resolved way to invoke a tool. The dispatcher tries
// candidates in order; a manual candidate is handled like any other.
type Candidate struct {
	Tool       string
	Program    string
	Args       []string
	Dir        string // working directory for the invocation, empty means caller's choice
	Source     Source
	Confidence Confidence
}

// CommandLine renders the candidate for logs and the execution record
func (c Candidate) CommandLine() string {
	parts := append([]string{c.Program}, c.Args...)
	return strings.Join(parts, " ")
}

// Resolver locates analyzer installations. Resolution is a pure lookup:
// it stats and lists directories but never executes anything.
type Resolver struct {
	toolsRoot string
	byName    map[string]*ToolDescriptor
	catalog   []*ToolDescriptor
	cache     *lru.Cache[string, []Candidate]
	lookPath  func(string) (string, error)
	logger    *slog.Logger
}

// NewResolver creates a resolver rooted at toolsRoot. A missing or empty
// tools root is not an error; PATH lookup still works without it.
func NewResolver(toolsRoot string, logger *slog.Logger) *Resolver {
	cache, _ := lru.New[string, []Candidate](32)
	r := &Resolver{
		toolsRoot: toolsRoot,
		byName:    make(map[string]*ToolDescriptor),
		catalog:   Catalog(),
		cache:     cache,
		lookPath:  exec.LookPath,
		logger:    logger,
	}
	for _, d := range r.catalog {
		r.byName[normalizeName(d.Name)] = d
		for _, a := range d.Aliases {
			r.byName[normalizeName(a)] = d
		}
	}
	return r
}

// Tools returns the catalog in declaration order
func (r *Resolver) Tools() []*ToolDescriptor {
	return r.catalog
}

// Descriptor finds the catalog entry for a name or alias. Versioned
// spellings like "mythril2.0" match their base name.
func (r *Resolver) Descriptor(name string) (*ToolDescriptor, bool) {
	key := normalizeName(name)
	if d, ok := r.byName[key]; ok {
		return d, true
	}
	if d, ok := r.byName[stripVersion(key)]; ok {
		return d, true
	}
	return nil, false
}

// Resolve returns every viable invocation for a tool, ordered by
// confidence. An unknown name still gets a PATH probe so ad-hoc binaries
// remain runnable; exhausting every strategy yields ErrToolNotFound.
func (r *Resolver) Resolve(name string) ([]Candidate, error) {
	key := normalizeName(name)
	if cands, ok := r.cache.Get(key); ok {
		return cloneCandidates(cands), nil
	}

	desc, ok := r.Descriptor(name)
	if !ok {
		if p, err := r.lookPath(name); err == nil {
			cands := []Candidate{{
				Tool:       name,
				Program:    p,
				Source:     SourceManual,
				Confidence: ConfidenceLow,
			}}
			r.cache.Add(key, cloneCandidates(cands))
			return cands, nil
		}
		return nil, errs.NewToolf(name, "no descriptor and not on PATH: %w", errs.ErrToolNotFound)
	}

	var cands []Candidate

	if p, err := r.lookPath(desc.Binary); err == nil {
		cands = append(cands, Candidate{
			Tool:       desc.Name,
			Program:    p,
			Source:     SourcePath,
			Confidence: ConfidenceHigh,
		})
	}

	if dir := r.findToolDir(desc); dir != "" {
		for _, rel := range []string{desc.Binary, filepath.Join("bin", desc.Binary)} {
			p := filepath.Join(dir, rel)
			if isExecutable(p) {
				cands = append(cands, Candidate{
					Tool:       desc.Name,
					Program:    p,
					Dir:        dir,
					Source:     SourceToolsRoot,
					Confidence: ConfidenceHigh,
				})
			}
		}
		if len(desc.Entry) > 0 {
			cands = append(cands, Candidate{
				Tool:       desc.Name,
				Program:    desc.Entry[0],
				Args:       append([]string(nil), desc.Entry[1:]...),
				Dir:        dir,
				Source:     SourceEntry,
				Confidence: ConfidenceMedium,
			})
		}
	}

	// Last resort: suggest the declared invocation anyway. The tool may
	// be importable or wired up in a way the probes cannot see.
	if len(cands) == 0 && len(desc.Entry) > 0 {
		r.logger.Debug("tool not located, returning raw invocation",
			"tool", desc.Name,
			"entry", strings.Join(desc.Entry, " "))
		cands = append(cands, Candidate{
			Tool:       desc.Name,
			Program:    desc.Entry[0],
			Args:       append([]string(nil), desc.Entry[1:]...),
			Dir:        filepath.Join(r.toolsRoot, desc.RootDir),
			Source:     SourceManual,
			Confidence: ConfidenceLow,
		})
	}

	if len(cands) == 0 {
		return nil, errs.NewToolf(desc.Name, "exhausted discovery strategies: %w", errs.ErrToolNotFound)
	}

	r.cache.Add(key, cloneCandidates(cands))
	return cands, nil
}

// cloneCandidates guards the cache against callers mutating their
// result slice.
func cloneCandidates(cands []Candidate) []Candidate {
	out := make([]Candidate, len(cands))
	copy(out, cands)
	for i := range out {
		out[i].Args = append([]string(nil), cands[i].Args...)
	}
	return out
}

// findToolDir scans the tools root's immediate subdirectories for a
// case-insensitive match on the tool's name, aliases, or expected
// directory, tolerating versioned suffixes in either direction.
func (r *Resolver) findToolDir(desc *ToolDescriptor) string {
	if r.toolsRoot == "" {
		return ""
	}
	entries, err := os.ReadDir(r.toolsRoot)
	if err != nil {
		// Absent tools root is a normal configuration, not an error
		return ""
	}

	want := map[string]bool{normalizeName(desc.Name): true, normalizeName(desc.RootDir): true}
	for _, a := range desc.Aliases {
		want[normalizeName(a)] = true
	}

	var fallback string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dirName := normalizeName(e.Name())
		if want[dirName] {
			return filepath.Join(r.toolsRoot, e.Name())
		}
		if fallback == "" && want[stripVersion(dirName)] {
			fallback = filepath.Join(r.toolsRoot, e.Name())
		}
	}
	return fallback
}

var versionSuffix = regexp.MustCompile(`[-_. ]?v?[0-9]+(\.[0-9]+)*$`)

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func stripVersion(s string) string {
	base := versionSuffix.ReplaceAllString(s, "")
	if base == "" {
		return s
	}
	return base
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}
