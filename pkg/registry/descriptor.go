package registry

import (
	"strings"
	"time"
)

// ToolKind enumerates the analyzer families the pipeline knows how to
// drive. Unknown kinds are never invented at runtime: a name either maps
// to a catalog descriptor or resolution fails.
type ToolKind string

const (
	KindSlither    ToolKind = "slither"
	KindMythril    ToolKind = "mythril"
	KindEchidna    ToolKind = "echidna"
	KindSecurify   ToolKind = "securify"
	KindMedusa     ToolKind = "medusa"
	KindFuzzUtils  ToolKind = "fuzz-utils"
	KindSolcSelect ToolKind = "solc-select"
	KindUnknown    ToolKind = "unknown"
)

// OutputFormat declares which parser adapter handles a tool's output.
// The adapter is selected from the descriptor, never by sniffing bytes.
type OutputFormat string

const (
	OutputJSON  OutputFormat = "json"
	OutputSARIF OutputFormat = "sarif"
	OutputText  OutputFormat = "text"
)

// ToolDescriptor is the static contract for one analyzer: how to find it,
// how to invoke it, and how to read what it prints.
type ToolDescriptor struct {
	Name           string
	Kind           ToolKind
	Aliases        []string
	Binary         string   // executable name probed on PATH and under the tool directory
	RootDir        string   // expected subdirectory beneath the tools root
	Entry          []string // interpreter invocation, relative to the tool directory
	ArgsTemplate   []string // default argument list, "{target}" is substituted
	Output         OutputFormat
	DefaultTimeout time.Duration
	Fuzzer         bool
	Utility        bool // support tool, excluded from the default audit set
	// SeverityMap translates the tool's severity vocabulary to the
	// canonical scale. Keys are lowercased tool words.
	SeverityMap map[string]string
}

// BuildArgs renders the final argument list for an invocation. Explicit
// extra args replace the template entirely, matching manual invocation
// semantics; otherwise the template is rendered with the target.
func (d *ToolDescriptor) BuildArgs(target string, extra []string) []string {
	if len(extra) > 0 {
		return append([]string(nil), extra...)
	}
	args := make([]string, 0, len(d.ArgsTemplate))
	for _, a := range d.ArgsTemplate {
		if a == "{target}" {
			if target == "" {
				continue
			}
			args = append(args, target)
			continue
		}
		args = append(args, strings.ReplaceAll(a, "{target}", target))
	}
	return args
}

// Timeout returns the per-tool wall-clock budget
func (d *ToolDescriptor) Timeout() time.Duration {
	if d.DefaultTimeout > 0 {
		return d.DefaultTimeout
	}
	return 300 * time.Second
}

// Catalog returns the built-in analyzer descriptors. Fuzzing campaigns get
// a longer budget than single-pass analyzers.
func Catalog() []*ToolDescriptor {
	return []*ToolDescriptor{
		{
			Name:           "slither",
			Kind:           KindSlither,
			Binary:         "slither",
			RootDir:        "slither",
			Entry:          []string{"python3", "slither/slither.py"},
			ArgsTemplate:   []string{"{target}", "--json", "-"},
			Output:         OutputJSON,
			DefaultTimeout: 300 * time.Second,
			SeverityMap: map[string]string{
				"high":          "High",
				"medium":        "Medium",
				"low":           "Low",
				"informational": "Info",
				"optimization":  "Info",
			},
		},
		{
			Name:           "mythril",
			Kind:           KindMythril,
			Aliases:        []string{"myth", "mythril2.0"},
			Binary:         "myth",
			RootDir:        "mythril2.0",
			Entry:          []string{"python3", "mythril/mythril"},
			ArgsTemplate:   []string{"analyze", "{target}", "-o", "json"},
			Output:         OutputJSON,
			DefaultTimeout: 300 * time.Second,
			SeverityMap: map[string]string{
				"high":   "High",
				"medium": "Medium",
				"low":    "Low",
			},
		},
		{
			Name:           "echidna",
			Kind:           KindEchidna,
			Aliases:        []string{"echidna-test"},
			Binary:         "echidna-test",
			RootDir:        "echidna",
			Entry:          []string{"echidna-test"},
			ArgsTemplate:   []string{"{target}", "--format", "text"},
			Output:         OutputText,
			DefaultTimeout: 600 * time.Second,
			Fuzzer:         true,
			SeverityMap: map[string]string{
				"failed":    "High",
				"falsified": "High",
				"passed":    "Info",
			},
		},
		{
			Name:           "securify",
			Kind:           KindSecurify,
			Aliases:        []string{"securify2"},
			Binary:         "securify",
			RootDir:        "securify2",
			Entry:          []string{"python3", "-m", "securify"},
			ArgsTemplate:   []string{"{target}"},
			Output:         OutputSARIF,
			DefaultTimeout: 300 * time.Second,
			SeverityMap: map[string]string{
				"critical": "Critical",
				"error":    "High",
				"warning":  "Medium",
				"note":     "Low",
				"none":     "Info",
			},
		},
		{
			Name:           "medusa",
			Kind:           KindMedusa,
			Binary:         "medusa",
			RootDir:        "medusa",
			Entry:          []string{"python3", "-m", "medusa"},
			ArgsTemplate:   []string{"fuzz", "--target", "{target}"},
			Output:         OutputText,
			DefaultTimeout: 600 * time.Second,
			Fuzzer:         true,
			SeverityMap: map[string]string{
				"failed":    "High",
				"falsified": "High",
				"panic":     "High",
			},
		},
		{
			Name:           "fuzz-utils",
			Kind:           KindFuzzUtils,
			Aliases:        []string{"fuzz_utils"},
			Binary:         "fuzz-utils",
			RootDir:        "fuzz-utils",
			Entry:          []string{"python3", "-m", "fuzz_utils"},
			ArgsTemplate:   []string{"{target}"},
			Output:         OutputText,
			DefaultTimeout: 300 * time.Second,
			Utility:        true,
			SeverityMap: map[string]string{
				"high":   "High",
				"medium": "Medium",
				"low":    "Low",
			},
		},
		{
			Name:           "solc-select",
			Kind:           KindSolcSelect,
			Aliases:        []string{"solc_select"},
			Binary:         "solc-select",
			RootDir:        "solc-select",
			Entry:          []string{"solc-select"},
			ArgsTemplate:   []string{"versions"},
			Output:         OutputText,
			DefaultTimeout: 60 * time.Second,
			Utility:        true,
			SeverityMap:    map[string]string{},
		},
	}
}
