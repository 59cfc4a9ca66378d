package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes the pipeline distinguishes
var (
	// ErrToolNotFound indicates discovery exhausted every candidate location
	ErrToolNotFound = errors.New("tool not found")

	// ErrExecutionFailure indicates a tool process could not be started or crashed
	ErrExecutionFailure = errors.New("execution failure")

	// ErrTimeout indicates a tool exceeded its wall-clock budget
	ErrTimeout = errors.New("timeout")

	// ErrAccessDenied indicates a path outside the sandbox allow-list
	ErrAccessDenied = errors.New("access denied")

	// ErrIncompleteInput indicates report assembly received findings missing
	// required triage fields
	ErrIncompleteInput = errors.New("incomplete input")

	// ErrServiceUnavailable indicates an external analysis service did not answer
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")
)

// ToolError attributes a failure to a single tool run. Tool errors are
// recorded on the execution result and never abort the surrounding audit.
type ToolError struct {
	Tool  string
	Cause error
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Tool, e.Cause)
	}
	return e.Tool + ": tool error"
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// NewTool wraps an error with the tool it belongs to
func NewTool(tool string, err error) error {
	if err == nil {
		return nil
	}
	return &ToolError{Tool: tool, Cause: err}
}

// NewToolf creates a new tool-attributed error with formatting
func NewToolf(tool, format string, args ...interface{}) error {
	return &ToolError{Tool: tool, Cause: fmt.Errorf(format, args...)}
}

// FatalError wraps an error that must abort the operation that raised it
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fatal: %v", e.Cause)
	}
	return "fatal error"
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}

// NewFatal marks an error as fatal to the current operation
func NewFatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Cause: err}
}

// NewFatalf creates a new fatal error with formatting
func NewFatalf(format string, args ...interface{}) error {
	return &FatalError{Cause: fmt.Errorf(format, args...)}
}

// IsFatal reports whether an error must abort the surrounding operation.
// Sandbox violations and incomplete report input are fatal even when not
// explicitly wrapped; everything attributed to a single tool is not.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var fatalErr *FatalError
	if errors.As(err, &fatalErr) {
		return true
	}

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return false
	}

	if errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrIncompleteInput) {
		return true
	}

	// Unknown errors default to non-fatal and are recorded per tool
	return false
}

// ToolName extracts the tool a failure belongs to, if any
func ToolName(err error) string {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Tool
	}
	return ""
}
