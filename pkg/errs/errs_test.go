package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{
			name:  "nil error",
			err:   nil,
			fatal: false,
		},
		{
			name:  "access denied sentinel",
			err:   ErrAccessDenied,
			fatal: true,
		},
		{
			name:  "wrapped access denied",
			err:   fmt.Errorf("checking target: %w", ErrAccessDenied),
			fatal: true,
		},
		{
			name:  "incomplete input sentinel",
			err:   ErrIncompleteInput,
			fatal: true,
		},
		{
			name:  "tool not found is per-tool",
			err:   ErrToolNotFound,
			fatal: false,
		},
		{
			name:  "timeout is per-tool",
			err:   ErrTimeout,
			fatal: false,
		},
		{
			name:  "execution failure is per-tool",
			err:   ErrExecutionFailure,
			fatal: false,
		},
		{
			name:  "explicit fatal wrapper",
			err:   NewFatalf("config unreadable"),
			fatal: true,
		},
		{
			name:  "tool wrapper suppresses fatal default",
			err:   NewToolf("slither", "exit status 2"),
			fatal: false,
		},
		{
			name:  "unknown error defaults to non-fatal",
			err:   errors.New("something odd"),
			fatal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestToolErrorUnwrap(t *testing.T) {
	err := NewTool("mythril", ErrTimeout)

	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, "mythril", ToolName(err))
	assert.False(t, IsFatal(err))
}

func TestToolErrorThroughWrapping(t *testing.T) {
	inner := NewToolf("echidna", "killed after deadline: %w", ErrTimeout)
	outer := fmt.Errorf("dispatching: %w", inner)

	assert.Equal(t, "echidna", ToolName(outer))
	assert.True(t, errors.Is(outer, ErrTimeout))
}

func TestNewToolNil(t *testing.T) {
	assert.Nil(t, NewTool("slither", nil))
	assert.Nil(t, NewFatal(nil))
}

func TestFatalWrapsSentinel(t *testing.T) {
	err := NewFatal(fmt.Errorf("loading rules: %w", ErrInvalidInput))

	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
