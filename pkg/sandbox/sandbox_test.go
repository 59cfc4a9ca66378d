package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solaudit/solaudit/pkg/errs"
)

func TestCheckInsideRoot(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "contracts", "Token.sol")
	require.NoError(t, os.MkdirAll(filepath.Dir(sub), 0755))
	require.NoError(t, os.WriteFile(sub, []byte("contract Token {}"), 0644))

	g, err := New(root)
	require.NoError(t, err)

	assert.NoError(t, g.Check(root))
	assert.NoError(t, g.Check(sub))
}

func TestCheckOutsideRoot(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()

	g, err := New(root)
	require.NoError(t, err)

	err = g.Check(other)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAccessDenied))
	assert.True(t, errs.IsFatal(err))
}

func TestCheckPrefixConfusion(t *testing.T) {
	// /tmp/x/proj must not admit /tmp/x/project-evil
	base := t.TempDir()
	root := filepath.Join(base, "proj")
	sibling := filepath.Join(base, "project-evil")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.MkdirAll(sibling, 0755))

	g, err := New(root)
	require.NoError(t, err)

	assert.NoError(t, g.Check(root))
	assert.Error(t, g.Check(sibling))
}

func TestCheckDotDotEscape(t *testing.T) {
	root := t.TempDir()

	g, err := New(root)
	require.NoError(t, err)

	escape := filepath.Join(root, "..", "elsewhere")
	err = g.Check(escape)
	assert.True(t, errors.Is(err, errs.ErrAccessDenied))
}

func TestCheckSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(outside, link))

	g, err := New(root)
	require.NoError(t, err)

	err = g.Check(link)
	assert.True(t, errors.Is(err, errs.ErrAccessDenied))
}

func TestMultipleRoots(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()

	g, err := New(a, b, "")
	require.NoError(t, err)

	assert.Len(t, g.Roots(), 2)
	assert.NoError(t, g.Check(filepath.Join(a, "x.sol")))
	assert.NoError(t, g.Check(filepath.Join(b, "y.sol")))
}
