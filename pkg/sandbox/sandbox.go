package sandbox

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/solaudit/solaudit/pkg/errs"
)

// Guard restricts analysis targets to an allow-list of directory roots.
// Every target is checked before any child process is spawned.
type Guard struct {
	roots []string
}

// New builds a guard from the given roots. Relative roots are resolved
// against the current working directory.
func New(roots ...string) (*Guard, error) {
	g := &Guard{}
	for _, r := range roots {
		if r == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, err
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		g.roots = append(g.roots, filepath.Clean(abs))
	}
	return g, nil
}

// Roots returns the configured allow-list
func (g *Guard) Roots() []string {
	return g.roots
}

// Check returns ErrAccessDenied when path lies outside every allowed root.
// Symlinks are resolved before comparison so links cannot escape the list.
func (g *Guard) Check(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errs.NewFatalf("resolving %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	abs = filepath.Clean(abs)

	for _, root := range g.roots {
		if abs == root || strings.HasPrefix(abs, root+string(os.PathSeparator)) {
			return nil
		}
	}
	return errs.NewFatalf("%s is outside the allowed roots: %w", path, errs.ErrAccessDenied)
}
