package extractor

import (
	"fmt"
	"os"
	"path/filepath"
)

// workspaceDirMode keeps run directories private to the invoking user.
const workspaceDirMode os.FileMode = 0o700

// Workspace is the run-scoped temporary directory every stage writes into.
// Callers must defer Close right after NewWorkspace succeeds.
type Workspace struct {
	root string
}

// NewWorkspace creates a fresh workspace under parent (the OS temp dir when empty).
func NewWorkspace(parent string) (*Workspace, error) {
	root, err := os.MkdirTemp(parent, "fwsync-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{root: root}, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// Dir creates a new subdirectory. It fails if the directory already exists,
// so a component can never write into another one's output.
func (w *Workspace) Dir(name string) (string, error) {
	dir := filepath.Join(w.root, name)
	if err := os.Mkdir(dir, workspaceDirMode); err != nil {
		return "", fmt.Errorf("create workspace dir: %w", err)
	}

	return dir, nil
}

// Close removes the workspace and everything in it.
func (w *Workspace) Close() error {
	if w == nil || w.root == "" {
		return nil
	}

	return os.RemoveAll(w.root)
}
