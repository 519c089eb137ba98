package resolver

import (
	"os"
	"path/filepath"
	"strings"

	"facet/internal/diag"
)

// Loader supplies imported files. Implementations resolve a path relative to
// the identity of the importing file and return a canonical identity for
// cycle detection plus the file content.
type Loader interface {
	Load(from, path string) (id string, content string, err *diag.Diagnostic)
}

// FSLoader reads imports from the filesystem, confined to a root set: any
// path whose normalized form escapes every configured root is refused with
// R-PATH. No network fetch, ever.
type FSLoader struct {
	Roots []string
}

// NewFSLoader builds a loader rooted at the given directories. Roots are
// normalized to absolute form.
func NewFSLoader(roots ...string) (*FSLoader, error) {
	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		a, err := filepath.Abs(r)
		if err != nil {
			return nil, err
		}
		abs = append(abs, filepath.Clean(a))
	}
	return &FSLoader{Roots: abs}, nil
}

// Load resolves path relative to the importing file and reads it.
func (l *FSLoader) Load(from, path string) (string, string, *diag.Diagnostic) {
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(from), resolved)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", "", diag.New(diag.ResolvePath, "cannot normalize import path %q: %v", path, err)
	}
	abs = filepath.Clean(abs)

	if !l.inRoots(abs) {
		return "", "", diag.New(diag.ResolvePath, "import path %q escapes the configured root set", path)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", diag.New(diag.ResolveNotFound, "imported file %q not found", path)
		}
		return "", "", diag.New(diag.ResolveNotFound, "cannot read imported file %q: %v", path, err)
	}
	return abs, string(data), nil
}

func (l *FSLoader) inRoots(abs string) bool {
	for _, root := range l.Roots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// MemLoader serves imports from an in-memory map keyed by slash-separated
// paths. Used by tests and embedded hosts.
type MemLoader struct {
	Files map[string]string
}

// Load resolves path relative to the importing identity using pure lexical
// path rules.
func (l *MemLoader) Load(from, path string) (string, string, *diag.Diagnostic) {
	resolved := path
	if !strings.HasPrefix(path, "/") && from != "" {
		resolved = filepath.ToSlash(filepath.Join(filepath.Dir(from), path))
	}
	resolved = filepath.ToSlash(filepath.Clean(resolved))
	if strings.HasPrefix(resolved, "..") {
		return "", "", diag.New(diag.ResolvePath, "import path %q escapes the configured root set", path)
	}
	content, ok := l.Files[resolved]
	if !ok {
		return "", "", diag.New(diag.ResolveNotFound, "imported file %q not found", path)
	}
	return resolved, content, nil
}
