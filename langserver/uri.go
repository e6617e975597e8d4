package langserver

import (
	"path/filepath"
	"strings"

	"github.com/teranos/codelens/errors"
)

const fileScheme = "file://"

// PathToURI converts an absolute path to a file:// URI.
func PathToURI(path string) string {
	return fileScheme + path
}

// URIToPath converts a file:// URI back to a filesystem path. Non-file URIs
// are returned unchanged.
func URIToPath(uri string) string {
	if path, ok := strings.CutPrefix(uri, fileScheme); ok {
		return path
	}
	return uri
}

// ResolveInWorkspace maps a caller-supplied relative path to an absolute path
// under root. It is purely lexical and runs before any filesystem access:
// absolute paths and paths escaping the root via ".." fail with
// ErrFileNotFound, never get silently rescoped.
func ResolveInWorkspace(root, rel string) (string, error) {
	if rel == "" {
		return "", errors.NewFileNotFound("(empty path)")
	}
	if filepath.IsAbs(rel) {
		return "", errors.NewFileNotFound(rel)
	}

	abs := filepath.Join(root, filepath.Clean(rel))

	cleanRoot := filepath.Clean(root)
	if abs != cleanRoot && !strings.HasPrefix(abs, cleanRoot+string(filepath.Separator)) {
		return "", errors.NewFileNotFound(rel)
	}
	return abs, nil
}

// WorkspaceRelative renders an absolute path or file:// URI relative to root
// for display. Falls back to the input when the path lies outside root.
func WorkspaceRelative(root, pathOrURI string) string {
	path := URIToPath(pathOrURI)
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
