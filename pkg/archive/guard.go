package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chatlens/pkg/chatlog"
)

const defaultDataDirName = ".chatlens/data"

// Guard resolves archive paths and keeps them inside the data root. Shared
// conversations are symlinks between access-code trees, so containment is
// checked against the whole data root after symlink evaluation.
type Guard struct {
	rootPath string
}

// NewGuard resolves the data root and ensures the directory exists.
func NewGuard(dataRoot string) (*Guard, error) {
	resolved, err := ResolveRoot(dataRoot)
	if err != nil {
		return nil, err
	}

	return &Guard{rootPath: resolved}, nil
}

// ResolveRoot normalizes data root input and creates it when missing.
func ResolveRoot(dataRoot string) (string, error) {
	trimmed := strings.TrimSpace(dataRoot)
	if trimmed == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(homeDir, defaultDataDirName)
	}

	expanded, err := expandHome(trimmed)
	if err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve absolute data root: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	if err := os.MkdirAll(cleanPath, 0o755); err != nil {
		return "", fmt.Errorf("create data root: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		return "", chatlog.StorageError(err, "resolve data root")
	}

	return filepath.Clean(resolved), nil
}

// Root returns the normalized absolute data root.
func (g *Guard) Root() string {
	if g == nil {
		return ""
	}

	return g.rootPath
}

// ResolvePath joins path segments under the root. Every segment must be a
// single plain name; the evaluated result must stay inside the root.
func (g *Guard) ResolvePath(segments ...string) (string, error) {
	if g == nil {
		return "", chatlog.NewError(chatlog.ErrorInvalidPath, "archive guard is nil")
	}

	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, g.rootPath)
	for _, segment := range segments {
		if err := validateSegment(segment); err != nil {
			return "", err
		}
		parts = append(parts, segment)
	}

	joined := filepath.Join(parts...)
	effectivePath, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if os.IsNotExist(err) {
			return "", chatlog.Errorf(chatlog.ErrorNotFound, "%s does not exist", strings.Join(segments, "/"))
		}
		return "", chatlog.StorageError(err, "resolve path")
	}

	effectivePath = filepath.Clean(effectivePath)
	if !isWithin(g.rootPath, effectivePath) {
		return "", chatlog.NewError(chatlog.ErrorInvalidPath, "resolved path escapes data root")
	}

	return effectivePath, nil
}

// RelPath returns a root-relative path when representable.
func (g *Guard) RelPath(path string) string {
	if g == nil {
		return filepath.Clean(path)
	}

	rel, err := filepath.Rel(g.rootPath, path)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return filepath.Clean(path)
	}

	return filepath.Clean(rel)
}

func validateSegment(segment string) error {
	trimmed := strings.TrimSpace(segment)
	switch {
	case trimmed == "":
		return chatlog.NewError(chatlog.ErrorInvalidPath, "path segment must not be empty")
	case trimmed != segment:
		return chatlog.NewError(chatlog.ErrorInvalidPath, "path segment must not have surrounding whitespace")
	case segment == "." || segment == "..":
		return chatlog.NewError(chatlog.ErrorInvalidPath, "path segment must not be a relative reference")
	case strings.ContainsAny(segment, `/\`) || strings.ContainsRune(segment, 0):
		return chatlog.NewError(chatlog.ErrorInvalidPath, "path segment must be a single name")
	}

	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, strings.TrimPrefix(path[1:], string(filepath.Separator))), nil
}

func isWithin(root string, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}

	return !filepath.IsAbs(rel)
}
