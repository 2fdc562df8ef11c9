package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates dir and its parents with owner/group access and returns
// its absolute path. Relative paths resolve against the working directory.
func EnsureDir(dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// EnsureSubDirs creates each named child of root and returns their paths in
// the same order.
func EnsureSubDirs(root string, names ...string) ([]string, error) {
	base, err := EnsureDir(root)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		p, err := EnsureDir(filepath.Join(base, n))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
