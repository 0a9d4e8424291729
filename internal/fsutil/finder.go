// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FindFilesByExtension expands each path into the files ending with extension.
// A directory is searched recursively, a glob pattern ("defs/**/*.hcl") is
// matched as is, and a plain file is kept when its extension matches. A path
// that exists is never read as a pattern. Paths that do not exist are skipped.
// The result is sorted and free of duplicates.
func FindFilesByExtension(extension string, paths ...string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	seen := make(map[string]struct{})
	add := func(p string) {
		if strings.HasSuffix(p, extension) {
			seen[filepath.Clean(p)] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if err != nil {
			if !containsGlob(path) {
				continue
			}
			matches, err := doublestar.FilepathGlob(path, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("glob error in %q: %w", path, err)
			}
			for _, m := range matches {
				add(m)
			}
			continue
		}
		if !info.IsDir() {
			add(path)
			continue
		}

		// Matching inside the directory's own filesystem keeps meta characters
		// in path from being read as a pattern.
		matches, err := doublestar.Glob(os.DirFS(path), "**/*"+extension, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to search %s: %w", path, err)
		}
		for _, m := range matches {
			add(filepath.Join(path, filepath.FromSlash(m)))
		}
	}

	files := make([]string, 0, len(seen))
	for p := range seen {
		files = append(files, p)
	}
	sort.Strings(files)
	return files, nil
}

func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
