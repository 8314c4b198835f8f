// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindFilesByExtension returns every file under path whose name ends with one
// of the given extensions. path may be a single file or a directory, which is
// walked recursively. The result is sorted and free of duplicates.
func FindFilesByExtension(path string, extensions ...string) ([]string, error) {
	if len(extensions) == 0 {
		panic("at least one extension is required")
	}

	matches := func(name string) bool {
		for _, ext := range extensions {
			if strings.HasSuffix(name, ext) {
				return true
			}
		}
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}
	if !info.IsDir() {
		if !matches(info.Name()) {
			return nil, fmt.Errorf("file %s does not have one of the extensions %v", path, extensions)
		}
		return []string{path}, nil
	}

	seen := make(map[string]struct{})
	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !matches(d.Name()) {
			return nil
		}
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
