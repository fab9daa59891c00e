// Package archive locates and unpacks library archives. Zip files are
// handled natively; 7z and rar go through the 7z binary with progress
// estimated from output file sizes.
package archive

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Find walks root and returns every file whose extension is in exts.
// Extensions are matched case-insensitively and include the leading dot.
func Find(root string, exts map[string]bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if exts[strings.ToLower(filepath.Ext(path))] {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindGames is Find with a sorted result, for stable listings.
func FindGames(root string, exts map[string]bool) ([]string, error) {
	out, err := Find(root, exts)
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
