// Package scan lists candidate work files in the input directory.
package scan

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// List returns the names of regular files directly under dir whose name ends
// with ext (case-insensitive), sorted lexicographically so resumed runs make
// reproducible progress. It never opens file contents; validation belongs to
// the per-item pipeline.
func List(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	ext = strings.ToLower(ext)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
