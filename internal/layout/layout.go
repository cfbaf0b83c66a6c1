// Package layout maps (category, database, sample) keys onto the output
// directory tree:
//
//	{root}/{Category}/{database}/{sample}.tsv
//	{root}/{Category}/{database}_combined_summary.txt
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"contigscreen/internal/catalog"
)

const (
	// ResultExt is the extension of per-sample result files.
	ResultExt = ".tsv"

	// SummarySuffix is appended to a database name to form its summary file.
	// It never ends in ResultExt, so a summary cannot be mistaken for a result.
	SummarySuffix = "_combined_summary.txt"
)

// Layout resolves artifact paths under Root. Paths are pure functions of
// their inputs.
type Layout struct {
	Root string
}

// New returns a Layout rooted at root ("." when empty).
func New(root string) Layout {
	if root == "" {
		root = "."
	}
	return Layout{Root: root}
}

// PairDir is the directory holding every result for one (category, database).
func (l Layout) PairDir(category catalog.Category, database string) string {
	return filepath.Join(l.Root, string(category), database)
}

// ResultPath is where the scan of sample against database is stored.
func (l Layout) ResultPath(category catalog.Category, database, sample string) string {
	return filepath.Join(l.PairDir(category, database), sample+ResultExt)
}

// SummaryPath is where the combined summary for one pair is stored.
func (l Layout) SummaryPath(category catalog.Category, database string) string {
	return filepath.Join(l.Root, string(category), database+SummarySuffix)
}

// EnsurePairDir creates the pair directory if it is absent. Safe to call
// concurrently.
func (l Layout) EnsurePairDir(category catalog.Category, database string) error {
	dir := l.PairDir(category, database)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// Results lists the result files currently present for a pair, sorted by
// name. A missing pair directory yields an empty list.
func (l Layout) Results(category catalog.Category, database string) ([]string, error) {
	dir := l.PairDir(category, database)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, ResultExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// WriteFile writes data to path through a temporary sibling that is renamed
// into place, so readers never observe a partial artifact.
func WriteFile(path string, data []byte) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".*.partial")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
