// Package discovery enumerates assembly files in an input directory and
// records the resulting sample identities in the run manifest.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultSuffix is the recognized assembly file suffix.
const DefaultSuffix = ".fasta"

// Sample is one input assembly. Name is the file name without its suffix.
type Sample struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// SkippedEntry is a directory entry that was not treated as a sample.
type SkippedEntry struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result is the outcome of one discovery pass.
type Result struct {
	Samples []Sample
	Skipped []SkippedEntry
}

// Names returns the sample identities in discovery order.
func (r Result) Names() []string {
	names := make([]string, len(r.Samples))
	for i, s := range r.Samples {
		names[i] = s.Name
	}
	return names
}

// InvalidInputError reports an input directory that is missing or unusable.
// It is the only condition that aborts a run.
type InvalidInputError struct {
	Path string
	Err  error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input directory %s: %v", e.Path, e.Err)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

// ValidateRoot checks that root exists and is a directory.
func ValidateRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return &InvalidInputError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return &InvalidInputError{Path: root, Err: fmt.Errorf("not a directory")}
	}
	return nil
}

// Discover lists the regular files directly inside root whose names end with
// suffix, sorted by name. Everything else is skipped with a diagnostic.
func Discover(root, suffix string, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}
	if err := ValidateRoot(root); err != nil {
		return Result{}, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return Result{}, &InvalidInputError{Path: root, Err: err}
	}

	var res Result
	skip := func(name, reason string) {
		logger.Warn("skipping entry", zap.String("entry", name), zap.String("reason", reason))
		res.Skipped = append(res.Skipped, SkippedEntry{Name: name, Reason: reason})
	}

	// ReadDir returns entries sorted by file name.
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, suffix) {
			skip(name, "suffix does not match")
			continue
		}

		path := filepath.Join(root, name)
		info, err := os.Stat(path) // follows symlinks
		if err != nil {
			skip(name, err.Error())
			continue
		}
		if !info.Mode().IsRegular() {
			skip(name, "not a regular file")
			continue
		}

		id := strings.TrimSuffix(name, suffix)
		if id == "" {
			skip(name, "empty sample name")
			continue
		}

		res.Samples = append(res.Samples, Sample{Name: id, Path: path})
		logger.Debug("discovered sample", zap.String("sample", id), zap.String("path", path))
	}

	logger.Info("discovery complete",
		zap.String("root", root),
		zap.Int("samples", len(res.Samples)),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}
