package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultManifest is the manifest file name under the output root.
const DefaultManifest = "sample_manifest.txt"

// Manifest is the append-only list of discovered sample identities, one per
// line. Entries from earlier runs are kept.
type Manifest struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenManifest opens path for appending, creating it and its parent
// directory if needed.
func OpenManifest(path string) (*Manifest, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	return &Manifest{path: path, f: f}, nil
}

// Path returns the manifest file path.
func (m *Manifest) Path() string { return m.path }

// Append records one sample identity.
func (m *Manifest) Append(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return fmt.Errorf("manifest %s is closed", m.path)
	}
	if _, err := m.f.WriteString(name + "\n"); err != nil {
		return fmt.Errorf("failed to append to manifest: %w", err)
	}
	return nil
}

// Record appends every sample in order.
func (m *Manifest) Record(samples []Sample) error {
	for _, s := range samples {
		if err := m.Append(s.Name); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the file. Safe to call more than once.
func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return nil
	}
	err := m.f.Close()
	m.f = nil
	return err
}
