package config

import "fmt"

// ConcurrencyConfig bounds the worker pool of each phase. A value of 1 keeps
// the phase sequential.
type ConcurrencyConfig struct {
	Setup     int `yaml:"setup"`     // distinct databases set up at once
	Scans     int `yaml:"scans"`     // (sample, database) scans at once
	Summaries int `yaml:"summaries"` // summaries at once
}

// Validate rejects negative limits. Zero falls back to 1.
func (c *ConcurrencyConfig) Validate() error {
	if c.Setup < 0 || c.Scans < 0 || c.Summaries < 0 {
		return fmt.Errorf("concurrency limits must be non-negative")
	}
	return nil
}

// SetupWorkers returns the effective setup pool size.
func (c *ConcurrencyConfig) SetupWorkers() int { return atLeastOne(c.Setup) }

// ScanWorkers returns the effective scan pool size.
func (c *ConcurrencyConfig) ScanWorkers() int { return atLeastOne(c.Scans) }

// SummaryWorkers returns the effective summary pool size.
func (c *ConcurrencyConfig) SummaryWorkers() int { return atLeastOne(c.Summaries) }

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
