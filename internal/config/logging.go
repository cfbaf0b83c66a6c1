package config

import (
	"fmt"
	"path/filepath"

	"contigscreen/internal/logging"
)

// LoggingConfig configures the info and error log files.
type LoggingConfig struct {
	Dir       string `yaml:"dir"`        // defaults to output.root
	InfoFile  string `yaml:"info_file"`  // progress and informational output
	ErrorFile string `yaml:"error_file"` // warnings, failures, diagnostics
	Level     string `yaml:"level"`      // debug, info, warn, error
	Format    string `yaml:"format"`     // text, json
	Stderr    bool   `yaml:"stderr"`     // also print warnings to stderr
}

// Validate checks the logging section.
func (l *LoggingConfig) Validate() error {
	switch l.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", l.Format)
	}
	if l.InfoFile != "" && l.InfoFile == l.ErrorFile {
		return fmt.Errorf("logging.info_file and logging.error_file must differ")
	}
	return nil
}

// Options converts the section into logging options, rooting relative paths
// at outputRoot when no directory is configured.
func (l *LoggingConfig) Options(outputRoot string) logging.Options {
	dir := l.Dir
	if dir == "" {
		dir = outputRoot
	}
	return logging.Options{
		Dir:       filepath.Clean(dir),
		InfoFile:  l.InfoFile,
		ErrorFile: l.ErrorFile,
		Level:     l.Level,
		Format:    l.Format,
		Stderr:    l.Stderr,
	}
}
