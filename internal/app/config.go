package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	DefinitionPath string // hcl file or directory
	OutputDir      string // root of generated files, bound as "[output]"

	// Only selects the requested descriptor types by glob. Empty means all.
	Only string

	ReportPath  string // YAML report, optional
	MetricsFile string // Prometheus textfile, optional

	LogFormat string
	LogLevel  string

	WorkerCount      int // 0 means one per CPU
	Serial           bool
	ResolverExtended bool
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	var problems []string
	if cfg.DefinitionPath == "" {
		problems = append(problems, "DefinitionPath is a required configuration field and cannot be empty")
	}
	if cfg.OutputDir == "" {
		problems = append(problems, "OutputDir is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 0 {
		problems = append(problems, fmt.Sprintf("WorkerCount must not be negative, got %d", cfg.WorkerCount))
	}
	if cfg.Only != "" {
		if _, err := glob.Compile(cfg.Only); err != nil {
			problems = append(problems, fmt.Sprintf("invalid descriptor pattern %q: %v", cfg.Only, err))
		}
	}
	if cfg.LogLevel != "" {
		if _, ok := levels[cfg.LogLevel]; !ok {
			problems = append(problems, fmt.Sprintf("unknown log level %q", cfg.LogLevel))
		}
	}

	if len(problems) > 0 {
		return nil, errors.New("validation failed:\n- " + strings.Join(problems, "\n- "))
	}
	return &cfg, nil
}
