package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	valid := Config{DefinitionPath: "defs", OutputDir: "out"}

	testCases := []struct {
		name     string
		mutate   func(c *Config)
		wantErrs []string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "valid with pattern and level", mutate: func(c *Config) { c.Only = "lib*"; c.LogLevel = "warn" }},
		{
			name:     "missing definition path",
			mutate:   func(c *Config) { c.DefinitionPath = "" },
			wantErrs: []string{"DefinitionPath is a required"},
		},
		{
			name:     "several problems are reported together",
			mutate:   func(c *Config) { c.OutputDir = ""; c.WorkerCount = -1; c.LogLevel = "loud" },
			wantErrs: []string{"OutputDir is a required", "WorkerCount must not be negative", `unknown log level "loud"`},
		},
		{
			name:     "bad pattern",
			mutate:   func(c *Config) { c.Only = "[" },
			wantErrs: []string{`invalid descriptor pattern "["`},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			got, err := NewConfig(cfg)
			if len(tc.wantErrs) == 0 {
				require.NoError(t, err)
				assert.Equal(t, cfg, *got)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "validation failed:"))
			for _, want := range tc.wantErrs {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	testCases := []struct {
		name      string
		level     string
		format    string
		wantDebug bool
		wantJSON  bool
	}{
		{name: "debug text", level: "debug", format: "text", wantDebug: true},
		{name: "info json", level: "info", format: "json", wantJSON: true},
		{name: "unknown level falls back to info", level: "loud", format: "text"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(tc.level, tc.format, &buf)
			logger.Debug("debug line")
			logger.Info("info line")

			out := buf.String()
			assert.Equal(t, tc.wantDebug, strings.Contains(out, "debug line"))
			assert.Contains(t, out, "info line")
			assert.Equal(t, tc.wantJSON, strings.HasPrefix(out, "{"))
		})
	}
}
