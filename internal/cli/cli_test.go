package cli

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/projforge/internal/app"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want app.Config
	}{
		{
			name: "positional path with defaults",
			args: []string{"defs"},
			want: app.Config{DefinitionPath: "defs", OutputDir: ".", LogFormat: "text", LogLevel: "info"},
		},
		{
			name: "long flag wins over shorthand and positional",
			args: []string{"-config", "a", "-c", "b", "c"},
			want: app.Config{DefinitionPath: "a", OutputDir: ".", LogFormat: "text", LogLevel: "info"},
		},
		{
			name: "shorthand",
			args: []string{"-c", "b"},
			want: app.Config{DefinitionPath: "b", OutputDir: ".", LogFormat: "text", LogLevel: "info"},
		},
		{
			name: "every option",
			args: []string{
				"-output", "gen", "-workers", "3", "-serial", "-only", "lib*",
				"-report", "r.yaml", "-metrics-file", "m.prom",
				"-log-format", "JSON", "-log-level", "Debug", "-resolver-extended", "defs",
			},
			want: app.Config{
				DefinitionPath:   "defs",
				OutputDir:        "gen",
				Only:             "lib*",
				ReportPath:       "r.yaml",
				MetricsFile:      "m.prom",
				LogFormat:        "json",
				LogLevel:         "debug",
				WorkerCount:      3,
				Serial:           true,
				ResolverExtended: true,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			cfg, exit, err := Parse(tc.args, &out)
			require.NoError(t, err)
			require.False(t, exit)
			if diff := cmp.Diff(tc.want, *cfg); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_ExitsCleanly(t *testing.T) {
	for _, args := range [][]string{{"-h"}, {}} {
		var out bytes.Buffer
		cfg, exit, err := Parse(args, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	}
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "unknown flag", args: []string{"-nope"}, wantErr: "flag provided but not defined: -nope"},
		{name: "bad format", args: []string{"-log-format", "xml", "defs"}, wantErr: "invalid log-format"},
		{name: "bad level", args: []string{"-log-level", "loud", "defs"}, wantErr: "invalid log-level"},
		{name: "negative workers", args: []string{"-workers", "-2", "defs"}, wantErr: "WorkerCount must not be negative"},
		{name: "empty output", args: []string{"-output", "", "defs"}, wantErr: "OutputDir is a required"},
		{name: "bad pattern", args: []string{"-only", "[", "defs"}, wantErr: "invalid descriptor pattern"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			_, _, err := Parse(tc.args, &out)
			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantErr)
		})
	}
}
