package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/projforge/internal/errs"
)

const definitions = `
project "zlib" {
  targets {
    Platform   = ["linux", "win64"]
    DevEnv     = "make"
    OutputType = "lib"
  }

  configuration {
    project_path      = "build/[target.Platform]"
    project_file_name = "[project.Name]"
    output_path       = "[output]/lib/[target.Platform]"
    target_file_name  = "libz.a"
    source_files      = ["adler32.c", "inflate.c"]
  }
}

project "app" {
  targets {
    Platform = ["linux", "win64"]
    DevEnv   = "make"
  }

  configuration {
    project_path      = "build/[target.Platform]"
    project_file_name = "[project.Name]"
    output_path       = "[output]/bin/[target.Platform]"
    target_file_name  = "app"
    source_files      = ["main.c"]
    defines           = ["APP_VERSION=${var.version}"]

    dependency "zlib" {
      overrides = { OutputType = "lib" }
    }
  }
}

variables {
  version = "1.2"
}
`

func writeDefinitions(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects.hcl"), []byte(content), 0o644))
	return dir
}

func newTestConfig(t *testing.T, defs string) *Config {
	t.Helper()
	out := t.TempDir()
	cfg, err := NewConfig(Config{
		DefinitionPath: writeDefinitions(t, defs),
		OutputDir:      out,
		ReportPath:     filepath.Join(out, "reports", "report.yaml"),
		MetricsFile:    filepath.Join(out, "projforge.prom"),
		LogFormat:      "text",
		WorkerCount:    4,
	})
	require.NoError(t, err)
	return cfg
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApp_Run_GeneratesProjects(t *testing.T) {
	cfg := newTestConfig(t, definitions)
	testApp, logs := SetupAppTest(t, cfg)

	require.NoError(t, testApp.Run(context.Background()))

	for _, p := range []string{"linux", "win64"} {
		assert.FileExists(t, filepath.Join(cfg.OutputDir, "build", p, "zlib.mk"))
		appMk := readFile(t, filepath.Join(cfg.OutputDir, "build", p, "app.mk"))
		assert.Contains(t, appMk, filepath.Join(cfg.OutputDir, "lib", p, "libz.a"))
		assert.Contains(t, appMk, "-DAPP_VERSION=1.2")
	}

	report := readFile(t, cfg.ReportPath)
	assert.Contains(t, report, "run_id:")
	assert.Contains(t, report, "descriptor: app")
	assert.NotContains(t, report, "state: failed")

	prom := readFile(t, cfg.MetricsFile)
	assert.Contains(t, prom, `projforge_files_total{result="generated"} 4`)
	assert.Contains(t, prom, `projforge_descriptors{kind="project",state="done"} 2`)

	assert.Contains(t, logs.String(), "run_id=")
	assert.Contains(t, logs.String(), "Generation finished.")
}

func TestApp_Run_SecondRunSkipsUnchangedFiles(t *testing.T) {
	cfg := newTestConfig(t, definitions)
	first, _ := SetupAppTest(t, cfg)
	require.NoError(t, first.Run(context.Background()))

	second, _ := SetupAppTest(t, cfg)
	require.NoError(t, second.Run(context.Background()))

	prom := readFile(t, cfg.MetricsFile)
	assert.Contains(t, prom, `projforge_files_total{result="generated"} 0`)
	assert.Contains(t, prom, `projforge_files_total{result="skipped"} 4`)
}

func TestApp_Run_OnlySelectsDescriptors(t *testing.T) {
	cfg := newTestConfig(t, definitions)
	cfg.Only = "z*"
	testApp, _ := SetupAppTest(t, cfg)

	require.NoError(t, testApp.Run(context.Background()))

	assert.FileExists(t, filepath.Join(cfg.OutputDir, "build", "linux", "zlib.mk"))
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "build", "linux", "app.mk"))
}

func TestApp_Run_FailedDescriptorStillWritesReport(t *testing.T) {
	cfg := newTestConfig(t, definitions+`
project "broken" {
  targets {
    Platform = "linux"
    DevEnv   = "make"
  }
  configuration {
    project_path      = "build"
    project_file_name = "broken"
    dependencies      = ["missing"]
  }
}
`)
	testApp, _ := SetupAppTest(t, cfg)

	err := testApp.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation failed")
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	report := readFile(t, cfg.ReportPath)
	assert.Contains(t, report, "descriptor: broken")
	assert.Contains(t, report, "state: failed")
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "build", "linux", "app.mk"), "other descriptors still generate")
}

func TestApp_Run_LoadErrors(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "missing definitions",
			mutate:  func(cfg *Config) { cfg.DefinitionPath = filepath.Join(t.TempDir(), "nope") },
			wantErr: "failed to load definitions",
		},
		{
			name:    "pattern matches nothing",
			mutate:  func(cfg *Config) { cfg.Only = "nothing*" },
			wantErr: `no descriptor matches "nothing*"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newTestConfig(t, definitions)
			tc.mutate(cfg)
			testApp, _ := SetupAppTest(t, cfg)

			err := testApp.Run(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.NoFileExists(t, cfg.ReportPath)
		})
	}
}

func TestSelectDescriptors(t *testing.T) {
	names := []string{"app", "zlib", "zstd"}
	testCases := []struct {
		name    string
		pattern string
		want    []string
		wantErr bool
	}{
		{name: "empty selects all", pattern: "", want: names},
		{name: "prefix", pattern: "z*", want: []string{"zlib", "zstd"}},
		{name: "alternatives", pattern: "{app,zstd}", want: []string{"app", "zstd"}},
		{name: "no match", pattern: "lib*", wantErr: true},
		{name: "bad pattern", pattern: "[", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := selectDescriptors(names, tc.pattern)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errs.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
