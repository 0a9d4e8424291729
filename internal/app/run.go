package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vk/projforge/internal/builder"
	"github.com/vk/projforge/internal/ctxlog"
	"github.com/vk/projforge/internal/generator"
	"github.com/vk/projforge/internal/metrics"
	"github.com/vk/projforge/internal/resolver"
)

// Run executes one generation run. It returns an error when the run aborted
// or when any descriptor failed; the report and metrics are written either
// way once the builder has run.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("App.Run method started.")

	defs, requested, err := a.load(ctx)
	if err != nil {
		return err
	}

	opts := builder.Options{
		Workers:    a.config.WorkerCount,
		Serial:     a.config.Serial,
		OutputRoot: a.config.OutputDir,
		Params: map[string]any{
			"output": a.config.OutputDir,
			"var":    defs.Vars,
		},
	}
	if a.config.ResolverExtended {
		opts.ResolverOptions = append(opts.ResolverOptions, resolver.WithDelimiters(resolver.Extended...))
	}

	b, err := builder.New(ctx, defs.Projects, defs.Fragments, generator.NewManager(a.writers...), opts)
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}

	logger.Info("Starting generation...", "requested", len(requested), "workers", a.config.WorkerCount, "serial", a.config.Serial)
	report, fatal := b.Run(requested...)
	report.RunID = runID

	if err := a.writeOutputs(ctx, report); err != nil {
		return err
	}
	if fatal != nil {
		return fmt.Errorf("generation aborted: %w", fatal)
	}
	if err := report.Err(); err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	logger.Info("Generation finished.", "descriptors", len(report.Outputs), "generated", len(report.Generated()))
	logger.Debug("App.Run method finished.")
	return nil
}

// writeOutputs writes the optional report and metrics files.
func (a *App) writeOutputs(ctx context.Context, report *builder.Report) error {
	logger := ctxlog.FromContext(ctx)

	if path := a.config.ReportPath; path != "" {
		if err := writeReport(path, report); err != nil {
			return err
		}
		logger.Info("Report written.", "path", path)
	}

	if path := a.config.MetricsFile; path != "" {
		rec := metrics.New()
		rec.Observe(report, a.now())
		if err := rec.WriteFile(path); err != nil {
			return err
		}
		logger.Info("Metrics written.", "path", path)
	}
	return nil
}

func writeReport(path string, report *builder.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report %s: %w", path, err)
	}
	if err := report.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
