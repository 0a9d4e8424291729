package app

import (
	"context"
	"fmt"

	"github.com/gobwas/glob"
	"github.com/vk/projforge/internal/ctxlog"
	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/hcl"
)

// load reads the definitions and picks the descriptor types to request.
func (a *App) load(ctx context.Context) (*hcl.Definitions, []string, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading definitions...", "path", a.config.DefinitionPath)

	defs, err := a.loader.Load(ctx, a.config.DefinitionPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load definitions: %w", err)
	}
	logger.Info("Definitions loaded.", "files", len(defs.Files), "descriptors", len(defs.Projects.Names()), "fragments", defs.Fragments.String())

	requested, err := selectDescriptors(defs.Projects.Names(), a.config.Only)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Descriptors selected.", "pattern", a.config.Only, "requested", requested)
	return defs, requested, nil
}

// selectDescriptors returns the names matching pattern, or every name when
// pattern is empty. Matching nothing is a configuration error.
func selectDescriptors(names []string, pattern string) ([]string, error) {
	if pattern == "" {
		return names, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, errs.Wrap(errs.ErrConfiguration, err, "invalid descriptor pattern %q", pattern)
	}
	var selected []string
	for _, name := range names {
		if g.Match(name) {
			selected = append(selected, name)
		}
	}
	if len(selected) == 0 {
		return nil, errs.Configf("no descriptor matches %q (declared: %v)", pattern, names)
	}
	return selected, nil
}
