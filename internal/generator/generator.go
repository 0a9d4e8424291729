// Package generator turns groups of resolved configurations into files on
// disk. A Manager picks a Writer by the development environment of the group,
// lets it render the files and writes only those whose content changed.
package generator

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/vk/projforge/internal/ctxlog"
	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/project"
	"github.com/vk/projforge/internal/target"
)

// File is one rendered output. Path is relative to the output root.
type File struct {
	Path    string
	Content []byte
}

// Writer renders the files of one group. All configurations of a group share
// the project file path and the development environment, and are sorted by
// target.
type Writer interface {
	Render(ctx context.Context, d project.Descriptor, confs []*project.Configuration) ([]File, error)
}

// Manager dispatches groups to writers. Its writers are fixed once built.
type Manager struct {
	writers  map[string]Writer
	fallback Writer
}

// Option configures a Manager.
type Option func(*Manager)

// WithWriter registers w for the development environment env.
func WithWriter(env string, w Writer) Option {
	return func(m *Manager) { m.writers[env] = w }
}

// WithFallback replaces the writer used for environments without a writer of
// their own.
func WithFallback(w Writer) Option {
	return func(m *Manager) { m.fallback = w }
}

// NewManager returns a manager with the make writer registered for "make" and
// the manifest writer as fallback.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		writers:  map[string]Writer{"make": MakeWriter{}},
		fallback: ManifestWriter{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) writer(env string) Writer {
	if w, ok := m.writers[env]; ok {
		return w
	}
	return m.fallback
}

// Generate renders and writes one group below outputRoot. Files whose content
// is already on disk are reported as skipped.
func (m *Manager) Generate(ctx context.Context, d project.Descriptor, confs []*project.Configuration, outputRoot string) (generated, skipped []string, err error) {
	if len(confs) == 0 {
		return nil, nil, nil
	}
	if confs[0].ProjectFileName == "" {
		return nil, nil, errs.Configf("target %q has no project file name", confs[0].Target().String())
	}
	confs = slices.Clone(confs)
	slices.SortFunc(confs, func(a, b *project.Configuration) int { return target.Compare(a.Target(), b.Target()) })

	env := confs[0].Environment()
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Rendering project files.", "environment", env, "configurations", len(confs))

	files, err := m.writer(env).Render(ctx, d, confs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render %s files: %w", env, err)
	}
	for _, f := range files {
		path := filepath.Join(outputRoot, f.Path)
		written, err := writeIfChanged(path, f.Content)
		if err != nil {
			return generated, skipped, err
		}
		if written {
			generated = append(generated, path)
			logger.Debug("Wrote file.", "file", path, "hash", Hash(f.Content))
		} else {
			skipped = append(skipped, path)
			logger.Debug("File is up to date.", "file", path)
		}
	}
	return generated, skipped, nil
}
