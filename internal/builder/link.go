package builder

import (
	"context"
	"errors"

	"github.com/vk/projforge/internal/ctxlog"
	"github.com/vk/projforge/internal/dag"
	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/project"
	"github.com/vk/projforge/internal/target"
)

// Link gives every configuration of every built descriptor its flattened
// dependency list. Calling it again is a no-op for descriptors that are
// already linked.
func (b *Builder) Link() error {
	return b.phase("link", func() {
		b.failCycles()
		for _, e := range b.sortedEntries() {
			if e.state.load() != Built {
				continue
			}
			b.ex.Go(e.prio, func(taskCtx context.Context) {
				b.linkEntry(b.descriptorContext(taskCtx, e, "link"), e)
			})
		}
	})
}

// failCycles fails every descriptor on the first dependency cycle of the type
// graph. Cycles the graph walk does not report are caught while flattening.
func (b *Builder) failCycles() {
	err := b.graph.DetectCycles()
	if err == nil {
		return
	}
	var cycle *dag.CycleError
	if !errors.As(err, &cycle) {
		b.setFatal(errs.Wrap(errs.ErrInternal, err, "cycle detection"))
		return
	}
	for _, name := range cycle.Path {
		if e := b.entry(name); e != nil {
			b.fail(b.descriptorContext(b.ctx, e, "link"), e, errs.Wrap(errs.ErrConfiguration, err, "cannot link"))
		}
	}
}

func (b *Builder) linkEntry(ctx context.Context, e *entry) {
	switch e.state.load() {
	case Built:
	case Linked:
		return
	case Linking:
		b.fail(ctx, e, errs.Internalf("descriptor %q is already being linked", e.name))
		return
	default:
		return
	}

	if err := e.state.transition(e.name, Built, Linking); err != nil {
		b.fail(ctx, e, err)
		return
	}
	for _, conf := range e.info.Configurations() {
		deps, included, err := b.flatten(e.name, conf)
		if err != nil {
			b.fail(ctx, e, errs.Wrap(errs.KindOf(err), err, "target %q", conf.Target().String()))
			return
		}
		conf.SetResolvedDependencies(deps, included)
	}
	if err := e.state.transition(e.name, Linking, Linked); err != nil {
		b.fail(ctx, e, err)
		return
	}
	ctxlog.FromContext(ctx).Debug("Descriptor linked.", "configurations", len(e.info.Configurations()))
}

// flatten collects the transitive dependencies of conf in depth-first order,
// each descriptor type once. A type reached with two different targets is
// ambiguous. Solution inclusion lists are not transitive.
func (b *Builder) flatten(owner string, conf *project.Configuration) (deps, included []*project.Configuration, err error) {
	chosen := make(map[string]*project.Configuration)
	onPath := map[string]bool{owner: true}

	var visit func(c *project.Configuration) error
	visit = func(c *project.Configuration) error {
		for _, d := range c.Dependencies() {
			if onPath[d.Type] {
				return errs.Configf("dependency cycle through %q", d.Type)
			}
			dc, err := b.dependencyConfiguration(c, d)
			if err != nil {
				return err
			}
			if prev, seen := chosen[d.Type]; seen {
				if prev != dc {
					return errs.Configf("ambiguous dependency target: %q is required as both %q and %q",
						d.Type, prev.Target().String(), dc.Target().String())
				}
				continue
			}
			chosen[d.Type] = dc
			deps = append(deps, dc)

			onPath[d.Type] = true
			if err := visit(dc); err != nil {
				return err
			}
			delete(onPath, d.Type)
		}
		return nil
	}
	if err := visit(conf); err != nil {
		return nil, nil, err
	}

	for _, p := range conf.Projects() {
		pc, err := b.dependencyConfiguration(conf, p)
		if err != nil {
			return nil, nil, err
		}
		included = append(included, pc)
	}
	return deps, included, nil
}

// dependencyConfiguration finds the configuration of d matching the target of
// the dependent configuration c.
func (b *Builder) dependencyConfiguration(c *project.Configuration, d project.Dependency) (*project.Configuration, error) {
	de := b.entry(d.Type)
	if de == nil || de.info == nil {
		return nil, errs.Configf("unknown dependency type %q", d.Type)
	}
	switch st := de.state.load(); st {
	case Failed:
		return nil, errs.Configf("dependency %q failed", d.Type)
	case Unscheduled, Building:
		return nil, errs.Internalf("dependency %q is %s during link", d.Type, st)
	}

	want := de.info.Layout.Project(c.Target())
	for _, o := range d.Overrides {
		want = want.With(o)
	}
	dc, ok := de.info.Configuration(want)
	if !ok {
		return nil, errs.Configf("dependency %q has no configuration for target %q (available: %v)",
			d.Type, want.String(), targetNames(de.info.Targets()))
	}
	return dc, nil
}

func targetNames(ts []target.Target) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}
