package builder

import (
	"context"
	"sort"

	"github.com/vk/projforge/internal/ctxlog"
	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/project"
	"github.com/vk/projforge/internal/target"
)

// group is the unit of generation: every used configuration of one
// descriptor that writes the same project file.
type group struct {
	path  string
	confs []*project.Configuration
}

// Generate hands the used configurations of every linked descriptor to the
// generator, one task per project file, and settles each descriptor in Done
// or Failed. Every descriptor still in progress must have been linked.
func (b *Builder) Generate() error {
	if err := b.requireLinked(); err != nil {
		return err
	}
	used := b.usedConfigurations()
	b.reportUnused(used)

	err := b.phase("generate", func() {
		for _, e := range b.sortedEntries() {
			if e.state.load() != Linked {
				continue
			}
			ctx := b.descriptorContext(b.ctx, e, "generate")
			if err := b.checkDependencies(e); err != nil {
				b.fail(ctx, e, err)
				continue
			}
			if err := e.state.transition(e.name, Linked, Generating); err != nil {
				b.fail(ctx, e, err)
				continue
			}

			groups, conflicts := groupByPath(e, used)
			for _, err := range conflicts {
				err = errs.ForDescriptor(err, e.name)
				e.output.addError(err)
				ctxlog.FromContext(ctx).Error("Conflicting configurations.", "error", err)
			}
			for _, g := range groups {
				b.ex.Go(e.prio, func(taskCtx context.Context) {
					b.generateGroup(b.descriptorContext(taskCtx, e, "generate"), e, g)
				})
			}
		}
	})
	b.settle()
	return err
}

// requireLinked fails the run when a descriptor reaches generation in any
// state other than Linked, Done or Failed.
func (b *Builder) requireLinked() error {
	for _, e := range b.sortedEntries() {
		st := e.state.load()
		if st == Linked || st.IsTerminal() {
			continue
		}
		b.fail(b.descriptorContext(b.ctx, e, "generate"), e, errs.Internalf("descriptor %q is %s at generation, want linked", e.name, st))
	}
	return b.Fatal()
}

// usedConfigurations marks the configurations of requested descriptors and
// everything they reach through dependencies and solution inclusion lists.
func (b *Builder) usedConfigurations() map[*project.Configuration]bool {
	used := make(map[*project.Configuration]bool)
	var mark func(c *project.Configuration)
	mark = func(c *project.Configuration) {
		if used[c] {
			return
		}
		used[c] = true
		for _, d := range c.ResolvedDependencies() {
			mark(d)
		}
		for _, p := range c.IncludedProjects() {
			mark(p)
		}
	}

	var roots []string
	for _, e := range b.sortedEntries() {
		if !e.requested || e.state.load() != Linked {
			continue
		}
		roots = append(roots, e.name)
		for _, c := range e.info.Configurations() {
			mark(c)
		}
	}
	ctxlog.FromContext(b.ctx).Debug("Marked used configurations.",
		"requested", roots, "reachable_types", b.graph.Reachable(roots...), "configurations", len(used))
	return used
}

// reportUnused records, per descriptor, the merged targets of configurations
// that nothing uses. They are not generated.
func (b *Builder) reportUnused(used map[*project.Configuration]bool) {
	for _, e := range b.sortedEntries() {
		if e.state.load() != Linked {
			continue
		}
		var unused []target.Target
		for _, c := range e.info.Configurations() {
			if !used[c] {
				unused = append(unused, c.Target())
			}
		}
		if len(unused) == 0 {
			continue
		}
		names := targetNames(target.Merge(unused))
		e.output.setUnused(names)
		ctxlog.FromContext(b.descriptorContext(b.ctx, e, "generate")).Warn("Configurations are not used by any requested descriptor.", "targets", names)
	}
}

// checkDependencies fails e when a descriptor it linked against failed later
// in the link phase.
func (b *Builder) checkDependencies(e *entry) error {
	for _, c := range e.info.Configurations() {
		for _, d := range append(c.ResolvedDependencies(), c.IncludedProjects()...) {
			name := d.Owner().Name
			if de := b.entry(name); de != nil && de.state.load() == Failed {
				return errs.Configf("dependency %q failed", name)
			}
		}
	}
	return nil
}

// groupByPath groups the used configurations of e by project file path,
// sorted by path. A group whose configurations disagree on the development
// environment is dropped and reported as a conflict.
func groupByPath(e *entry, used map[*project.Configuration]bool) ([]group, []error) {
	byPath := make(map[string]*group)
	for _, c := range e.info.Configurations() {
		if !used[c] {
			continue
		}
		p := c.FilePath()
		g, ok := byPath[p]
		if !ok {
			g = &group{path: p}
			byPath[p] = g
		}
		g.confs = append(g.confs, c)
	}

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var (
		groups    []group
		conflicts []error
	)
	for _, p := range paths {
		g := byPath[p]
		if err := checkEnvironment(g); err != nil {
			conflicts = append(conflicts, err)
			continue
		}
		groups = append(groups, *g)
	}
	return groups, conflicts
}

func checkEnvironment(g *group) error {
	first := g.confs[0]
	for _, c := range g.confs[1:] {
		if c.Environment() != first.Environment() {
			return errs.Configf("targets %q and %q both write %q but select different environments %q and %q",
				first.Target().String(), c.Target().String(), g.path, first.Environment(), c.Environment())
		}
	}
	return nil
}

func (b *Builder) generateGroup(ctx context.Context, e *entry, g group) {
	ctx = ctxlog.With(ctx, "path", g.path)
	logger := ctxlog.FromContext(ctx)

	generated, skipped, err := b.gen.Generate(ctx, e.desc, g.confs, b.opts.OutputRoot)
	e.output.addFiles(generated, skipped)
	if err != nil {
		err = errs.ForDescriptor(errs.Wrap(errs.KindOf(err), err, "generating %q", g.path), e.name)
		if errs.IsInternal(err) {
			b.setFatal(err)
		}
		e.output.addError(err)
		logger.Error("Generation failed.", "error", err)
		return
	}
	logger.Debug("Generated project file.", "generated", len(generated), "skipped", len(skipped))
}

// settle moves every generating descriptor to its final state.
func (b *Builder) settle() {
	for _, e := range b.sortedEntries() {
		if e.state.load() != Generating {
			continue
		}
		if failures := e.output.Errors(); len(failures) > 0 {
			e.setErr(failures[0])
			e.state.fail()
			continue
		}
		if err := e.state.transition(e.name, Generating, Done); err != nil {
			b.fail(b.descriptorContext(b.ctx, e, "generate"), e, err)
		}
	}
}
