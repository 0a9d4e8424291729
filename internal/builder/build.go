package builder

import (
	"context"

	"github.com/vk/projforge/internal/ctxlog"
	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/executor"
	"github.com/vk/projforge/internal/project"
	"github.com/vk/projforge/internal/resolver"
	"github.com/vk/projforge/internal/target"
)

// Build instantiates, configures and resolves the requested descriptor types
// and, transitively, every type their configurations depend on. It returns
// once the work graph stops growing.
func (b *Builder) Build(requested ...string) error {
	return b.phase("build", func() {
		for _, name := range requested {
			if _, ok := b.schedule(name, true); !ok {
				b.unknown(name)
			}
		}
	})
}

// schedule creates the entry of a descriptor type on first sight and queues
// its build task. It reports false when no factory is registered for name.
func (b *Builder) schedule(name string, requested bool) (*entry, bool) {
	e, created, ok := b.register(name, requested)
	if !ok || !created {
		return e, ok
	}

	ctx := b.descriptorContext(b.ctx, e, "build")
	if err := e.state.transition(e.name, Unscheduled, Building); err != nil {
		b.fail(ctx, e, err)
		return e, true
	}
	ctxlog.FromContext(ctx).Debug("Scheduling descriptor.", "kind", e.info.Kind, "priority", e.prio)
	b.ex.Go(e.prio, func(taskCtx context.Context) {
		b.build(b.descriptorContext(taskCtx, e, "build"), e)
	})
	return e, true
}

func (b *Builder) register(name string, requested bool) (e *entry, created, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, found := b.entries[name]; found {
		if requested {
			existing.requested = true
		}
		return existing, false, true
	}
	factory, found := b.factories.Lookup(name)
	if !found {
		return nil, false, false
	}

	desc := factory()
	info := desc.Metadata()
	info.Name = name
	if info.Layout == nil {
		info.Layout = b.layout
	}

	e = &entry{name: name, desc: desc, info: info, requested: requested, output: newOutput(name)}
	e.output.Kind = info.Kind.String()
	if info.Kind == project.KindSolution {
		e.prio = executor.High
	}
	b.entries[name] = e
	b.graph.AddNode(name)
	return e, true, true
}

// unknown records a requested type that has no factory as a failed entry so
// that it shows up in the report.
func (b *Builder) unknown(name string) {
	b.mu.Lock()
	e, exists := b.entries[name]
	if !exists {
		e = &entry{name: name, output: newOutput(name)}
		b.entries[name] = e
	}
	b.mu.Unlock()
	if exists {
		return
	}
	err := errs.Configf("unknown descriptor type %q (registered: %v)", name, b.factories.Names())
	b.fail(b.descriptorContext(b.ctx, e, "build"), e, err)
}

func (b *Builder) build(ctx context.Context, e *entry) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building descriptor.")

	if err := b.buildDescriptor(ctx, e); err != nil {
		b.fail(ctx, e, err)
		return
	}
	if err := e.state.transition(e.name, Building, Built); err != nil {
		b.fail(ctx, e, err)
		return
	}
	logger.Debug("Descriptor built.", "targets", len(e.info.Targets()))
}

func (b *Builder) buildDescriptor(ctx context.Context, e *entry) error {
	info := e.info
	bc := &project.BuildContext{
		Context:    ctx,
		Fragments:  b.fragments,
		Layout:     b.layout,
		OutputRoot: b.opts.OutputRoot,
		Params:     b.opts.Params,
	}

	if pre, ok := e.desc.(project.PreConfigurer); ok {
		if err := pre.PreConfigure(bc); err != nil {
			return errs.Wrap(errs.KindOf(err), err, "pre-configure")
		}
	}

	targets, err := target.Generate(ctx, info.Layout, info.Possibilities()...)
	if err != nil {
		return err
	}
	info.SetTargets(targets)
	e.output.setTargets(len(targets))
	if len(targets) == 0 {
		ctxlog.FromContext(ctx).Warn("Descriptor has no targets.")
	}

	for _, t := range targets {
		conf, err := info.NewConfiguration(t)
		if err != nil {
			return err
		}
		if err := e.desc.Configure(bc, conf); err != nil {
			return errs.Wrap(errs.KindOf(err), err, "configure %q", t.String())
		}
	}

	if post, ok := e.desc.(project.PostConfigurer); ok {
		if err := post.PostConfigure(bc); err != nil {
			return errs.Wrap(errs.KindOf(err), err, "post-configure")
		}
	}

	if err := b.resolve(bc, e); err != nil {
		return err
	}

	for _, dep := range info.UnresolvedDependencyTypes() {
		if _, ok := b.schedule(dep, false); !ok {
			return errs.Configf("unknown dependency type %q", dep)
		}
		if err := b.graph.AddEdge(dep, e.name); err != nil {
			return errs.Wrap(errs.ErrConfiguration, err, "cannot depend on %q", dep)
		}
	}
	return nil
}

// resolve rewrites the templates of every configuration of e. The resolver is
// private to the descriptor; only the type table is shared.
func (b *Builder) resolve(bc *project.BuildContext, e *entry) error {
	opts := append([]resolver.Option{resolver.WithTypes(b.types)}, b.opts.ResolverOptions...)
	r := resolver.New(opts...)
	for name, v := range b.opts.Params {
		r.Set(name, v)
	}

	if hook, ok := e.desc.(project.ResolveHook); ok {
		if err := hook.Resolve(bc, r); err != nil {
			return errs.Wrap(errs.KindOf(err), err, "resolve")
		}
		return nil
	}
	return e.info.Resolve(r)
}
