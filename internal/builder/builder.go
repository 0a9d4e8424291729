package builder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vk/projforge/internal/ctxlog"
	"github.com/vk/projforge/internal/dag"
	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/executor"
	"github.com/vk/projforge/internal/fragment"
	"github.com/vk/projforge/internal/project"
	"github.com/vk/projforge/internal/resolver"
	"github.com/vk/projforge/internal/target"
)

// Generator writes the files of one group of configurations sharing a project
// file path. generator.Manager is the production implementation.
type Generator interface {
	Generate(ctx context.Context, d project.Descriptor, confs []*project.Configuration, outputRoot string) (generated, skipped []string, err error)
}

// Options tune a run.
type Options struct {
	// Workers is the pool size; zero means one worker per CPU.
	Workers int
	// Serial runs every task on the calling goroutine instead of a pool.
	Serial bool
	// OutputRoot is passed to the generator and exposed to descriptors.
	OutputRoot string
	// Params are bound on every resolver, e.g. "output".
	Params map[string]any
	// ResolverOptions configure delimiters and case sensitivity.
	ResolverOptions []resolver.Option
}

// entry is the per-run record of one descriptor type.
type entry struct {
	name      string
	state     stateCell
	desc      project.Descriptor
	info      *project.Info
	prio      executor.Priority
	requested bool
	output    *Output

	mu  sync.Mutex
	err error
}

func (e *entry) setErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil {
		e.err = err
	}
}

func (e *entry) failure() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Builder owns every registry of one run. It is not reusable across runs.
type Builder struct {
	ctx       context.Context
	opts      Options
	factories *project.Registry
	fragments *fragment.Registry
	types     *resolver.Types
	gen       Generator
	layout    *target.Layout

	ex      executor.Executor
	closeEx func()

	mu      sync.Mutex
	entries map[string]*entry
	graph   *dag.Graph

	fatalMu sync.Mutex
	fatal   error

	phases []PhaseTiming
}

// New prepares a run. The context must carry a logger.
func New(ctx context.Context, factories *project.Registry, fragments *fragment.Registry, gen Generator, opts Options) (*Builder, error) {
	layout, err := target.NewLayout(target.DefaultLayoutName, fragments)
	if err != nil {
		return nil, err
	}
	b := &Builder{
		ctx:       ctx,
		opts:      opts,
		factories: factories,
		fragments: fragments,
		types:     resolver.NewTypes(),
		gen:       gen,
		layout:    layout,
		entries:   make(map[string]*entry),
		graph:     dag.New(),
	}

	onPanic := func(r any, stack []byte) {
		ctxlog.FromContext(ctx).Error("Task panicked.", "panic", fmt.Sprint(r), "stack", string(stack))
		b.setFatal(errs.Internalf("task panicked: %v", r))
	}
	if opts.Serial {
		b.ex = executor.NewSerial(ctx, onPanic)
		b.closeEx = func() {}
	} else {
		pool := executor.NewPool(ctx, opts.Workers, executor.WithPanicHandler(onPanic))
		b.ex = pool
		b.closeEx = pool.Close
	}
	return b, nil
}

// Close releases the executor.
func (b *Builder) Close() {
	b.closeEx()
}

// Run builds, links and generates the requested descriptor types, then closes
// the builder. The returned error is the fatal internal error, if any;
// descriptor errors are in the report (Report.Err).
func (b *Builder) Run(requested ...string) (*Report, error) {
	defer b.Close()
	logger := ctxlog.FromContext(b.ctx)
	logger.Info("Starting generation run.", "requested", len(requested))

	if err := b.Build(requested...); err != nil {
		return b.Report(), err
	}
	if err := b.Link(); err != nil {
		return b.Report(), err
	}
	if err := b.Generate(); err != nil {
		return b.Report(), err
	}

	report := b.Report()
	logger.Info("Generation run finished.", "descriptors", len(report.Outputs), "generated", len(report.Generated()))
	return report, nil
}

// Report snapshots the per-descriptor outputs, sorted by descriptor name.
func (b *Builder) Report() *Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := &Report{Phases: append([]PhaseTiming(nil), b.phases...)}
	for _, e := range b.sortedEntriesLocked() {
		e.output.setState(e.state.load())
		r.Outputs = append(r.Outputs, e.output)
	}
	return r
}

// State returns the lifecycle state of a descriptor type.
func (b *Builder) State(name string) State {
	if e := b.entry(name); e != nil {
		return e.state.load()
	}
	return Unscheduled
}

// Descriptor returns the instance created for a descriptor type.
func (b *Builder) Descriptor(name string) (project.Descriptor, bool) {
	e := b.entry(name)
	if e == nil || e.desc == nil {
		return nil, false
	}
	return e.desc, true
}

func (b *Builder) entry(name string) *entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries[name]
}

func (b *Builder) sortedEntries() []*entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortedEntriesLocked()
}

func (b *Builder) sortedEntriesLocked() []*entry {
	out := make([]*entry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// setFatal records the first internal error of the run.
func (b *Builder) setFatal(err error) {
	b.fatalMu.Lock()
	defer b.fatalMu.Unlock()
	if b.fatal != nil {
		return
	}
	ctxlog.FromContext(b.ctx).Error("Fatal internal error.", "error", err)
	b.fatal = err
}

// Fatal returns the recorded internal error.
func (b *Builder) Fatal() error {
	b.fatalMu.Lock()
	defer b.fatalMu.Unlock()
	return b.fatal
}

// fail records err against e and moves it to Failed. Internal errors are also
// fatal to the run.
func (b *Builder) fail(ctx context.Context, e *entry, err error) {
	err = errs.ForDescriptor(err, e.name)
	if errs.IsInternal(err) {
		b.setFatal(err)
	}
	e.setErr(err)
	if e.state.fail() {
		e.output.addError(err)
		ctxlog.FromContext(ctx).Error("Descriptor failed.", "error", err)
	}
}

// phase runs fn, waits for every task it spawned and records the duration.
func (b *Builder) phase(name string, fn func()) error {
	start := time.Now()
	logger := ctxlog.FromContext(b.ctx).With("phase", name)
	logger.Debug("Phase started.")

	fn()
	b.ex.Wait()

	d := time.Since(start)
	b.mu.Lock()
	b.phases = append(b.phases, PhaseTiming{Name: name, Duration: d})
	b.mu.Unlock()
	logger.Debug("Phase finished.", "duration", d)
	return b.Fatal()
}

func (b *Builder) descriptorContext(ctx context.Context, e *entry, phase string) context.Context {
	return ctxlog.With(ctx, "descriptor", e.name, "phase", phase)
}
