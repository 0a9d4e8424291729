package project

import (
	"sort"
	"sync"

	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/resolver"
	"github.com/vk/projforge/internal/target"
)

// Info is the builder-facing part of a descriptor. Descriptors embed it and
// set Name, Kind and Layout in their factory.
type Info struct {
	Name   string
	Kind   Kind
	Layout *target.Layout
	// Path is the directory the descriptor was defined in.
	Path string

	mu            sync.Mutex
	possibilities []target.Target
	targets       []target.Target
	confs         map[string]*Configuration
	order         []*Configuration
}

// Metadata returns i, satisfying Descriptor for embedding types.
func (i *Info) Metadata() *Info { return i }

// AddTargets registers target possibilities. They are expanded by the builder
// before configuration.
func (i *Info) AddTargets(possibilities ...target.Target) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.possibilities = append(i.possibilities, possibilities...)
}

// Possibilities returns the registered possibilities.
func (i *Info) Possibilities() []target.Target {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]target.Target(nil), i.possibilities...)
}

// SetTargets records the expanded targets.
func (i *Info) SetTargets(targets []target.Target) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.targets = append([]target.Target(nil), targets...)
}

// Targets returns the expanded targets.
func (i *Info) Targets() []target.Target {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]target.Target(nil), i.targets...)
}

// HasTarget reports whether t is one of the expanded targets.
func (i *Info) HasTarget(t target.Target) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, own := range i.targets {
		if own.Equal(t) {
			return true
		}
	}
	return false
}

// NewConfiguration creates the configuration of t. Creating it twice is an
// internal error.
func (i *Info) NewConfiguration(t target.Target) (*Configuration, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.confs == nil {
		i.confs = make(map[string]*Configuration)
	}
	key := t.Key()
	if _, exists := i.confs[key]; exists {
		return nil, errs.Internalf("configuration %q of %q created twice", t.String(), i.Name)
	}
	conf := &Configuration{owner: i, target: t, Options: make(map[string]string)}
	i.confs[key] = conf
	i.order = append(i.order, conf)
	return conf, nil
}

// Configuration returns the configuration of t.
func (i *Info) Configuration(t target.Target) (*Configuration, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	conf, ok := i.confs[t.Key()]
	return conf, ok
}

// Configurations returns every configuration in creation order.
func (i *Info) Configurations() []*Configuration {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*Configuration(nil), i.order...)
}

// UnresolvedDependencyTypes lists, sorted and without duplicates, the
// descriptor types named by dependencies and solution inclusion lists of any
// configuration.
func (i *Info) UnresolvedDependencyTypes() []string {
	seen := make(map[string]bool)
	for _, conf := range i.Configurations() {
		for _, d := range conf.Dependencies() {
			seen[d.Type] = true
		}
		for _, d := range conf.Projects() {
			seen[d.Type] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve is the default resolve step: every configuration is resolved in
// place with "project", "conf" and "target" bound.
func (i *Info) Resolve(r *resolver.Resolver) error {
	for _, conf := range i.Configurations() {
		if err := i.resolveOne(r, conf); err != nil {
			return err
		}
	}
	return nil
}

func (i *Info) resolveOne(r *resolver.Resolver, conf *Configuration) error {
	scope := r.Scope().
		Set("project", i).
		Set("conf", conf).
		Set("target", conf.target)
	defer scope.Close()

	// Lookup failures, cycles and nil values are all mistakes in the
	// descriptor's templates. The resolver error keeps the stack and the
	// candidates.
	if err := r.ResolveObject(conf); err != nil {
		return errs.Wrap(errs.ErrConfiguration, err, "cannot resolve configuration %q", conf.target.String())
	}
	return nil
}

var infoType = &resolver.TypeInfo{
	Name: "Project",
	Properties: []resolver.Member{
		resolver.Field("Name", func(i *Info) any { return i.Name }),
		resolver.Field("Kind", func(i *Info) any { return i.Kind.String() }),
		resolver.Field("Path", func(i *Info) any { return i.Path }),
		resolver.Field("Layout", func(i *Info) any {
			if i.Layout == nil {
				return ""
			}
			return i.Layout.Name()
		}),
	},
}

// Describe exposes the descriptor to templates as "[project.Name]" and
// friends.
func (i *Info) Describe() *resolver.TypeInfo { return infoType }
