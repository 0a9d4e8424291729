// Package project defines the contracts between descriptors and the builder.
//
// A descriptor is a user-defined project or solution type. The builder
// instantiates it through a registered Factory, asks it to Configure one
// Configuration per target, resolves the templates of those configurations and
// links them to the configurations of the types they depend on. Descriptors
// embed Info, which carries everything the builder needs to know about them.
package project

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vk/projforge/internal/fragment"
	"github.com/vk/projforge/internal/resolver"
	"github.com/vk/projforge/internal/target"
)

// Kind distinguishes projects from solutions.
type Kind int

const (
	KindProject Kind = iota
	KindSolution
)

func (k Kind) String() string {
	if k == KindSolution {
		return "solution"
	}
	return "project"
}

// Descriptor is implemented by every project and solution type.
type Descriptor interface {
	// Metadata returns the embedded Info.
	Metadata() *Info
	// Configure fills conf for its target. It is called once per target.
	Configure(bc *BuildContext, conf *Configuration) error
}

// PreConfigurer is implemented by descriptors that need a hook before the
// first Configure call.
type PreConfigurer interface {
	PreConfigure(bc *BuildContext) error
}

// PostConfigurer is implemented by descriptors that need a hook after the last
// Configure call.
type PostConfigurer interface {
	PostConfigure(bc *BuildContext) error
}

// ResolveHook replaces the default resolve step (Info.Resolve).
type ResolveHook interface {
	Resolve(bc *BuildContext, r *resolver.Resolver) error
}

// Factory creates a fresh, unconfigured descriptor.
type Factory func() Descriptor

// BuildContext is handed to descriptor hooks. It is scoped to one descriptor
// type within one run.
type BuildContext struct {
	// Context carries the logger; it is never cancelled by the builder.
	Context   context.Context
	Fragments *fragment.Registry
	// Layout is the run's default target layout.
	Layout *target.Layout
	// OutputRoot is the directory generated files are written under.
	OutputRoot string
	// Params are bound on every resolver before descriptor parameters.
	Params map[string]any
}

// Registry maps descriptor type names to factories. Registering the same name
// twice is a programming error and panics.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty factory registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("project: descriptor type %q registered twice", name))
	}
	r.factories[name] = f
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns every registered type name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
