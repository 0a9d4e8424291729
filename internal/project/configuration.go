package project

import (
	"path/filepath"
	"sync"

	"github.com/vk/projforge/internal/fragment"
	"github.com/vk/projforge/internal/resolver"
	"github.com/vk/projforge/internal/target"
)

// Dependency names a descriptor type a configuration needs. The target used
// on the dependency is the dependent's target projected onto the dependency's
// layout, with Overrides replacing individual fields.
type Dependency struct {
	Type      string
	Overrides []fragment.Value
}

// Configuration is the state of one descriptor for one target. String, list
// and map fields may contain templates until the resolve step has run.
type Configuration struct {
	owner  *Info
	target target.Target

	ProjectName      string
	ProjectPath      string
	ProjectFileName  string
	OutputPath       string
	IntermediatePath string
	TargetFileName   string
	SourceFiles      []string
	Defines          []string
	IncludePaths     []string
	LibraryFiles     []string
	Options          map[string]string

	mu           sync.Mutex
	dependencies []Dependency
	projects     []Dependency
	resolvedDeps []*Configuration
	included     []*Configuration
	linked       bool
}

// Owner returns the Info of the descriptor the configuration belongs to.
func (c *Configuration) Owner() *Info { return c.owner }

// Target returns the configuration's target.
func (c *Configuration) Target() target.Target { return c.target }

// AddDependency declares that the configuration links against typeName.
func (c *Configuration) AddDependency(typeName string, overrides ...fragment.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dependencies = append(c.dependencies, Dependency{Type: typeName, Overrides: overrides})
}

// AddProject adds typeName to a solution's inclusion list.
func (c *Configuration) AddProject(typeName string, overrides ...fragment.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects = append(c.projects, Dependency{Type: typeName, Overrides: overrides})
}

// Dependencies returns the declared dependencies.
func (c *Configuration) Dependencies() []Dependency {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Dependency(nil), c.dependencies...)
}

// Projects returns the solution inclusion list.
func (c *Configuration) Projects() []Dependency {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Dependency(nil), c.projects...)
}

// ResolvedDependencies returns the transitive dependency configurations set
// by linking, in link order.
func (c *Configuration) ResolvedDependencies() []*Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Configuration(nil), c.resolvedDeps...)
}

// SetResolvedDependencies records the link result. Only the first call has an
// effect, which keeps linking idempotent.
func (c *Configuration) SetResolvedDependencies(deps, included []*Configuration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.linked {
		return false
	}
	c.linked = true
	c.resolvedDeps = append([]*Configuration(nil), deps...)
	c.included = append([]*Configuration(nil), included...)
	return true
}

// Linked reports whether SetResolvedDependencies has been called.
func (c *Configuration) Linked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linked
}

// IncludedProjects returns the project configurations of a solution.
func (c *Configuration) IncludedProjects() []*Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Configuration(nil), c.included...)
}

// Environment returns the development environment selector of the target,
// which picks the output writer.
func (c *Configuration) Environment() string {
	return c.target.ValueName(fragment.DevEnv)
}

// FilePath is the path of the project file without extension. Configurations
// sharing it are generated together.
func (c *Configuration) FilePath() string {
	return filepath.Join(c.ProjectPath, c.ProjectFileName)
}

var configurationInfo = &resolver.TypeInfo{
	Name:       "Configuration",
	Resolvable: true,
	Fields: []resolver.Member{
		resolver.String("ProjectName", func(c *Configuration) *string { return &c.ProjectName }),
		resolver.String("ProjectPath", func(c *Configuration) *string { return &c.ProjectPath }),
		resolver.String("ProjectFileName", func(c *Configuration) *string { return &c.ProjectFileName }),
		resolver.String("OutputPath", func(c *Configuration) *string { return &c.OutputPath }),
		resolver.String("IntermediatePath", func(c *Configuration) *string { return &c.IntermediatePath }),
		resolver.String("TargetFileName", func(c *Configuration) *string { return &c.TargetFileName }),
		resolver.List("SourceFiles", func(c *Configuration) *[]string { return &c.SourceFiles }),
		resolver.List("Defines", func(c *Configuration) *[]string { return &c.Defines }),
		resolver.List("IncludePaths", func(c *Configuration) *[]string { return &c.IncludePaths }),
		resolver.List("LibraryFiles", func(c *Configuration) *[]string { return &c.LibraryFiles }),
		resolver.Map("Options", func(c *Configuration) *map[string]string { return &c.Options }),
	},
	Properties: []resolver.Member{
		resolver.Field("Target", func(c *Configuration) any { return c.target }),
		resolver.Field("Project", func(c *Configuration) any { return c.owner }),
		resolver.Field("Environment", func(c *Configuration) any { return c.Environment() }),
	},
}

// Describe exposes the configuration to templates as "[conf.OutputPath]" and
// friends.
func (c *Configuration) Describe() *resolver.TypeInfo { return configurationInfo }
