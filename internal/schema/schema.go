// Package schema holds the gohcl decoding structs of definition files.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// --- Fragment Declarations ---

// Fragment declares a custom fragment type. Each entry of Values gets its own
// bit in declaration order.
type Fragment struct {
	Name   string   `hcl:"name,label"`
	Values []string `hcl:"values"`
	// Composite maps a shorthand to the values it stands for.
	Composite map[string][]string `hcl:"composite,optional"`
	// Obsolete values are accepted but never enumerated.
	Obsolete []string `hcl:"obsolete,optional"`
	// Aliases map an alternative name to an existing value.
	Aliases map[string]string `hcl:"aliases,optional"`
}

// Mask restricts a fragment type to the values contained in one of the
// allowed patterns.
type Mask struct {
	Fragment string     `hcl:"fragment,label"`
	Allow    [][]string `hcl:"allow"`
}

// Variables is a block of static values exposed as "var" to definition
// expressions and to templates.
type Variables struct {
	Body hcl.Body `hcl:",remain"`
}

// --- Descriptor Declarations ---

// Targets lists, per fragment name, the values a descriptor is built for.
// Attributes are fragment names; values are a string or a list of strings.
type Targets struct {
	Body hcl.Body `hcl:",remain"`
}

// Dependency names a descriptor type the configuration links against.
// Overrides replace fragments of the dependency's target by name.
type Dependency struct {
	Type      string            `hcl:"type,label"`
	Overrides map[string]string `hcl:"overrides,optional"`
}

// Configuration is evaluated once per target. When is optional; blocks whose
// condition is false are skipped. The remaining attributes are configuration
// fields and are evaluated with "target", "project" and "var" in scope.
type Configuration struct {
	When         hcl.Expression `hcl:"when,optional"`
	Dependencies []*Dependency  `hcl:"dependency,block"`
	Body         hcl.Body       `hcl:",remain"`
}

// Descriptor is a `project` or `solution` block.
type Descriptor struct {
	Name string `hcl:"name,label"`
	// TargetType names the target layout; Fragments restricts it to a subset
	// of the registered fragments.
	TargetType     string           `hcl:"target_type,optional"`
	Fragments      []string         `hcl:"fragments,optional"`
	Targets        []*Targets       `hcl:"targets,block"`
	Configurations []*Configuration `hcl:"configuration,block"`
	DeclRange      hcl.Range        `hcl:",def_range"`
}

// File is the top-level structure of a definition file.
type File struct {
	Fragments []*Fragment   `hcl:"fragment,block"`
	Masks     []*Mask       `hcl:"fragment_mask,block"`
	Variables []*Variables  `hcl:"variables,block"`
	Projects  []*Descriptor `hcl:"project,block"`
	Solutions []*Descriptor `hcl:"solution,block"`
}
