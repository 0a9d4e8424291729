package hcl

import (
	"context"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/projforge/internal/ctxlog"
	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/fragment"
	"github.com/vk/projforge/internal/project"
	"github.com/vk/projforge/internal/schema"
	"github.com/vk/projforge/internal/target"
	"github.com/zclconf/go-cty/cty"
)

// Configuration attributes by kind. Strings replace, lists append, maps merge.
var (
	stringAttributes = map[string]func(*project.Configuration) *string{
		"project_name":      func(c *project.Configuration) *string { return &c.ProjectName },
		"project_path":      func(c *project.Configuration) *string { return &c.ProjectPath },
		"project_file_name": func(c *project.Configuration) *string { return &c.ProjectFileName },
		"output_path":       func(c *project.Configuration) *string { return &c.OutputPath },
		"intermediate_path": func(c *project.Configuration) *string { return &c.IntermediatePath },
		"target_file_name":  func(c *project.Configuration) *string { return &c.TargetFileName },
	}
	listAttributes = map[string]func(*project.Configuration) *[]string{
		"source_files":  func(c *project.Configuration) *[]string { return &c.SourceFiles },
		"defines":       func(c *project.Configuration) *[]string { return &c.Defines },
		"include_paths": func(c *project.Configuration) *[]string { return &c.IncludePaths },
		"library_files": func(c *project.Configuration) *[]string { return &c.LibraryFiles },
	}
)

const (
	attrWhen         = "when"
	attrOptions      = "options"
	attrDependencies = "dependencies"
	attrProjects     = "projects"
)

func knownAttribute(name string) bool {
	if _, ok := stringAttributes[name]; ok {
		return true
	}
	if _, ok := listAttributes[name]; ok {
		return true
	}
	return name == attrOptions || name == attrDependencies || name == attrProjects
}

// dependency is a validated dependency block.
type dependency struct {
	typeName  string
	overrides []fragment.Value
}

// configuration is a validated configuration block.
type configuration struct {
	when       hcl.Expression
	attributes []*hcl.Attribute
	deps       []dependency
}

// definition is everything a factory needs to create a descriptor.
type definition struct {
	name          string
	kind          project.Kind
	dir           string
	layout        *target.Layout
	possibilities []target.Target
	confs         []configuration
	vars          cty.Value
}

// descriptor is a project or solution declared in a definition file.
type descriptor struct {
	project.Info
	def *definition
}

func (def *definition) factory() project.Factory {
	return func() project.Descriptor {
		d := &descriptor{
			Info: project.Info{Name: def.name, Kind: def.kind, Layout: def.layout, Path: def.dir},
			def:  def,
		}
		d.AddTargets(def.possibilities...)
		return d
	}
}

// Configure evaluates every configuration block whose condition holds for the
// configuration's target, in declaration order.
func (d *descriptor) Configure(bc *project.BuildContext, conf *project.Configuration) error {
	ctx := ctxlog.With(bc.Context, "target", conf.Target().String())
	evalCtx := d.evalContext(conf.Target())

	for i, block := range d.def.confs {
		ok, err := condition(block.when, evalCtx)
		if err != nil {
			return err
		}
		if !ok {
			ctxlog.FromContext(ctx).Debug("Skipping configuration block.", "block", i)
			continue
		}
		for _, attr := range block.attributes {
			if err := apply(ctx, conf, attr, evalCtx); err != nil {
				return err
			}
		}
		for _, dep := range block.deps {
			conf.AddDependency(dep.typeName, dep.overrides...)
		}
	}
	return nil
}

// evalContext exposes the target with lower-case fragment names
// ("target.platform"), the descriptor and the definition variables.
func (d *descriptor) evalContext(t target.Target) *hcl.EvalContext {
	fields := map[string]cty.Value{"name": cty.StringVal(t.String())}
	for name, value := range t.Fields() {
		fields[strings.ToLower(name)] = cty.StringVal(value)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"target": cty.ObjectVal(fields),
			"project": cty.ObjectVal(map[string]cty.Value{
				"name": cty.StringVal(d.Name),
				"kind": cty.StringVal(d.Kind.String()),
				"path": cty.StringVal(d.Path),
			}),
			"var": d.def.vars,
		},
		Functions: functions,
	}
}

func condition(expr hcl.Expression, evalCtx *hcl.EvalContext) (bool, error) {
	if expr == nil {
		return true, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return false, errs.Wrap(errs.ErrConfiguration, diags, "cannot evaluate condition")
	}
	if val.IsNull() {
		return true, nil
	}
	if !val.Type().Equals(cty.Bool) {
		return false, errs.Configf("%s: condition must be a bool, got %s", expr.Range(), val.Type().FriendlyName())
	}
	return val.True(), nil
}

func apply(ctx context.Context, conf *project.Configuration, attr *hcl.Attribute, evalCtx *hcl.EvalContext) error {
	val, diags := attr.Expr.Value(evalCtx)
	if diags.HasErrors() {
		return errs.Wrap(errs.ErrConfiguration, diags, "cannot evaluate %q", attr.Name)
	}
	if val.IsNull() {
		return nil
	}
	fail := func(err error) error {
		return errs.Wrap(errs.ErrConfiguration, err, "%s: attribute %q", attr.Range, attr.Name)
	}

	if field, ok := stringAttributes[attr.Name]; ok {
		var s string
		if err := decode(ctx, val, &s); err != nil {
			return fail(err)
		}
		*field(conf) = s
		return nil
	}
	if field, ok := listAttributes[attr.Name]; ok {
		var l []string
		if err := decode(ctx, val, &l); err != nil {
			return fail(err)
		}
		*field(conf) = append(*field(conf), l...)
		return nil
	}

	switch attr.Name {
	case attrOptions:
		var m map[string]string
		if err := decode(ctx, val, &m); err != nil {
			return fail(err)
		}
		for k, v := range m {
			conf.Options[k] = v
		}
	case attrDependencies:
		var l []string
		if err := decode(ctx, val, &l); err != nil {
			return fail(err)
		}
		for _, name := range l {
			conf.AddDependency(name)
		}
	case attrProjects:
		var l []string
		if err := decode(ctx, val, &l); err != nil {
			return fail(err)
		}
		for _, name := range l {
			conf.AddProject(name)
		}
	default:
		return errs.Internalf("unchecked configuration attribute %q", attr.Name)
	}
	return nil
}

// newConfiguration validates a configuration block of the descriptor name.
func newConfiguration(name string, kind project.Kind, reg *fragment.Registry, block *schema.Configuration) (configuration, error) {
	conf := configuration{when: block.When}

	// JustAttributes rejects the dependency blocks still present in the
	// remaining body, so the attributes are read from the syntax tree.
	body, ok := block.Body.(*hclsyntax.Body)
	if !ok {
		return conf, errs.Internalf("descriptor %q: unexpected configuration body %T", name, block.Body)
	}
	for attrName, syntaxAttr := range body.Attributes {
		if attrName == attrWhen {
			continue
		}
		attr := syntaxAttr.AsHCLAttribute()
		if !knownAttribute(attrName) {
			return conf, errs.Configf("%s: descriptor %q: unknown configuration attribute %q", attr.Range, name, attrName)
		}
		if attrName == attrProjects && kind != project.KindSolution {
			return conf, errs.Configf("%s: descriptor %q: only solutions list projects", attr.Range, name)
		}
		conf.attributes = append(conf.attributes, attr)
	}
	sort.Slice(conf.attributes, func(i, j int) bool { return conf.attributes[i].Name < conf.attributes[j].Name })

	for _, dep := range block.Dependencies {
		d := dependency{typeName: dep.Type}
		fragmentNames := make([]string, 0, len(dep.Overrides))
		for fname := range dep.Overrides {
			fragmentNames = append(fragmentNames, fname)
		}
		sort.Strings(fragmentNames)
		for _, fname := range fragmentNames {
			typ, ok := reg.Type(fname)
			if !ok {
				return conf, errs.Configf("descriptor %q: dependency %q overrides unknown fragment %q", name, dep.Type, fname)
			}
			v, err := typ.Value(dep.Overrides[fname])
			if err != nil {
				return conf, errs.Wrap(errs.ErrConfiguration, err, "descriptor %q: dependency %q", name, dep.Type)
			}
			d.overrides = append(d.overrides, v)
		}
		conf.deps = append(conf.deps, d)
	}
	return conf, nil
}
