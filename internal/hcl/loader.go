package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/projforge/internal/ctxlog"
	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/fragment"
	"github.com/vk/projforge/internal/fsutil"
	"github.com/vk/projforge/internal/project"
	"github.com/vk/projforge/internal/schema"
	"github.com/vk/projforge/internal/target"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"
)

// Definitions is the result of loading a set of definition files.
type Definitions struct {
	// Files are the definition files that were read, sorted.
	Files []string
	// Fragments holds the default fragments plus every declared one, with
	// masks applied.
	Fragments *fragment.Registry
	// Projects has one factory per project and solution block.
	Projects *project.Registry
	// Vars are the merged variables blocks. They are bound as "var" on every
	// resolver.
	Vars cty.Value
}

// Loader reads definition files.
type Loader struct{}

// NewLoader creates a new HCL definition loader.
func NewLoader() *Loader {
	return &Loader{}
}

type parsedFile struct {
	path string
	root schema.File
}

// Load discovers, parses and validates every .hcl file below paths. Parsing
// runs concurrently; registration follows the sorted file order so that
// fragment ids do not depend on scheduling.
func (l *Loader) Load(ctx context.Context, paths ...string) (*Definitions, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.FindFilesByExtension(".hcl", paths...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errs.Configf("no definition files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parsed, err := l.parseAll(ctx, files)
	if err != nil {
		return nil, err
	}

	defs := &Definitions{
		Files:     files,
		Fragments: fragment.NewRegistry(),
		Projects:  project.NewRegistry(),
	}
	fragment.RegisterDefaults(defs.Fragments)

	for _, f := range parsed {
		for _, fb := range f.root.Fragments {
			if _, err := defs.Fragments.Register(fragmentSpec(fb)); err != nil {
				return nil, errs.Wrap(errs.ErrConfiguration, err, "%s: fragment %q", f.path, fb.Name)
			}
		}
	}
	for _, f := range parsed {
		for _, mb := range f.root.Masks {
			if err := defs.Fragments.AddMaskNames(mb.Fragment, mb.Allow...); err != nil {
				return nil, errs.Wrap(errs.ErrConfiguration, err, "%s", f.path)
			}
		}
	}

	if defs.Vars, err = variables(parsed); err != nil {
		return nil, err
	}
	if err := l.registerDescriptors(ctx, defs, parsed); err != nil {
		return nil, err
	}

	logger.Debug("HCL loading complete.", "files", len(files), "descriptors", len(defs.Projects.Names()))
	return defs, nil
}

// parseAll parses and decodes files concurrently, keeping their order.
func (l *Loader) parseAll(ctx context.Context, files []string) ([]*parsedFile, error) {
	parsed := make([]*parsedFile, len(files))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	for i, path := range files {
		g.Go(func() error {
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read HCL file %s: %w", path, err)
			}
			file, diags := hclsyntax.ParseConfig(src, path, hcl.InitialPos)
			if diags.HasErrors() {
				return errs.Wrap(errs.ErrConfiguration, diags, "failed to parse HCL file %s", path)
			}
			pf := &parsedFile{path: path}
			if diags := gohcl.DecodeBody(file.Body, nil, &pf.root); diags.HasErrors() {
				return errs.Wrap(errs.ErrConfiguration, diags, "failed to decode HCL file %s", path)
			}
			parsed[i] = pf
			ctxlog.FromContext(ctx).Debug("Parsed HCL file.", "file", path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parsed, nil
}

func (l *Loader) registerDescriptors(ctx context.Context, defs *Definitions, parsed []*parsedFile) error {
	layouts := make(map[string]layoutDecl)
	declared := make(map[string]hcl.Range)

	for _, f := range parsed {
		blocks := make([]*schema.Descriptor, 0, len(f.root.Projects)+len(f.root.Solutions))
		kinds := make([]project.Kind, 0, cap(blocks))
		for _, b := range f.root.Projects {
			blocks = append(blocks, b)
			kinds = append(kinds, project.KindProject)
		}
		for _, b := range f.root.Solutions {
			blocks = append(blocks, b)
			kinds = append(kinds, project.KindSolution)
		}

		for i, block := range blocks {
			if prev, dup := declared[block.Name]; dup {
				return errs.Configf("%s: descriptor %q already declared at %s", block.DeclRange, block.Name, prev)
			}
			declared[block.Name] = block.DeclRange

			def, err := newDefinition(ctx, defs, layouts, block, kinds[i], filepath.Dir(f.path))
			if err != nil {
				return err
			}
			defs.Projects.Register(def.name, def.factory())
			ctxlog.FromContext(ctx).Debug("Registered descriptor.", "descriptor", def.name, "kind", def.kind, "targets", len(def.possibilities))
		}
	}
	return nil
}

// layoutDecl remembers the fragment list a layout name was first declared
// with, so that later declarations can be checked against it.
type layoutDecl struct {
	layout    *target.Layout
	fragments []string
}

func newDefinition(ctx context.Context, defs *Definitions, layouts map[string]layoutDecl, block *schema.Descriptor, kind project.Kind, dir string) (*definition, error) {
	layout, err := resolveLayout(defs.Fragments, layouts, block)
	if err != nil {
		return nil, err
	}
	def := &definition{
		name:   block.Name,
		kind:   kind,
		dir:    dir,
		layout: layout,
		vars:   defs.Vars,
	}

	for _, tb := range block.Targets {
		values, err := targetValues(ctx, tb)
		if err != nil {
			return nil, errs.Wrap(errs.ErrConfiguration, err, "descriptor %q", block.Name)
		}
		t, err := layout.Parse(values)
		if err != nil {
			return nil, errs.Wrap(errs.ErrConfiguration, err, "descriptor %q", block.Name)
		}
		def.possibilities = append(def.possibilities, t)
	}
	if len(def.possibilities) == 0 {
		return nil, errs.Configf("%s: descriptor %q declares no targets block", block.DeclRange, block.Name)
	}

	for _, cb := range block.Configurations {
		conf, err := newConfiguration(block.Name, kind, defs.Fragments, cb)
		if err != nil {
			return nil, err
		}
		def.confs = append(def.confs, conf)
	}
	return def, nil
}

// resolveLayout returns the layout named by target_type. Descriptors sharing a
// target_type must agree on its fragments.
func resolveLayout(reg *fragment.Registry, layouts map[string]layoutDecl, block *schema.Descriptor) (*target.Layout, error) {
	name := block.TargetType
	if name == "" {
		if len(block.Fragments) > 0 {
			return nil, errs.Configf("%s: descriptor %q restricts fragments without naming a target_type", block.DeclRange, block.Name)
		}
		name = target.DefaultLayoutName
	}

	fragments := append([]string(nil), block.Fragments...)
	sort.Strings(fragments)
	if decl, ok := layouts[name]; ok {
		if fmt.Sprint(decl.fragments) != fmt.Sprint(fragments) {
			return nil, errs.Configf("%s: descriptor %q declares target_type %q with fragments %v, previously %v",
				block.DeclRange, block.Name, name, fragments, decl.fragments)
		}
		return decl.layout, nil
	}

	layout, err := target.NewLayout(name, reg, fragments...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrConfiguration, err, "descriptor %q", block.Name)
	}
	layouts[name] = layoutDecl{layout: layout, fragments: fragments}
	return layout, nil
}

// targetValues evaluates a targets block statically.
func targetValues(ctx context.Context, tb *schema.Targets) (map[string][]string, error) {
	attrs, diags := tb.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	values := make(map[string][]string, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(&hcl.EvalContext{Functions: functions})
		if diags.HasErrors() {
			return nil, diags
		}
		var names []string
		if err := decode(ctx, val, &names); err != nil {
			return nil, fmt.Errorf("%s: targets attribute %q: %w", attr.Range, name, err)
		}
		values[name] = names
	}
	return values, nil
}

// fragmentSpec assigns one bit per value in declaration order. Obsolete
// values come after the regular ones; aliases and composites reuse bits.
func fragmentSpec(fb *schema.Fragment) fragment.Spec {
	spec := fragment.Spec{Name: fb.Name}
	bitOf := make(map[string]fragment.Bits)
	next := fragment.Bits(1)
	for _, name := range fb.Values {
		spec.Values = append(spec.Values, fragment.ValueSpec{Name: name, Bits: next})
		bitOf[name] = next
		next <<= 1
	}
	for _, name := range fb.Obsolete {
		spec.Values = append(spec.Values, fragment.ValueSpec{Name: name, Bits: next, Obsolete: true})
		bitOf[name] = next
		next <<= 1
	}

	for _, alias := range sortedKeys(fb.Aliases) {
		// Unknown targets produce a zero-bit value, which registration rejects.
		spec.Values = append(spec.Values, fragment.ValueSpec{Name: alias, Bits: bitOf[fb.Aliases[alias]], Tolerant: true})
	}
	for _, name := range sortedKeys(fb.Composite) {
		var b fragment.Bits
		for _, member := range fb.Composite[name] {
			b |= bitOf[member]
		}
		spec.Values = append(spec.Values, fragment.ValueSpec{Name: name, Bits: b, Composite: true})
	}
	return spec
}

// variables merges the variables blocks of every file. A name declared twice
// is an error.
func variables(parsed []*parsedFile) (cty.Value, error) {
	vars := make(map[string]cty.Value)
	evalCtx := &hcl.EvalContext{Functions: functions}
	for _, f := range parsed {
		for _, vb := range f.root.Variables {
			attrs, diags := vb.Body.JustAttributes()
			if diags.HasErrors() {
				return cty.NilVal, errs.Wrap(errs.ErrConfiguration, diags, "%s: variables", f.path)
			}
			for name, attr := range attrs {
				if _, dup := vars[name]; dup {
					return cty.NilVal, errs.Configf("%s: variable %q declared twice", attr.Range, name)
				}
				val, diags := attr.Expr.Value(evalCtx)
				if diags.HasErrors() {
					return cty.NilVal, errs.Wrap(errs.ErrConfiguration, diags, "%s: variable %q", f.path, name)
				}
				vars[name] = val
			}
		}
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(vars), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
