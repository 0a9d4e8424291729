package generator

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/vk/projforge/internal/fragment"
	"github.com/vk/projforge/internal/project"
)

// MakeWriter renders a GNU makefile per project and a driver makefile per
// solution. The CONFIG variable selects the target; it defaults to the first
// one.
type MakeWriter struct{}

var makeFuncs = template.FuncMap{
	"tab":    func() string { return "\t" },
	"prefix": prefixEach,
	"join":   joinSpace,
}

var projectMakefile = template.Must(template.New("project").Funcs(makeFuncs).Parse(
	`# Generated by projforge. Do not edit.
# {{.Kind}}: {{.Name}}

PROJECT := {{.Name}}
CONFIG ?= {{.Default}}
{{range .Configs}}
ifeq ($(CONFIG),{{.Target}})
OUTPUT_DIR := {{.Conf.OutputPath}}
INTERMEDIATE_DIR := {{.Conf.IntermediatePath}}
TARGET := {{.Conf.TargetFileName}}
LINK_KIND := {{.LinkKind}}
SOURCES := {{join .Conf.SourceFiles}}
DEFINES := {{prefix "-D" .Conf.Defines}}
INCLUDES := {{prefix "-I" .Conf.IncludePaths}}
LIBS := {{join .Libraries}}
{{- range .Options}}
{{.}}
{{- end}}
endif
{{end}}
ifeq ($(TARGET),)
$(error unknown CONFIG '$(CONFIG)', expected one of: {{.Available}})
endif

OBJECTS := $(patsubst %,$(INTERMEDIATE_DIR)/%.o,$(basename $(SOURCES)))

all: $(OUTPUT_DIR)/$(TARGET)

$(OUTPUT_DIR)/$(TARGET): $(OBJECTS)
{{tab}}@mkdir -p $(dir $@)
ifeq ($(LINK_KIND),lib)
{{tab}}$(AR) rcs $@ $^
else
{{tab}}$(CC) -o $@ $^ $(LIBS) $(LDFLAGS)
endif

$(INTERMEDIATE_DIR)/%.o: %.c
{{tab}}@mkdir -p $(dir $@)
{{tab}}$(CC) $(CFLAGS) $(DEFINES) $(INCLUDES) -c $< -o $@

clean:
{{tab}}rm -rf $(INTERMEDIATE_DIR) $(OUTPUT_DIR)/$(TARGET)

.PHONY: all clean
`))

var solutionMakefile = template.Must(template.New("solution").Funcs(makeFuncs).Parse(
	`# Generated by projforge. Do not edit.
# {{.Kind}}: {{.Name}}

CONFIG ?= {{.Default}}
{{range .Configs}}
ifeq ($(CONFIG),{{.Target}})
PROJECTS := {{join .Projects}}
endif
{{end}}
all clean:
{{tab}}@for p in $(PROJECTS); do $(MAKE) -f $$p CONFIG=$(CONFIG) $@ || exit 1; done

.PHONY: all clean
`))

type makeConfig struct {
	Target    string
	Conf      *project.Configuration
	LinkKind  string
	Libraries []string
	Projects  []string
	Options   []string
}

type makeFile struct {
	Kind      string
	Name      string
	Default   string
	Available string
	Configs   []makeConfig
}

// Render implements Writer.
func (MakeWriter) Render(_ context.Context, d project.Descriptor, confs []*project.Configuration) ([]File, error) {
	info := d.Metadata()
	data := makeFile{
		Kind:    info.Kind.String(),
		Name:    confs[0].ProjectName,
		Default: confs[0].Target().String(),
	}
	var available []string
	for _, c := range confs {
		mc := makeConfig{
			Target:    c.Target().String(),
			Conf:      c,
			LinkKind:  linkKind(c),
			Libraries: libraries(c),
			Options:   makeOptions(c.Options),
		}
		for _, p := range c.IncludedProjects() {
			mc.Projects = append(mc.Projects, p.FilePath()+".mk")
		}
		available = append(available, mc.Target)
		data.Configs = append(data.Configs, mc)
	}
	data.Available = strings.Join(available, " ")

	tmpl := projectMakefile
	if info.Kind == project.KindSolution {
		tmpl = solutionMakefile
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute %s makefile template: %w", tmpl.Name(), err)
	}
	return []File{{Path: confs[0].FilePath() + ".mk", Content: buf.Bytes()}}, nil
}

func linkKind(c *project.Configuration) string {
	if c.Target().ValueName(fragment.OutputType) == "lib" {
		return "lib"
	}
	return "exe"
}

// libraries lists the configuration's own libraries followed by the outputs
// of its dependencies in link order.
func libraries(c *project.Configuration) []string {
	libs := append([]string(nil), c.LibraryFiles...)
	for _, dep := range c.ResolvedDependencies() {
		if dep.TargetFileName == "" {
			continue
		}
		libs = append(libs, strings.TrimSuffix(dep.OutputPath, "/")+"/"+dep.TargetFileName)
	}
	return libs
}

func makeOptions(opts map[string]string) []string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s := %s", strings.ToUpper(k), opts[k]))
	}
	return out
}

func joinSpace(items []string) string { return strings.Join(items, " ") }

func prefixEach(prefix string, items []string) string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = prefix + item
	}
	return strings.Join(out, " ")
}
