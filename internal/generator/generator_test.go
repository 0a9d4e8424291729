package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/fragment"
	"github.com/vk/projforge/internal/project"
	"github.com/vk/projforge/internal/target"
	"github.com/vk/projforge/internal/testutil"
)

type stubDescriptor struct {
	project.Info
}

func (*stubDescriptor) Configure(*project.BuildContext, *project.Configuration) error { return nil }

func newLayout(t *testing.T) *target.Layout {
	t.Helper()
	reg := fragment.NewRegistry()
	fragment.RegisterDefaults(reg)
	l, err := target.NewLayout(target.DefaultLayoutName, reg)
	require.NoError(t, err)
	return l
}

// newConf creates a configuration of d for the given platform and
// environment, filled the way a resolved descriptor would be.
func newConf(t *testing.T, d *stubDescriptor, env, platform string) *project.Configuration {
	t.Helper()
	tgt, err := d.Layout.Parse(map[string][]string{
		fragment.DevEnv:     {env},
		fragment.Platform:   {platform},
		fragment.OutputType: {"lib"},
	})
	require.NoError(t, err)
	c, err := d.NewConfiguration(tgt)
	require.NoError(t, err)

	c.ProjectName = d.Name
	c.ProjectPath = "build"
	c.ProjectFileName = d.Name
	c.OutputPath = "out/" + platform
	c.IntermediatePath = "obj/" + platform + "/" + d.Name
	c.TargetFileName = "lib" + d.Name + ".a"
	c.SourceFiles = []string{"src/a.c", "src/b.c"}
	c.Defines = []string{"NDEBUG"}
	c.IncludePaths = []string{"include"}
	c.Options["warnings"] = "all"
	return c
}

func TestManager_MakeWriter(t *testing.T) {
	ctx := testutil.NewContext(t)
	root := t.TempDir()
	l := newLayout(t)

	zlib := &stubDescriptor{Info: project.Info{Name: "zlib", Layout: l}}
	zc := newConf(t, zlib, "make", "linux")
	core := &stubDescriptor{Info: project.Info{Name: "core", Layout: l}}
	win := newConf(t, core, "make", "win64")
	linux := newConf(t, core, "make", "linux")
	linux.SetResolvedDependencies([]*project.Configuration{zc}, nil)

	m := NewManager()
	generated, skipped, err := m.Generate(ctx, core, []*project.Configuration{win, linux}, root)
	require.NoError(t, err)
	path := filepath.Join(root, "build", "core.mk")
	assert.Equal(t, []string{path}, generated)
	assert.Empty(t, skipped)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(content)
	assert.Contains(t, out, "CONFIG ?= make_lib_linux\n")
	assert.Contains(t, out, "ifeq ($(CONFIG),make_lib_win64)\n")
	assert.Contains(t, out, "DEFINES := -DNDEBUG\n")
	assert.Contains(t, out, "INCLUDES := -Iinclude\n")
	assert.Contains(t, out, "LIBS := out/linux/libzlib.a\n")
	assert.Contains(t, out, "WARNINGS := all\n")
	assert.Contains(t, out, "LINK_KIND := lib\n")
	assert.Contains(t, out, "\t$(AR) rcs $@ $^\n")
	assert.Contains(t, out, "expected one of: make_lib_linux make_lib_win64)")

	generated, skipped, err = m.Generate(ctx, core, []*project.Configuration{linux, win}, root)
	require.NoError(t, err)
	assert.Empty(t, generated, "identical content must not be rewritten")
	assert.Equal(t, []string{path}, skipped)

	win.Defines = append(win.Defines, "WIN32")
	generated, _, err = m.Generate(ctx, core, []*project.Configuration{win, linux}, root)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, generated)
}

func TestManager_SolutionMakefile(t *testing.T) {
	ctx := testutil.NewContext(t)
	root := t.TempDir()
	l := newLayout(t)

	app := &stubDescriptor{Info: project.Info{Name: "app", Layout: l}}
	ac := newConf(t, app, "make", "linux")
	sln := &stubDescriptor{Info: project.Info{Name: "all", Kind: project.KindSolution, Layout: l}}
	sc := newConf(t, sln, "make", "linux")
	sc.SetResolvedDependencies(nil, []*project.Configuration{ac})

	generated, _, err := NewManager().Generate(ctx, sln, []*project.Configuration{sc}, root)
	require.NoError(t, err)
	require.Len(t, generated, 1)

	content, err := os.ReadFile(generated[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "# solution: all\n")
	assert.Contains(t, string(content), "PROJECTS := build/app.mk\n")
	assert.Contains(t, string(content), "\t@for p in $(PROJECTS); do")
}

func TestManager_FallbackManifest(t *testing.T) {
	ctx := testutil.NewContext(t)
	root := t.TempDir()
	core := &stubDescriptor{Info: project.Info{Name: "core", Layout: newLayout(t)}}
	c := newConf(t, core, "vs2022", "win64")

	generated, _, err := NewManager().Generate(ctx, core, []*project.Configuration{c}, root)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(root, "build", "core.manifest")}, generated)

	content, err := os.ReadFile(generated[0])
	require.NoError(t, err)
	out := string(content)
	assert.Contains(t, out, "environment = vs2022\n")
	assert.Contains(t, out, "[vs2022_lib_win64]\n")
	assert.Contains(t, out, "sources = src/a.c src/b.c\n")
	assert.Contains(t, out, "option.warnings = all\n")
	assert.NotContains(t, out, "dependencies =")
}

type failingWriter struct{ err error }

func (w failingWriter) Render(context.Context, project.Descriptor, []*project.Configuration) ([]File, error) {
	return nil, w.err
}

func TestManager_Errors(t *testing.T) {
	ctx := testutil.NewContext(t)
	root := t.TempDir()
	core := &stubDescriptor{Info: project.Info{Name: "core", Layout: newLayout(t)}}
	c := newConf(t, core, "xcode", "mac")

	boom := errors.New("boom")
	m := NewManager(WithWriter("xcode", failingWriter{err: boom}))
	_, _, err := m.Generate(ctx, core, []*project.Configuration{c}, root)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to render xcode files")

	c.ProjectFileName = ""
	_, _, err = m.Generate(ctx, core, []*project.Configuration{c}, root)
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	generated, skipped, err := m.Generate(ctx, core, nil, root)
	require.NoError(t, err)
	assert.Empty(t, generated)
	assert.Empty(t, skipped)
}

func TestHash(t *testing.T) {
	a := Hash([]byte("all: build\n"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Hash([]byte("all: build\n")))
	assert.NotEqual(t, a, Hash([]byte("all: clean\n")))
}
