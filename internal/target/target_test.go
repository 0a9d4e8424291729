package target

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/fragment"
	"github.com/vk/projforge/internal/resolver"
	"github.com/vk/projforge/internal/testutil"
)

func newLayout(t *testing.T, fragments ...string) *Layout {
	t.Helper()
	reg := fragment.NewRegistry()
	fragment.RegisterDefaults(reg)
	l, err := NewLayout("Target", reg, fragments...)
	require.NoError(t, err)
	return l
}

func mustLayout(t *testing.T, name string, reg *fragment.Registry, fragments ...string) *Layout {
	t.Helper()
	l, err := NewLayout(name, reg, fragments...)
	require.NoError(t, err)
	return l
}

func parse(t *testing.T, l *Layout, values map[string][]string) Target {
	t.Helper()
	p, err := l.Parse(values)
	require.NoError(t, err)
	return p
}

func names(targets []Target) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.String()
	}
	return out
}

func TestTarget_CanonicalString(t *testing.T) {
	l := newLayout(t)

	tgt := parse(t, l, map[string][]string{
		fragment.Platform:     {"win64"},
		fragment.Optimization: {"debug", "release"},
		fragment.DevEnv:       {"vs2022"},
	})

	// DevEnv < Optimization < OutputType < Platform; zero fields are omitted.
	assert.Equal(t, "vs2022_debug|release_win64", tgt.String())
	assert.Equal(t, "win64", tgt.ValueName(fragment.Platform))
	assert.Equal(t, "", tgt.ValueName(fragment.OutputType))
	assert.Equal(t, "", l.Empty().String())
}

func TestTarget_MutatorsReturnCopies(t *testing.T) {
	l := newLayout(t)
	platform, _ := l.Type(fragment.Platform)
	win32, err := platform.Value("win32")
	require.NoError(t, err)
	win64, err := platform.Value("win64")
	require.NoError(t, err)

	base, err := l.New(win32)
	require.NoError(t, err)

	replaced := base.With(win64)
	widened := base.Clone(win64)

	assert.Equal(t, "win32", base.String())
	assert.Equal(t, "win64", replaced.String())
	assert.Equal(t, "win32|win64", widened.String())
	assert.True(t, base.Equal(base.Clone()))
	assert.False(t, base.Equal(replaced))
}

func TestTarget_CompareOrdersByLayoutFirst(t *testing.T) {
	reg := fragment.NewRegistry()
	fragment.RegisterDefaults(reg)
	a := mustLayout(t, "A", reg, fragment.Platform)
	b := mustLayout(t, "B", reg, fragment.Platform)

	ta := parse(t, a, map[string][]string{fragment.Platform: {"win64"}})
	tb := parse(t, b, map[string][]string{fragment.Platform: {"linux"}})
	tb2 := parse(t, b, map[string][]string{fragment.Platform: {"android"}})

	assert.Negative(t, Compare(ta, tb))
	assert.Positive(t, Compare(tb, tb2))
	assert.Zero(t, Compare(tb, tb))
	assert.False(t, ta.Equal(b.Project(ta)), "same canonical string on different layouts")
	assert.Equal(t, ta.String(), b.Project(ta).String())
}

func TestLayout_Errors(t *testing.T) {
	reg := fragment.NewRegistry()
	fragment.RegisterDefaults(reg)

	_, err := NewLayout("X", reg, "Colour")
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	_, err = NewLayout("X", reg, fragment.Platform, "platform")
	assert.ErrorContains(t, err, "twice")

	l := mustLayout(t, "X", reg, fragment.Platform)
	_, err = l.Parse(map[string][]string{fragment.DevEnv: {"make"}})
	assert.ErrorContains(t, err, "not part of layout")

	_, err = l.Parse(map[string][]string{fragment.Platform: {"amiga"}})
	assert.ErrorContains(t, err, "win32")
}

func TestTarget_ResolvesInTemplates(t *testing.T) {
	l := newLayout(t)
	tgt := parse(t, l, map[string][]string{
		fragment.Platform:     {"linux"},
		fragment.Optimization: {"release"},
	})

	r := resolver.New()
	r.Set("target", tgt)

	out, err := r.Resolve("bin/[target.Platform]/[target.Optimization]/[target.Name]")
	require.NoError(t, err)
	assert.Equal(t, "bin/linux/release/release_linux", out)
}

func TestGenerate(t *testing.T) {
	testCases := []struct {
		name          string
		masks         map[string][][]string
		possibilities []map[string][]string
		want          []string
	}{
		{
			name: "two by two yields four",
			possibilities: []map[string][]string{{
				fragment.Platform:     {"win32", "win64"},
				fragment.Optimization: {"debug", "release"},
			}},
			want: []string{"debug_win32", "debug_win64", "release_win32", "release_win64"},
		},
		{
			name:  "mask excludes a value",
			masks: map[string][][]string{fragment.Platform: {{"win64", "linux"}}},
			possibilities: []map[string][]string{{
				fragment.Platform:     {"win32", "win64"},
				fragment.Optimization: {"debug", "release"},
			}},
			want: []string{"debug_win64", "release_win64"},
		},
		{
			name:  "over-constrained possibility is discarded",
			masks: map[string][][]string{fragment.Platform: {{"linux"}}},
			possibilities: []map[string][]string{
				{fragment.Platform: {"win32"}, fragment.Optimization: {"debug"}},
				{fragment.Platform: {"linux"}, fragment.Optimization: {"debug"}},
			},
			want: []string{"debug_linux"},
		},
		{
			name: "duplicates across possibilities are dropped",
			possibilities: []map[string][]string{
				{fragment.Platform: {"win64"}, fragment.Optimization: {"all"}},
				{fragment.Platform: {"win64"}, fragment.Optimization: {"release"}},
				{fragment.Platform: {"linux"}, fragment.Optimization: {"release"}},
			},
			want: []string{"debug_win64", "release_win64", "retail_win64", "release_linux"},
		},
		{
			name: "composite values expand to their parts",
			possibilities: []map[string][]string{
				{fragment.Platform: {"windows"}, fragment.DevEnv: {"vs2022"}},
			},
			want: []string{"vs2022_win32", "vs2022_win64"},
		},
		{
			name: "obsolete bits are never enumerated",
			possibilities: []map[string][]string{
				{fragment.DevEnv: {"vs2017", "make"}},
				{fragment.DevEnv: {"vs2017"}},
			},
			want: []string{"make"},
		},
		{
			name:          "empty possibility yields the empty target",
			possibilities: []map[string][]string{{}},
			want:          []string{""},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := newLayout(t)
			for name, patterns := range tc.masks {
				require.NoError(t, l.Registry().AddMaskNames(name, patterns...))
			}
			var possibilities []Target
			for _, p := range tc.possibilities {
				possibilities = append(possibilities, parse(t, l, p))
			}

			got, err := Generate(testutil.NewContext(t), l, possibilities...)

			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, names(got)); diff != "" {
				t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
			}
			for _, tgt := range got {
				for _, typ := range l.Types() {
					bits := tgt.Get(typ.ID())
					assert.True(t, bits == 0 || bits.Single(), "%s has a multi-bit field", tgt)
					assert.True(t, l.Registry().Valid(typ.ID(), bits) || bits == 0)
				}
			}
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	l := newLayout(t)
	p := parse(t, l, map[string][]string{
		fragment.Platform:     {"win32", "win64", "linux", "mac"},
		fragment.Optimization: {"all"},
		fragment.OutputType:   {"lib", "dll"},
	})

	first, err := Generate(testutil.NewContext(t), l, p)
	require.NoError(t, err)
	require.Len(t, first, 4*3*2)

	for range 5 {
		again, err := Generate(testutil.NewContext(t), l, p)
		require.NoError(t, err)
		assert.Equal(t, names(first), names(again))
	}
}

func TestGenerate_RejectsForeignLayout(t *testing.T) {
	l := newLayout(t)
	other := mustLayout(t, "Other", l.Registry())

	_, err := Generate(testutil.NewContext(t), l, other.Empty())
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestMerge(t *testing.T) {
	l := newLayout(t)
	p := parse(t, l, map[string][]string{
		fragment.Platform:     {"win32", "win64"},
		fragment.Optimization: {"debug", "release"},
	})
	all, err := Generate(testutil.NewContext(t), l, p)
	require.NoError(t, err)

	merged := Merge(all)
	assert.Equal(t, []string{"debug|release_win32|win64"}, names(merged))

	partial := Merge([]Target{all[0], all[3]})
	assert.Len(t, partial, 2, "targets two fields apart stay separate")

	assert.Empty(t, Merge(nil))
}
