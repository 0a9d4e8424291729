package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveObject_ResolvesMembersInPlace(t *testing.T) {
	p := &testProject{
		Name: "core",
		Out:  "out/[p.Name]/[p.Tags]",
		Tags: []string{"t-[p.Name]"},
		Vars: map[string]string{
			"dir": "[p.Out]/x",
			"lit": "[[keep]]",
		},
	}
	r := New()
	r.Set("p", p)

	require.NoError(t, r.ResolveObject(p))

	assert.Equal(t, "out/core/t-core", p.Out)
	assert.Equal(t, []string{"t-core"}, p.Tags)
	assert.Equal(t, map[string]string{"dir": "out/core/t-core/x", "lit": "[keep]"}, p.Vars)
}

func TestResolveObject_EscapesUnwrapOnce(t *testing.T) {
	p := &testProject{Name: "[[raw]]", Out: "[p.Name]/x"}
	r := New()
	r.Set("p", p)

	require.NoError(t, r.ResolveObject(p))

	assert.Equal(t, "[raw]", p.Name)
	assert.Equal(t, "[raw]/x", p.Out, "an escaped value copied into another member must not be looked up")
}

func TestResolveObject_MemberCycle(t *testing.T) {
	p := &testProject{Name: "[p.Out]", Out: "[p.Name]"}
	r := New()
	r.Set("p", p)

	err := r.ResolveObject(p)

	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"testProject#0.Name", "testProject#0.Out", "testProject#0.Name"}, cycle.Chain)
}

func TestResolveObject_SharedChildrenVisitedOnce(t *testing.T) {
	shared := &testProject{Name: "[[x]]", Out: "[root.Name]/shared"}
	root := &testProject{Name: "root", Deps: []*testProject{shared, shared}}
	shared.Deps = []*testProject{root}

	r := New()
	r.Set("root", root)

	require.NoError(t, r.ResolveObject(root))

	assert.Equal(t, "[x]", shared.Name)
	assert.Equal(t, "root/shared", shared.Out)
}

func TestResolveObject_OnlyResolvableTypes(t *testing.T) {
	r := New()
	frozen := &frozenThing{Text: "[x]"}
	require.NoError(t, r.ResolveObject(frozen))
	assert.Equal(t, "[x]", frozen.Text)

	ti, ok := r.Types().Lookup("frozenThing")
	require.True(t, ok, "described types are registered on first sight")
	assert.Same(t, frozenInfo, ti)
}

func TestResolveObject_RequiresPointers(t *testing.T) {
	r := New()
	err := r.ResolveObject(valueProject{})
	assert.ErrorContains(t, err, "not a pointer")
}

func TestResolveObject_NotFoundCarriesStack(t *testing.T) {
	p := &testProject{Name: "core", Out: "[p.Missing]"}
	r := New()
	r.Set("p", p)

	err := r.ResolveObject(p)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"testProject#0.Out"}, nf.Stack)
}

type frozenThing struct{ Text string }

var frozenInfo = &TypeInfo{
	Name:   "frozenThing",
	Fields: []Member{String("Text", func(f *frozenThing) *string { return &f.Text })},
}

func (f *frozenThing) Describe() *TypeInfo { return frozenInfo }

type valueProject struct{ Name string }

var valueProjectInfo = &TypeInfo{
	Name:       "valueProject",
	Resolvable: true,
	Fields:     []Member{Field("Name", func(v valueProject) any { return v.Name })},
}

func (v valueProject) Describe() *TypeInfo { return valueProjectInfo }
