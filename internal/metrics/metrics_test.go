package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/projforge/internal/builder"
	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/fragment"
	"github.com/vk/projforge/internal/project"
	"github.com/vk/projforge/internal/testutil"
)

type stubDescriptor struct {
	project.Info
	fail bool
}

func (d *stubDescriptor) PreConfigure(bc *project.BuildContext) error {
	t, err := bc.Layout.Parse(map[string][]string{
		fragment.Platform: {"win64", "linux"},
		fragment.DevEnv:   {"make"},
	})
	if err != nil {
		return err
	}
	d.AddTargets(t)
	return nil
}

func (d *stubDescriptor) Configure(_ *project.BuildContext, conf *project.Configuration) error {
	if d.fail {
		return errs.Configf("broken")
	}
	conf.ProjectPath = "build/[target.Platform]"
	conf.ProjectFileName = "[project.Name]"
	return nil
}

// stubGenerator reports every group as one written and one unchanged file.
type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, _ project.Descriptor, confs []*project.Configuration, root string) ([]string, []string, error) {
	path := filepath.Join(root, confs[0].FilePath())
	return []string{path + ".mk"}, []string{path + ".manifest"}, nil
}

func runReport(t *testing.T) *builder.Report {
	t.Helper()
	reg := project.NewRegistry()
	reg.Register("ok", func() project.Descriptor { return &stubDescriptor{} })
	reg.Register("bad", func() project.Descriptor { return &stubDescriptor{fail: true} })

	frags := fragment.NewRegistry()
	fragment.RegisterDefaults(frags)
	b, err := builder.New(testutil.NewContext(t), reg, frags, stubGenerator{}, builder.Options{Serial: true, OutputRoot: "out"})
	require.NoError(t, err)

	report, err := b.Run("ok", "bad")
	require.NoError(t, err)
	require.Error(t, report.Err())
	return report
}

func TestRecorder_Observe(t *testing.T) {
	report := runReport(t)
	r := New()
	end := time.Unix(1700000000, 0)
	r.Observe(report, end)

	assert.Equal(t, 1.0, promtest.ToFloat64(r.Descriptors.WithLabelValues("project", "done")))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.Descriptors.WithLabelValues("project", "failed")))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.Targets.WithLabelValues("ok")))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.Files.WithLabelValues("generated")))
	assert.Equal(t, 2.0, promtest.ToFloat64(r.Files.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, promtest.ToFloat64(r.DescriptorsFailed.WithLabelValues("bad", "configuration")))
	assert.Equal(t, 1700000000.0, promtest.ToFloat64(r.LastRunEnd))
	assert.Equal(t, 3, promtest.CollectAndCount(r.PhaseDuration), "one series per phase")
}

func TestRecorder_WriteFile(t *testing.T) {
	r := New()
	r.Observe(runReport(t), time.Now())

	path := filepath.Join(t.TempDir(), "projforge.prom")
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `projforge_files_total{result="generated"} 2`)
	assert.Contains(t, string(data), `projforge_descriptor_errors_total{descriptor="bad",error_type="configuration"} 1`)

	err = r.WriteFile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write metrics file")
}

func TestErrorType(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{name: "configuration", err: errs.Configf("x"), want: "configuration"},
		{name: "internal", err: errs.Internalf("x"), want: "internal"},
		{name: "plain", err: os.ErrNotExist, want: "other"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, errorType(tc.err))
		})
	}
}
