package generator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/projforge/internal/project"
)

// ManifestWriter renders a plain key/value description of a project, one
// section per target. It serves environments that have no dedicated writer.
type ManifestWriter struct{}

// Render implements Writer.
func (ManifestWriter) Render(_ context.Context, d project.Descriptor, confs []*project.Configuration) ([]File, error) {
	info := d.Metadata()
	var b strings.Builder
	b.WriteString("# Generated by projforge. Do not edit.\n")
	fmt.Fprintf(&b, "project = %s\n", confs[0].ProjectName)
	fmt.Fprintf(&b, "kind = %s\n", info.Kind)
	fmt.Fprintf(&b, "environment = %s\n", confs[0].Environment())

	for _, c := range confs {
		fmt.Fprintf(&b, "\n[%s]\n", c.Target().String())
		kv(&b, "output_path", c.OutputPath)
		kv(&b, "intermediate_path", c.IntermediatePath)
		kv(&b, "target_file", c.TargetFileName)
		kv(&b, "sources", strings.Join(c.SourceFiles, " "))
		kv(&b, "defines", strings.Join(c.Defines, " "))
		kv(&b, "include_paths", strings.Join(c.IncludePaths, " "))
		kv(&b, "libraries", strings.Join(c.LibraryFiles, " "))
		kv(&b, "dependencies", strings.Join(projectNames(c.ResolvedDependencies()), " "))
		kv(&b, "projects", strings.Join(projectNames(c.IncludedProjects()), " "))

		keys := make([]string, 0, len(c.Options))
		for k := range c.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			kv(&b, "option."+k, c.Options[k])
		}
	}
	return []File{{Path: confs[0].FilePath() + ".manifest", Content: []byte(b.String())}}, nil
}

func kv(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s = %s\n", key, value)
}

func projectNames(confs []*project.Configuration) []string {
	out := make([]string, len(confs))
	for i, c := range confs {
		out[i] = c.ProjectName
	}
	return out
}
