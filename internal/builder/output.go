package builder

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Output accumulates what happened to one descriptor type. Generation tasks
// of the same descriptor add to it concurrently.
type Output struct {
	Descriptor string
	Kind       string

	mu        sync.Mutex
	state     State
	generated []string
	skipped   []string
	errors    []error
	unused    []string
	targets   int
}

func newOutput(descriptor string) *Output {
	return &Output{Descriptor: descriptor}
}

func (o *Output) addFiles(generated, skipped []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.generated = append(o.generated, generated...)
	o.skipped = append(o.skipped, skipped...)
}

func (o *Output) addError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, err)
}

func (o *Output) setUnused(targets []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unused = targets
}

func (o *Output) setTargets(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.targets = n
}

func (o *Output) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

// State returns the descriptor's final state.
func (o *Output) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Generated returns the sorted paths that were written.
func (o *Output) Generated() []string { return o.sorted(func() []string { return o.generated }) }

// Skipped returns the sorted paths that were already up to date.
func (o *Output) Skipped() []string { return o.sorted(func() []string { return o.skipped }) }

// Unused returns the merged targets whose configurations nothing used.
func (o *Output) Unused() []string { return o.sorted(func() []string { return o.unused }) }

// Targets returns the number of targets the descriptor was configured for.
func (o *Output) Targets() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.targets
}

// Errors returns the errors captured for the descriptor.
func (o *Output) Errors() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.errors...)
}

func (o *Output) sorted(get func() []string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := append([]string(nil), get()...)
	sort.Strings(out)
	return out
}

// PhaseTiming records how long a phase took.
type PhaseTiming struct {
	Name     string
	Duration time.Duration
}

// Report is the result of a run.
type Report struct {
	RunID   string
	Outputs []*Output
	Phases  []PhaseTiming
}

// Output returns the record of one descriptor type.
func (r *Report) Output(descriptor string) (*Output, bool) {
	for _, o := range r.Outputs {
		if o.Descriptor == descriptor {
			return o, true
		}
	}
	return nil, false
}

// Generated returns every generated path of the run, sorted.
func (r *Report) Generated() []string {
	var all []string
	for _, o := range r.Outputs {
		all = append(all, o.Generated()...)
	}
	sort.Strings(all)
	return all
}

// Err joins every captured descriptor error, or returns nil.
func (r *Report) Err() error {
	var all []error
	for _, o := range r.Outputs {
		all = append(all, o.Errors()...)
	}
	return errors.Join(all...)
}

type yamlOutput struct {
	Descriptor string   `yaml:"descriptor"`
	Kind       string   `yaml:"kind,omitempty"`
	State      string   `yaml:"state"`
	Targets    int      `yaml:"targets"`
	Generated  []string `yaml:"generated,omitempty"`
	Skipped    []string `yaml:"skipped,omitempty"`
	Unused     []string `yaml:"unused_targets,omitempty"`
	Errors     []string `yaml:"errors,omitempty"`
}

type yamlReport struct {
	RunID       string            `yaml:"run_id,omitempty"`
	Phases      map[string]string `yaml:"phases,omitempty"`
	Descriptors []yamlOutput      `yaml:"descriptors"`
}

// WriteYAML serialises the report.
func (r *Report) WriteYAML(w io.Writer) error {
	doc := yamlReport{RunID: r.RunID, Descriptors: make([]yamlOutput, 0, len(r.Outputs))}
	if len(r.Phases) > 0 {
		doc.Phases = make(map[string]string, len(r.Phases))
		for _, p := range r.Phases {
			doc.Phases[p.Name] = p.Duration.String()
		}
	}
	for _, o := range r.Outputs {
		entry := yamlOutput{
			Descriptor: o.Descriptor,
			Kind:       o.Kind,
			State:      o.State().String(),
			Targets:    o.Targets(),
			Generated:  o.Generated(),
			Skipped:    o.Skipped(),
			Unused:     o.Unused(),
		}
		for _, err := range o.Errors() {
			entry.Errors = append(entry.Errors, err.Error())
		}
		doc.Descriptors = append(doc.Descriptors, entry)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}
