package provision

import (
	"fmt"
	"strings"
)

// Kind classifies the outcome of one workflow step.
type Kind int

const (
	// Done means the step changed the target system.
	Done Kind = iota
	// AlreadyExists means the target was already in the requested state.
	AlreadyExists
	// Skipped means the step had nothing it could act on, such as an
	// unknown username.
	Skipped
	// Failed is a step-local error; the workflow continues.
	Failed
	// Fatal stops the remaining steps of the current project.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Done:
		return "done"
	case AlreadyExists:
		return "already_exists"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}

// StepResult is what every workflow step returns. Backend names the system
// the step talked to; empty means GitLab.
type StepResult struct {
	Step    string
	Kind    Kind
	Message string
	Err     error
	Backend string
}

func result(step string, kind Kind, err error, format string, args ...interface{}) StepResult {
	return StepResult{Step: step, Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// on tags the result with the backend that produced it.
func (r StepResult) on(backend string) StepResult {
	r.Backend = backend
	return r
}

func (r StepResult) backend() string {
	if r.Backend == "" {
		return "gitlab"
	}
	return r.Backend
}

func (r StepResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s: %v", r.Step, r.Message, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Step, r.Message)
}

// Report collects every StepResult of a run in order.
type Report struct {
	Results []StepResult
}

// Count returns how many results are of kind k.
func (r *Report) Count(k Kind) int {
	n := 0
	for _, res := range r.Results {
		if res.Kind == k {
			n++
		}
	}
	return n
}

// Failed reports whether any step failed or was fatal.
func (r *Report) Failed() bool {
	return r.Count(Failed) > 0 || r.Count(Fatal) > 0
}

// Summary is a one-line count per kind.
func (r *Report) Summary() string {
	parts := make([]string, 0, 5)
	for _, k := range []Kind{Done, AlreadyExists, Skipped, Failed, Fatal} {
		parts = append(parts, fmt.Sprintf("%s=%d", k, r.Count(k)))
	}
	return strings.Join(parts, " ")
}

// Steps returns the results of one step name, in order.
func (r *Report) Steps(step string) []StepResult {
	var out []StepResult
	for _, res := range r.Results {
		if res.Step == step {
			out = append(out, res)
		}
	}
	return out
}
