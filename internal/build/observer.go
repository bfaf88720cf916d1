package build

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

// Result summarises one completed bundling pass.
type Result struct {
	Errors   []kerrors.BuildError
	Warnings []kerrors.BuildError
	Duration time.Duration
	// Outputs lists the written files relative to the project root.
	Outputs []string
	// Metafile is esbuild's raw metadata JSON.
	Metafile string
}

// Failed reports whether the pass produced errors.
func (r Result) Failed() bool {
	return len(r.Errors) > 0
}

// Observer is notified after every bundling pass, failed or not.
type Observer interface {
	BuildComplete(Result)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Result)

// BuildComplete implements Observer.
func (f ObserverFunc) BuildComplete(r Result) { f(r) }

// ObserverPlugin reports the end of each pass to observers. It is the last
// plugin in development builds so observers see the final result.
func ObserverPlugin(observers ...Observer) api.Plugin {
	return api.Plugin{
		Name: "kiln-observer",
		Setup: func(build api.PluginBuild) {
			var (
				mu    sync.Mutex
				start time.Time
			)

			build.OnStart(func() (api.OnStartResult, error) {
				mu.Lock()
				start = time.Now()
				mu.Unlock()
				return api.OnStartResult{}, nil
			})

			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				mu.Lock()
				elapsed := time.Since(start)
				mu.Unlock()

				r := NewResult(result, elapsed)
				for _, o := range observers {
					o.BuildComplete(r)
				}
				return api.OnEndResult{}, nil
			})
		},
	}
}

// NewResult converts an esbuild result.
func NewResult(result *api.BuildResult, elapsed time.Duration) Result {
	r := Result{
		Errors:   convertMessages(result.Errors, kerrors.ErrorSeverityError),
		Warnings: convertMessages(result.Warnings, kerrors.ErrorSeverityWarning),
		Duration: elapsed,
		Metafile: result.Metafile,
	}

	if outputs, err := metafileOutputs(result.Metafile); err == nil && len(outputs) > 0 {
		r.Outputs = outputs
	} else {
		for _, f := range result.OutputFiles {
			r.Outputs = append(r.Outputs, f.Path)
		}
	}
	return r
}

func convertMessages(msgs []api.Message, severity kerrors.ErrorSeverity) []kerrors.BuildError {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now()
	out := make([]kerrors.BuildError, 0, len(msgs))
	for _, m := range msgs {
		be := kerrors.BuildError{
			Plugin:    m.PluginName,
			Message:   m.Text,
			Severity:  severity,
			Timestamp: now,
		}
		if m.Location != nil {
			be.File = m.Location.File
			be.Line = m.Location.Line
			// esbuild columns are zero-based.
			be.Column = m.Location.Column + 1
		}
		out = append(out, be)
	}
	return out
}

type metafile struct {
	Outputs map[string]struct {
		Bytes int64 `json:"bytes"`
	} `json:"outputs"`
}

// metafileOutputs returns the output paths recorded in an esbuild metafile,
// sorted.
func metafileOutputs(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var meta metafile
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, err
	}
	outputs := make([]string, 0, len(meta.Outputs))
	for path := range meta.Outputs {
		outputs = append(outputs, path)
	}
	sort.Strings(outputs)
	return outputs, nil
}
