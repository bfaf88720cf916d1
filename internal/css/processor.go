// Package css turns stylesheet files into bundler-ready CSS. A Pipeline runs
// an ordered list of processors over each file, the way PostCSS chains its
// plugins, and Plugin hooks the pipeline into esbuild's load phase.
package css

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/conneroisu/kiln/internal/config"
	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/logging"
)

// Input is one stylesheet handed to a processor.
type Input struct {
	Path     string
	Contents string
	// WorkingDir is the project root external tools run in. Empty means
	// the current directory.
	WorkingDir string
	// SourceMap asks processors to annotate their output with an inline
	// source map. Development builds set it; production builds do not.
	SourceMap bool
}

// Output is the transformed stylesheet.
type Output struct {
	Contents string
}

// Processor transforms stylesheet contents.
type Processor interface {
	Name() string
	Process(ctx context.Context, in Input) (Output, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ctx context.Context, in Input) (Output, error)

// Name implements Processor.
func (f ProcessorFunc) Name() string { return "func" }

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, in Input) (Output, error) {
	return f(ctx, in)
}

// Pipeline runs processors in order, feeding each one's output to the next.
type Pipeline struct {
	stages []Processor
}

// NewPipeline builds the pipeline described by cfg.
//
// In auto mode the external command is used only when it can be found on
// PATH; otherwise the pipeline degrades to the built-in stages and logs a
// warning. Command mode fails fast when the command is missing.
func NewPipeline(cfg config.CSSConfig, logger logging.Logger) (*Pipeline, error) {
	var stages []Processor

	switch cfg.Processor {
	case config.ProcessorCommand:
		if _, err := exec.LookPath(cfg.Command); err != nil {
			return nil, kerrors.ErrConfigInvalid(fmt.Sprintf("css.command %q not found", cfg.Command)).
				WithContext("cause", err.Error())
		}
		stages = append(stages, NewCommandProcessor(cfg.Command, cfg.Args))
	case config.ProcessorAuto:
		if _, err := exec.LookPath(cfg.Command); err == nil {
			stages = append(stages, NewCommandProcessor(cfg.Command, cfg.Args))
		} else if logger != nil {
			logger.Warn(context.Background(), err, "CSS processor not found, stylesheets are bundled without it",
				"command", cfg.Command)
		}
	case config.ProcessorNone:
	default:
		return nil, kerrors.ErrConfigInvalid("unknown css.processor: " + cfg.Processor)
	}

	stages = append(stages, AtRuleDeduper{})
	p := NewPipelineOf(stages...)
	if logger != nil {
		logger.Debug(context.Background(), "CSS pipeline ready", "stages", p.Stages())
	}
	return p, nil
}

// NewPipelineOf builds a pipeline from explicit stages.
func NewPipelineOf(stages ...Processor) *Pipeline {
	return &Pipeline{stages: stages}
}

// Stages returns the names of the configured stages in order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Process runs every stage. The first failure aborts the run and is
// returned as an ERR_CSS_TRANSFORM error.
func (p *Pipeline) Process(ctx context.Context, in Input) (Output, error) {
	out := Output{Contents: in.Contents}
	for _, stage := range p.stages {
		next := in
		next.Contents = out.Contents

		result, err := stage.Process(ctx, next)
		if err != nil {
			return Output{}, kerrors.ErrCSSTransform(in.Path, fmt.Errorf("%s: %w", stage.Name(), err))
		}
		out = result
	}
	return out, nil
}
