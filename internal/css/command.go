package css

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// PathPlaceholder is replaced by the stylesheet path in command arguments.
const PathPlaceholder = "{path}"

// CommandProcessor pipes a stylesheet through an external CSS tool such as
// the Tailwind CLI. The contents are written to stdin and the transformed CSS
// is read from stdout.
type CommandProcessor struct {
	command string
	args    []string
}

// NewCommandProcessor returns a processor running command with args. With
// no args it runs `command --input {path}`.
func NewCommandProcessor(command string, args []string) *CommandProcessor {
	if len(args) == 0 {
		args = []string{"--input", PathPlaceholder}
	}
	return &CommandProcessor{command: command, args: args}
}

// Name implements Processor.
func (p *CommandProcessor) Name() string {
	return filepath.Base(p.command)
}

// Args returns the arguments used for in.
func (p *CommandProcessor) Args(in Input) []string {
	args := make([]string, 0, len(p.args)+1)
	for _, a := range p.args {
		args = append(args, strings.ReplaceAll(a, PathPlaceholder, in.Path))
	}
	if in.SourceMap {
		args = append(args, "--map")
	}
	return args
}

// Process implements Processor.
func (p *CommandProcessor) Process(ctx context.Context, in Input) (Output, error) {
	cmd := exec.CommandContext(ctx, p.command, p.Args(in)...)
	// Tailwind detects class sources from its working directory. The full
	// --input path keeps relative @import resolution intact.
	cmd.Dir = in.WorkingDir
	cmd.Stdin = strings.NewReader(in.Contents)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return Output{}, err
		}
		return Output{}, fmt.Errorf("%w: %s", err, msg)
	}

	return Output{Contents: stdout.String()}, nil
}
