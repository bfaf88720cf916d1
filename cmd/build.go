package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/build"
	"github.com/conneroisu/kiln/internal/config"
	"github.com/conneroisu/kiln/internal/css"
	"github.com/conneroisu/kiln/internal/logging"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Produce a production bundle",
	Long: `Bundle the configured entry points into the output directory with
minification, linked source maps and the CSS pipeline. The document shell
must contain the mount element; otherwise nothing is built.

Examples:
  kiln build                    # Minified ESM bundle in dist/
  kiln build --minify=false     # Readable output
  kiln build --metafile         # Also print the bundle analysis`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var buildBindings map[string]string

func init() {
	rootCmd.AddCommand(buildCmd)
	_, buildBindings = AddStandardFlags(buildCmd, BuildFlags)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, buildBindings)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	opts, err := newBuildOptions(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := build.Build(ctx, opts, logger.WithComponent("build"))
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), report.Render())
	return nil
}

// newBuildOptions wires the CSS pipeline into the shared build record.
func newBuildOptions(cfg *config.Config, logger logging.Logger) (build.Options, error) {
	pipeline, err := css.NewPipeline(cfg.CSS, logger.WithComponent("css"))
	if err != nil {
		return build.Options{}, err
	}
	return build.NewOptions(cfg, pipeline)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
