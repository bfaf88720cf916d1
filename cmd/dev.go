package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/dev"
	"github.com/conneroisu/kiln/internal/livereload"
	"github.com/conneroisu/kiln/internal/server"
)

var devCmd = &cobra.Command{
	Use:     "dev",
	Aliases: []string{"serve", "s"},
	Short:   "Start the development server with live reload",
	Long: `Watch the entry points with esbuild, rebuild on every change and
serve the project with live reload. Browsers subscribed to the reload
endpoint refresh after each build and after edits to static files.

Examples:
  kiln dev                     # http://localhost:3000
  kiln dev --port 8080         # Another port
  kiln serve --host 0.0.0.0    # Reachable from the network`,
	Args: cobra.NoArgs,
	RunE: runDev,
}

var devBindings map[string]string

func init() {
	rootCmd.AddCommand(devCmd)
	_, devBindings = AddStandardFlags(devCmd, ServerFlags)
}

func runDev(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, devBindings)
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

	hub := livereload.NewHub(logger)
	orchestrator := dev.New(opts, cfg.Dev, hub, logger.WithComponent("dev"))
	if err := orchestrator.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := orchestrator.Close(); err != nil {
			logger.Error(context.Background(), err, "Failed to stop watchers")
		}
	}()

	srv, err := server.New(cfg, hub, orchestrator, logger)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Development server running on %s\n", srv.URL())

	if err := srv.Serve(ctx); err != nil {
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
