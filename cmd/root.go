// Package cmd provides the command-line interface for kiln.
//
// Configuration System:
//
//	Settings come from several sources. Higher sources win:
//	1. Command-line flags (--port, --minify, ...)
//	2. KILN_<SECTION>_<KEY> environment variables, e.g. KILN_SERVER_PORT
//	3. The configuration file: --config, then KILN_CONFIG_FILE, then
//	   .kiln.yml in the current directory
//	4. Built-in defaults
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/kiln/internal/config"
	"github.com/conneroisu/kiln/internal/logging"
)

// ConfigFileEnv names an alternative configuration file.
const ConfigFileEnv = "KILN_CONFIG_FILE"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kiln",
	Short: "Build and serve React + Tailwind front-ends with esbuild",
	Long: `kiln bundles a TypeScript/React application with esbuild, runs its
stylesheets through a Tailwind-style CSS processor, and serves it with
live reload during development.

Quick Start:
  kiln init my-app        Scaffold a new application
  kiln dev                Start the development server with live reload
  kiln build              Produce a minified production bundle

Command Aliases:
  init (i), dev (serve, s), build (b)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .kiln.yml, can also use "+ConfigFileEnv+")")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// loadConfig resolves the configuration for cmd. bindings maps flag names to
// configuration keys; only flags the user set override lower sources.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	v := viper.New()

	switch {
	case cfgFile != "":
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		v.SetConfigFile(cfgFile)
	case os.Getenv(ConfigFileEnv) != "":
		v.SetConfigFile(os.Getenv(ConfigFileEnv))
	default:
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".kiln")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", v.ConfigFileUsed())
	}

	config.BindEnv(v)

	all := map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
	}
	for flag, key := range bindings {
		all[flag] = key
	}
	if err := BindFlags(cmd, v, all); err != nil {
		return nil, err
	}

	return config.LoadFrom(v)
}

// newLogger builds the logger described by cfg.Log, writing to the
// command's error stream.
func newLogger(cmd *cobra.Command, cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	}), nil
}
