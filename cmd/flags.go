package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Server flags
	Port int
	Host string

	// Build flags
	Minify    bool
	Sourcemap bool
	Metafile  bool
}

// Flag groups accepted by AddStandardFlags.
const (
	ServerFlags = "server"
	BuildFlags  = "build"
)

// AddStandardFlags adds standard flags to a command and returns the flag to
// configuration key bindings for loadConfig.
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) (*StandardFlags, map[string]string) {
	flags := &StandardFlags{}
	bindings := make(map[string]string)

	for _, flagType := range flagTypes {
		switch flagType {
		case ServerFlags:
			addServerFlags(cmd, flags, bindings)
		case BuildFlags:
			addBuildFlags(cmd, flags, bindings)
		}
	}

	return flags, bindings
}

func addServerFlags(cmd *cobra.Command, flags *StandardFlags, bindings map[string]string) {
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 3000, "Port to serve on")
	cmd.Flags().StringVar(&flags.Host, "host", "localhost", "Host to bind to")
	AddFlagValidation(cmd, "port", ValidatePort)

	bindings["port"] = "server.port"
	bindings["host"] = "server.host"
}

func addBuildFlags(cmd *cobra.Command, flags *StandardFlags, bindings map[string]string) {
	cmd.Flags().BoolVar(&flags.Minify, "minify", true, "Minify identifiers, whitespace and syntax")
	cmd.Flags().BoolVar(&flags.Sourcemap, "sourcemap", true, "Write linked source maps")
	cmd.Flags().BoolVar(&flags.Metafile, "metafile", false, "Print a per-file bundle analysis")

	bindings["minify"] = "build.minify"
	bindings["sourcemap"] = "build.sourcemap"
	bindings["metafile"] = "build.metafile"
}

// BindFlags binds the flags that the user actually set to configuration
// keys on v. Unset flags keep their defaults out of the way of the config
// file and environment.
func BindFlags(cmd *cobra.Command, v *viper.Viper, bindings map[string]string) error {
	for flagName, configKey := range bindings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(configKey, flag); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flagName, err)
		}
	}
	return nil
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort accepts 0 (pick a free port) through 65535.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}

	return nil
}
