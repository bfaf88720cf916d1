package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the kiln version, the git commit, the linked esbuild version
and the platform.

Examples:
  kiln version                 # Version with build details
  kiln version --short         # Version only
  kiln version --format json   # Machine-readable`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
}

func runVersionCommand(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	switch versionFormat {
	case "json":
		return outputVersionJSON(out)
	case "text":
		if versionShort {
			fmt.Fprintln(out, version.GetShortVersion())
			return nil
		}
		fmt.Fprintln(out, version.GetDetailedVersion())
		if version.IsDirty() {
			fmt.Fprintln(out, "Working directory: dirty")
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}

func outputVersionJSON(out io.Writer) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		*version.BuildInfo
		Dirty bool `json:"is_dirty"`
	}{version.GetBuildInfo(), version.IsDirty()})
}
