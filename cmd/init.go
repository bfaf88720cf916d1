package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/kiln/internal/config"
	"github.com/conneroisu/kiln/internal/scaffolding"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Scaffold a React + Tailwind application",
	Long: `Write the application entry point, a root component, the stylesheet,
the document shell with its mount element and live-reload client, and a
.kiln.yml with the defaults. If no directory is given, the current
directory is used.

Examples:
  kiln init                       # Scaffold into the current directory
  kiln init my-app                # Scaffold into ./my-app
  kiln init --template react      # Plain React without the theme toolkit
  kiln init --list                # Show the available templates`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initTemplate string
	initName     string
	initForce    bool
	initList     bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&initTemplate, "template", "t", scaffolding.DefaultTemplate, "Project template")
	initCmd.Flags().StringVar(&initName, "name", "", "Project name (default is the directory name)")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing files")
	initCmd.Flags().BoolVar(&initList, "list", false, "List available templates")
}

func runInit(cmd *cobra.Command, args []string) error {
	generator := scaffolding.NewProjectGenerator(nil)

	if initList {
		for _, info := range generator.ListTemplates() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s (%d files)\n", info.Name, info.Description, info.Files)
		}
		return nil
	}

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	paths, err := generator.Generate(scaffolding.GenerateOptions{
		Dir:      dir,
		Name:     initName,
		Template: initTemplate,
		Force:    initForce,
		Config:   config.Default(),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, p := range paths {
		fmt.Fprintf(out, "  created %s\n", filepath.ToSlash(filepath.Join(dir, p)))
	}
	fmt.Fprintln(out)
	if dir != "." {
		fmt.Fprintf(out, "Next: cd %s && npm install && kiln dev\n", dir)
	} else {
		fmt.Fprintln(out, "Next: npm install && kiln dev")
	}
	return nil
}
