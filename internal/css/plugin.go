package css

import (
	"context"
	"os"

	"github.com/evanw/esbuild/pkg/api"
)

// PluginName is the name esbuild reports for errors raised by the plugin.
const PluginName = "css"

// Plugin returns an esbuild plugin that loads every file matching filter
// through the pipeline and hands the result to esbuild's CSS loader.
// A pipeline failure becomes a build error for that file; it never aborts
// the process.
func Plugin(pipeline *Pipeline, filter string, sourceMap bool) api.Plugin {
	if filter == "" {
		filter = `\.css$`
	}
	return api.Plugin{
		Name: PluginName,
		Setup: func(build api.PluginBuild) {
			workingDir := build.InitialOptions.AbsWorkingDir
			build.OnLoad(api.OnLoadOptions{Filter: filter, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					contents, err := os.ReadFile(args.Path)
					if err != nil {
						return api.OnLoadResult{}, err
					}

					out, err := pipeline.Process(context.Background(), Input{
						Path:       args.Path,
						Contents:   string(contents),
						SourceMap:  sourceMap,
						WorkingDir: workingDir,
					})
					if err != nil {
						return api.OnLoadResult{}, err
					}

					return api.OnLoadResult{
						Contents: &out.Contents,
						Loader:   api.LoaderCSS,
					}, nil
				})
		},
	}
}
