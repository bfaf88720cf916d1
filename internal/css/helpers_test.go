package css

import (
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
)

func buildCSS(t *testing.T, entry string, plugin api.Plugin) api.BuildResult {
	t.Helper()
	return api.Build(api.BuildOptions{
		EntryPoints: []string{entry},
		Bundle:      true,
		Outdir:      filepath.Join(filepath.Dir(entry), "out"),
		Write:       false,
		LogLevel:    api.LogLevelSilent,
		Plugins:     []api.Plugin{plugin},
	})
}
