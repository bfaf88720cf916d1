package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Project.Root)
	assert.Equal(t, []string{"src/main.tsx"}, cfg.Project.EntryPoints)
	assert.Equal(t, "dist", cfg.Project.OutDir)
	assert.Equal(t, "index.html", cfg.Project.Index)
	assert.Equal(t, "root", cfg.Project.MountID)

	assert.Equal(t, "esm", cfg.Build.Format)
	assert.True(t, cfg.Build.Sourcemap)
	assert.True(t, cfg.Build.Minify)
	assert.Equal(t, DefaultLoaders(), cfg.Build.Loaders)
	assert.Empty(t, cfg.Build.Define)

	assert.Equal(t, ProcessorAuto, cfg.CSS.Processor)
	assert.Equal(t, "tailwindcss", cfg.CSS.Command)
	assert.Equal(t, `\.css$`, cfg.CSS.Filter)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/esbuild", cfg.Server.ReloadPath)
	assert.Equal(t, "/ws", cfg.Server.WebSocketPath)

	assert.Equal(t, []string{"index.html", "public"}, cfg.Dev.WatchStatic)
	assert.Equal(t, 100*time.Millisecond, cfg.Dev.Debounce)
	assert.Equal(t, "update", cfg.Dev.ReloadPayload)

	assert.Equal(t, "localhost:3000", cfg.Addr())
	assert.Equal(t, "index.html", cfg.IndexPath())
}

func TestDefaultMatchesLoad(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)
	assert.Equal(t, cfg, Default())
}

func TestLoadOverrides(t *testing.T) {
	v := viper.New()
	v.Set("server.port", 8080)
	v.Set("server.host", "0.0.0.0")
	v.Set("project.out_dir", "build/web")
	v.Set("build.loaders", map[string]string{"tsx": "tsx", "png": "file"})
	v.Set("dev.debounce", "250ms")
	v.Set("css.processor", "none")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "build/web", cfg.Project.OutDir)
	assert.Equal(t, map[string]string{"tsx": "tsx", "png": "file"}, cfg.Build.Loaders)
	assert.Equal(t, 250*time.Millisecond, cfg.Dev.Debounce)
	assert.Equal(t, ProcessorNone, cfg.CSS.Processor)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".kiln.yml")
	content := `
project:
  entry_points: [src/index.tsx, src/worker.ts]
  mount_id: app
server:
  port: 4000
build:
  define:
    - process.env.NODE_ENV="production"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, []string{"src/index.tsx", "src/worker.ts"}, cfg.Project.EntryPoints)
	assert.Equal(t, "app", cfg.Project.MountID)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, []string{`process.env.NODE_ENV="production"`}, cfg.Build.Define)
}

func TestLoadWithEnvironment(t *testing.T) {
	t.Setenv("KILN_SERVER_PORT", "9999")
	t.Setenv("KILN_PROJECT_OUT_DIR", "public/build")

	v := viper.New()
	BindEnv(v)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "public/build", cfg.Project.OutDir)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]interface{}
	}{
		{"port too high", map[string]interface{}{"server.port": 70000}},
		{"negative port", map[string]interface{}{"server.port": -1}},
		{"port not a number", map[string]interface{}{"server.port": "abc"}},
		{"dangerous host", map[string]interface{}{"server.host": "localhost; rm -rf /"}},
		{"empty entry points", map[string]interface{}{"project.entry_points": []string{}}},
		{"blank entry point", map[string]interface{}{"project.entry_points": []string{" "}}},
		{"absolute out dir", map[string]interface{}{"project.out_dir": "/var/www"}},
		{"traversing out dir", map[string]interface{}{"project.out_dir": "../dist"}},
		{"root out dir", map[string]interface{}{"project.out_dir": "."}},
		{"empty mount id", map[string]interface{}{"project.mount_id": ""}},
		{"unknown format", map[string]interface{}{"build.format": "umd"}},
		{"unknown loader", map[string]interface{}{"build.loaders": map[string]string{"tsx": "babel"}}},
		{"dotted loader key", map[string]interface{}{"build.loaders": map[string]string{"a/b": "tsx"}}},
		{"malformed define", map[string]interface{}{"build.define": []string{"DEBUG"}}},
		{"unknown processor", map[string]interface{}{"css.processor": "sass"}},
		{"command without binary", map[string]interface{}{"css.processor": "command", "css.command": ""}},
		{"bad filter", map[string]interface{}{"css.filter": "("}},
		{"relative reload path", map[string]interface{}{"server.reload_path": "esbuild"}},
		{"root reload path", map[string]interface{}{"server.reload_path": "/"}},
		{"same endpoints", map[string]interface{}{"server.reload_path": "/live", "server.websocket_path": "/live"}},
		{"negative debounce", map[string]interface{}{"dev.debounce": "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}

			cfg, err := LoadFrom(v)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.True(t, kerrors.HasCode(err, kerrors.ErrCodeConfigInvalid), "got %v", err)
		})
	}
}

func TestDefaultLoadersIsCopy(t *testing.T) {
	a := DefaultLoaders()
	a["tsx"] = "js"
	assert.Equal(t, "tsx", DefaultLoaders()["tsx"])
}
