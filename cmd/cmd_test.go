package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/scaffolding"
	"github.com/conneroisu/kiln/internal/testutils"
)

// syncBuffer is written by the server goroutine and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func executeContext(ctx context.Context, out, errOut io.Writer, args ...string) error {
	resetFlags(rootCmd)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := executeContext(context.Background(), &out, &errOut, args...)
	return out.String(), err
}

const (
	mountedIndex   = testutils.MountedIndex
	unmountedIndex = testutils.UnmountedIndex
)

// newProject writes a buildable project into a temp dir and changes into it.
func newProject(t *testing.T, index string) string {
	t.Helper()
	files := testutils.DefaultProject(index)
	files[".kiln.yml"] = "css:\n  processor: none\ndev:\n  watch_static: [index.html]\n"
	dir := testutils.CreateTempProject(t, files)
	t.Chdir(dir)
	return dir
}

func TestInitCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, "init", "my-app")
	require.NoError(t, err)

	for _, f := range []string{"src/main.tsx", "src/App.tsx", "src/index.css", "index.html", ".kiln.yml"} {
		assert.FileExists(t, filepath.Join("my-app", f))
	}
	assert.Contains(t, out, "created my-app/src/main.tsx")
	assert.Contains(t, out, "cd my-app")

	_, err = execute(t, "init", "my-app")
	require.Error(t, err)
	assert.ErrorIs(t, err, scaffolding.ErrFileExists)

	_, err = execute(t, "i", "my-app", "--force", "--template", "react")
	require.NoError(t, err)
}

func TestInitList(t *testing.T) {
	out, err := execute(t, "init", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "flowbite")
	assert.Contains(t, out, "react")
}

func TestInitUnknownTemplate(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "init", "--template", "vue")
	assert.Error(t, err)
}

func TestBuildCommand(t *testing.T) {
	dir := newProject(t, mountedIndex)

	out, err := execute(t, "build", "--minify=false")
	require.NoError(t, err)

	js, err := os.ReadFile(filepath.Join(dir, "dist", "main.js"))
	require.NoError(t, err)
	assert.Contains(t, string(js), "greeting")
	assert.FileExists(t, filepath.Join(dir, "dist", "main.js.map"))
	assert.Contains(t, out, "main.js")
}

func TestBuildAlias(t *testing.T) {
	dir := newProject(t, mountedIndex)

	_, err := execute(t, "b", "--sourcemap=false")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "dist", "main.js"))
	assert.NoFileExists(t, filepath.Join(dir, "dist", "main.js.map"))
}

func TestBuildMissingMount(t *testing.T) {
	dir := newProject(t, unmountedIndex)

	_, err := execute(t, "build")
	require.Error(t, err)
	assert.True(t, kerrors.HasCode(err, kerrors.ErrCodeMountNotFound), "got %v", err)
	assert.NoDirExists(t, filepath.Join(dir, "dist"))
}

func TestBuildSyntaxError(t *testing.T) {
	dir := newProject(t, mountedIndex)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.tsx"), []byte("const = ;\n"), 0o644))

	_, err := execute(t, "build")
	require.Error(t, err)
	assert.True(t, kerrors.HasCode(err, kerrors.ErrCodeBuildFailed), "got %v", err)
	assert.Contains(t, err.Error(), "main.tsx")
}

func TestConfigSources(t *testing.T) {
	t.Run("explicit file must exist", func(t *testing.T) {
		newProject(t, mountedIndex)
		_, err := execute(t, "build", "--config", "missing.yml")
		assert.Error(t, err)
	})

	t.Run("env file is read", func(t *testing.T) {
		dir := newProject(t, mountedIndex)
		alt := filepath.Join(dir, "alt.yml")
		require.NoError(t, os.WriteFile(alt, []byte("build:\n  format: umd\n"), 0o644))
		t.Setenv(ConfigFileEnv, alt)

		_, err := execute(t, "build")
		require.Error(t, err)
		assert.True(t, kerrors.HasCode(err, kerrors.ErrCodeConfigInvalid), "got %v", err)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		dir := newProject(t, mountedIndex)
		t.Setenv("KILN_PROJECT_OUT_DIR", "public/build")

		_, err := execute(t, "build")
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(dir, "public", "build", "main.js"))
	})
}

func TestDevCommand(t *testing.T) {
	newProject(t, mountedIndex)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out, errOut syncBuffer
	done := make(chan error, 1)
	go func() { done <- executeContext(ctx, &out, &errOut, "dev", "--port", "0") }()

	banner := regexp.MustCompile(`Development server running on (http://\S+)`)
	var base string
	require.Eventually(t, func() bool {
		m := banner.FindStringSubmatch(out.String())
		if m == nil {
			return false
		}
		base = m[1]
		return true
	}, 10*time.Second, 20*time.Millisecond, "stderr: %s", errOut.String())
	assert.True(t, strings.HasPrefix(base, "http://localhost:"), base)

	for path, want := range map[string]string{
		"/":             `id="root"`,
		"/dist/main.js": "greeting",
	} {
		resp, err := http.Get(base + path)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, string(body), want, path)
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("dev command did not stop")
	}
}

func TestDevMissingMount(t *testing.T) {
	newProject(t, unmountedIndex)

	_, err := execute(t, "serve", "--port", "0")
	require.Error(t, err)
	assert.True(t, kerrors.HasCode(err, kerrors.ErrCodeMountNotFound), "got %v", err)
}

func TestPortValidation(t *testing.T) {
	_, err := execute(t, "dev", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 0 and 65535")
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"0", true},
		{"3000", true},
		{"65535", true},
		{"65536", false},
		{"-1", false},
		{"http", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.ok, ValidatePort(tt.in) == nil)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--format", "json")
	require.NoError(t, err)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "esbuild")
	assert.Contains(t, info, "is_dirty")

	out, err = execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))

	_, err = execute(t, "version", "--format", "xml")
	assert.Error(t, err)
}
