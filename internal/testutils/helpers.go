// Package testutils holds fixtures shared by kiln's package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/kiln/internal/config"
)

// Document shells with and without the default mount element.
const (
	MountedIndex   = `<!DOCTYPE html><html><head><title>app</title></head><body><div id="root"></div><script type="module" src="/dist/main.js"></script></body></html>`
	UnmountedIndex = `<!DOCTYPE html><html><head></head><body><main></main></body></html>`
)

// EntrySource is a small TSX entry point that survives unminified builds
// with the identifier "greeting" intact.
const EntrySource = "function greeting(name: string): string {\n  return \"hello \" + name;\n}\nconsole.log(greeting(\"kiln\"));\n"

// DefaultProject returns the files of a buildable project with the given
// document shell.
func DefaultProject(index string) map[string]string {
	return map[string]string{
		"index.html":   index,
		"src/main.tsx": EntrySource,
	}
}

// CreateTempProject writes files (slash-separated paths) below a new
// temporary directory and returns it.
func CreateTempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(name)), content)
	}
	return root
}

// WriteFile creates path with content, making parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// CreateTestConfig returns the defaults rooted at projectDir with an
// OS-assigned port, no external CSS processor and a short debounce.
func CreateTestConfig(projectDir string) *config.Config {
	cfg := config.Default()
	cfg.Project.Root = projectDir
	cfg.Server.Port = 0
	cfg.CSS.Processor = config.ProcessorNone
	cfg.Dev.Debounce = 20 * time.Millisecond
	return cfg
}

// AssertFilePermissions checks the permission bits of path.
func AssertFilePermissions(t *testing.T, path string, expectedMode os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)

	actualMode := info.Mode()
	require.Equal(t, expectedMode, actualMode&os.FileMode(0o777),
		"File %s has incorrect permissions: got %o, want %o",
		path, actualMode&os.FileMode(0o777), expectedMode)
}

// WaitForFileChange waits for a file to be modified (useful for testing file watchers)
func WaitForFileChange(
	t *testing.T,
	filePath string,
	originalModTime time.Time,
	timeout time.Duration,
) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		info, err := os.Stat(filePath)
		if err == nil && info.ModTime().After(originalModTime) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s was not modified within %v", filePath, timeout)
}
