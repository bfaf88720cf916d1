package server

import (
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/kiln/internal/app"
	kerrors "github.com/conneroisu/kiln/internal/errors"
)

// contentTypes maps URL extensions to the Content-Type header. Lookups are
// case sensitive.
var contentTypes = map[string]string{
	".html": "text/html",
	".js":   "text/javascript",
	".css":  "text/css",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
}

// DefaultContentType is sent for every extension missing from the table.
const DefaultContentType = "text/plain"

// ContentType returns the Content-Type for a URL path based on its last
// dot-suffix.
func ContentType(urlPath string) string {
	if ct, ok := contentTypes[path.Ext(urlPath)]; ok {
		return ct
	}
	return DefaultContentType
}

// Resolver maps request paths onto files below the project root.
type Resolver struct {
	Root   string
	OutDir string
	Index  string
}

// NewResolver returns a Resolver for the project at root. outDir and index
// are relative to root.
func NewResolver(root, outDir, index string) (Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Resolver{}, kerrors.NewIOError(kerrors.ErrCodeInvalidPath, "cannot resolve project root", err)
	}
	return Resolver{
		Root:   abs,
		OutDir: path.Clean(filepath.ToSlash(outDir)),
		Index:  path.Clean(filepath.ToSlash(index)),
	}, nil
}

// URLPath returns the request path with "/" replaced by the default
// document.
func (r Resolver) URLPath(urlPath string) string {
	if urlPath == "" || urlPath == "/" {
		return "/" + r.Index
	}
	return urlPath
}

// InOutDir reports whether urlPath points into the build output directory.
// The prefix must end on a segment boundary, so /distfoo is not /dist.
func (r Resolver) InOutDir(urlPath string) bool {
	prefix := "/" + r.OutDir
	if !strings.HasPrefix(urlPath, prefix) {
		return false
	}
	return len(urlPath) == len(prefix) || urlPath[len(prefix)] == '/'
}

// Resolve returns the file served for urlPath. Output paths drop their
// leading slash and every other path is read as "."+path, both relative to
// the root. Paths that escape the root are rejected.
func (r Resolver) Resolve(urlPath string) (string, error) {
	p := r.URLPath(urlPath)

	var rel string
	if r.InOutDir(p) {
		rel = p[1:]
	} else {
		rel = "." + p
	}

	full := filepath.Join(r.Root, filepath.FromSlash(rel))
	within, err := filepath.Rel(r.Root, full)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", kerrors.ErrPathTraversal(urlPath)
	}
	return full, nil
}

// IsIndex reports whether file is the default document.
func (r Resolver) IsIndex(file string) bool {
	return file == filepath.Join(r.Root, filepath.FromSlash(r.Index))
}

// handleStatic serves project files. The default document goes through
// app.Shell so the theme bootstrap is present. Any failure is a 404.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	urlPath := s.resolver.URLPath(r.URL.Path)

	file, err := s.resolver.Resolve(urlPath)
	if err != nil {
		s.errs.Handle(r.Context(), err)
		notFound(w)
		return
	}

	body, err := s.readFile(file)
	if err != nil {
		s.logger.Debug(r.Context(), "Static file not found", "path", r.URL.Path, "error", err.Error())
		notFound(w)
		return
	}

	w.Header().Set("Content-Type", ContentType(urlPath))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) readFile(file string) ([]byte, error) {
	if !s.resolver.IsIndex(file) {
		return os.ReadFile(file)
	}
	shell, err := app.LoadShell(file, s.mountID)
	if err != nil {
		return nil, err
	}
	shell.EnsureThemeInit()
	return shell.Bytes()
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", DefaultContentType)
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, "Not found")
}
