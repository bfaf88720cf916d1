// Package app checks and prepares the HTML document the bundled application
// mounts into. The application itself is TypeScript; this package only
// guarantees the document can host it.
package app

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

// ThemeAttr marks the theme bootstrap script inserted by EnsureThemeInit.
const ThemeAttr = "data-kiln-theme"

// ThemeStorageKey is the localStorage key holding the user's theme mode.
const ThemeStorageKey = "flowbite-theme-mode"

// themeScript applies the stored theme mode before first paint so the page
// does not flash the wrong color scheme.
const themeScript = `(function(){try{var m=localStorage.getItem("` + ThemeStorageKey + `")||"auto";` +
	`var d=m==="dark"||(m==="auto"&&window.matchMedia("(prefers-color-scheme: dark)").matches);` +
	`document.documentElement.classList.toggle("dark",d);}catch(e){}})();`

// Shell is an HTML document kept as its original bytes plus the parsed tree.
type Shell struct {
	path    string
	mountID string
	src     []byte
	doc     *html.Node
}

// LoadShell reads and parses the document at path.
func LoadShell(path, mountID string) (*Shell, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, kerrors.NewIOError(kerrors.ErrCodeFileNotFound, "default document not found", err).
				WithLocation(path, 0, 0)
		}
		return nil, kerrors.NewIOError(kerrors.ErrCodeInvalidPath, "cannot open default document", err).
			WithLocation(path, 0, 0)
	}
	defer f.Close()

	return ParseShell(f, path, mountID)
}

// ParseShell parses a document read from r. The path is only used in errors.
func ParseShell(r io.Reader, path, mountID string) (*Shell, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, kerrors.NewIOError(kerrors.ErrCodeInvalidPath, "cannot read default document", err).
			WithLocation(path, 0, 0)
	}
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, kerrors.NewValidationError(kerrors.ErrCodeValidationFailed, "cannot parse default document").
			WithLocation(path, 0, 0).
			WithContext("cause", err.Error())
	}
	return &Shell{path: path, mountID: mountID, src: src, doc: doc}, nil
}

// Bootstrap loads the document and checks that it has the mount element.
// The error is ERR_MOUNT_NOT_FOUND when the element is missing; callers must
// stop rather than start an application with nowhere to render.
func Bootstrap(path, mountID string) (*Shell, error) {
	shell, err := LoadShell(path, mountID)
	if err != nil {
		return nil, err
	}
	if _, err := shell.MountPoint(); err != nil {
		return nil, err
	}
	return shell, nil
}

// Path returns the document path.
func (s *Shell) Path() string { return s.path }

// MountPoint returns the element whose id is the mount id.
func (s *Shell) MountPoint() (*html.Node, error) {
	if n := findElement(s.doc, func(n *html.Node) bool {
		id, ok := attr(n, "id")
		return ok && id == s.mountID
	}); n != nil {
		return n, nil
	}
	return nil, kerrors.ErrMountNotFound(s.path, s.mountID)
}

// EnsureThemeInit inserts the theme bootstrap script at the top of <head>.
// The rest of the document keeps its original bytes. It reports whether the
// document changed; a second call is a no-op.
func (s *Shell) EnsureThemeInit() bool {
	if findElement(s.doc, func(n *html.Node) bool {
		_, ok := attr(n, ThemeAttr)
		return ok && n.DataAtom == atom.Script
	}) != nil {
		return false
	}

	at := themeInsertOffset(s.src)
	script := "<script " + ThemeAttr + ">" + themeScript + "</script>"

	src := make([]byte, 0, len(s.src)+len(script))
	src = append(src, s.src[:at]...)
	src = append(src, script...)
	src = append(src, s.src[at:]...)

	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return false
	}
	s.src, s.doc = src, doc
	return true
}

// themeInsertOffset returns the byte offset just past the <head> start tag.
// Without an explicit head it is the offset of the first tag that belongs
// to the implied head or body.
func themeInsertOffset(src []byte) int {
	z := html.NewTokenizer(bytes.NewReader(src))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return offset
		}
		start := offset
		offset += len(z.Raw())

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, _ := z.TagName()
		switch atom.Lookup(name) {
		case atom.Html:
			// The head follows.
		case atom.Head:
			return offset
		default:
			return start
		}
	}
}

// Render writes the document to w.
func (s *Shell) Render(w io.Writer) error {
	_, err := w.Write(s.src)
	return err
}

// Bytes returns the document.
func (s *Shell) Bytes() ([]byte, error) {
	return append([]byte(nil), s.src...), nil
}

func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}
