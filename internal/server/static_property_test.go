//go:build property
// +build property

package server

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestContentTypeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("known extensions win regardless of directory", prop.ForAll(
		func(dir, name, ext string) bool {
			return ContentType("/"+dir+"/"+name+ext) == contentTypes[ext]
		},
		gen.RegexMatch(`^[a-z0-9.]{1,10}$`),
		gen.RegexMatch(`^[a-z0-9]{1,10}$`),
		gen.OneConstOf(".html", ".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg"),
	))

	properties.Property("unknown extensions are plain text", prop.ForAll(
		func(name, ext string) bool {
			if _, ok := contentTypes["."+ext]; ok {
				return true
			}
			return ContentType("/"+name+"."+ext) == DefaultContentType
		},
		gen.RegexMatch(`^[a-z0-9]{1,10}$`),
		gen.RegexMatch(`^[a-zA-Z0-9]{1,5}$`),
	))

	properties.TestingRun(t)
}

func TestResolveProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	r, err := NewResolver("/srv/app", "dist", "index.html")
	if err != nil {
		t.Fatal(err)
	}
	root := filepath.FromSlash("/srv/app")

	properties.Property("resolved paths stay below the root", prop.ForAll(
		func(segments []string) bool {
			got, err := r.Resolve("/" + strings.Join(segments, "/"))
			if err != nil {
				return true
			}
			return got == root || strings.HasPrefix(got, root+string(filepath.Separator))
		},
		gen.SliceOf(gen.OneConstOf("..", ".", "dist", "src", "a.js", "index.html", "")),
	))

	properties.Property("output paths land in the output directory", prop.ForAll(
		func(name string) bool {
			got, err := r.Resolve("/dist/" + name)
			return err == nil && got == filepath.Join(root, "dist", name)
		},
		gen.RegexMatch(`^[a-z0-9]{1,10}\.js$`),
	))

	properties.TestingRun(t)
}
