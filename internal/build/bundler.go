// Package build drives esbuild for kiln projects. Options is the single
// configuration record shared by the production build and the development
// watcher; each mode derives its esbuild options from it without changing it.
package build

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/kiln/internal/config"
	"github.com/conneroisu/kiln/internal/css"
	kerrors "github.com/conneroisu/kiln/internal/errors"
)

// Options holds the bundler settings shared by every build mode.
type Options struct {
	// WorkingDir is the absolute project root. Entry points and OutDir are
	// resolved against it.
	WorkingDir  string
	EntryPoints []string
	OutDir      string
	Format      api.Format
	Target      api.Target
	Sourcemap   bool
	Minify      bool
	// Metafile requests the esbuild bundle analysis in the build report.
	Metafile bool
	// Loaders is keyed by extension including the leading dot.
	Loaders map[string]api.Loader
	Define  map[string]string
	// CSS transforms stylesheets ahead of esbuild's CSS loader. Nil leaves
	// stylesheets to esbuild alone.
	CSS       *css.Pipeline
	CSSFilter string
	Plugins   []api.Plugin

	// IndexPath and MountID locate the HTML shell checked before building.
	IndexPath string
	MountID   string
}

var loaderNames = map[string]api.Loader{
	"js":      api.LoaderJS,
	"jsx":     api.LoaderJSX,
	"ts":      api.LoaderTS,
	"tsx":     api.LoaderTSX,
	"css":     api.LoaderCSS,
	"json":    api.LoaderJSON,
	"text":    api.LoaderText,
	"base64":  api.LoaderBase64,
	"dataurl": api.LoaderDataURL,
	"file":    api.LoaderFile,
	"binary":  api.LoaderBinary,
	"copy":    api.LoaderCopy,
	"empty":   api.LoaderEmpty,
}

var formats = map[string]api.Format{
	"esm":  api.FormatESModule,
	"iife": api.FormatIIFE,
	"cjs":  api.FormatCommonJS,
}

var targets = map[string]api.Target{
	"":       api.ESNext,
	"esnext": api.ESNext,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
}

// NewOptions builds the shared record from cfg. Extra plugins run after the
// CSS plugin and ahead of any observer plugin.
func NewOptions(cfg *config.Config, pipeline *css.Pipeline, plugins ...api.Plugin) (Options, error) {
	root, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		return Options{}, kerrors.NewIOError(kerrors.ErrCodeInvalidPath, "cannot resolve project root", err).
			WithContext("root", cfg.Project.Root)
	}

	format, ok := formats[cfg.Build.Format]
	if !ok {
		return Options{}, kerrors.ErrConfigInvalid("unsupported build.format: " + cfg.Build.Format)
	}

	target, ok := targets[strings.ToLower(cfg.Build.Target)]
	if !ok {
		return Options{}, kerrors.ErrConfigInvalid("unsupported build.target: " + cfg.Build.Target)
	}

	loaders := make(map[string]api.Loader, len(cfg.Build.Loaders))
	for ext, name := range cfg.Build.Loaders {
		loader, ok := loaderNames[name]
		if !ok {
			return Options{}, kerrors.ErrConfigInvalid(fmt.Sprintf("unknown loader %q for %s", name, ext))
		}
		loaders["."+ext] = loader
	}

	define := make(map[string]string, len(cfg.Build.Define))
	for _, entry := range cfg.Build.Define {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			return Options{}, kerrors.ErrConfigInvalid(fmt.Sprintf("build.define entry %q must look like NAME=value", entry))
		}
		define[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	return Options{
		WorkingDir:  root,
		EntryPoints: append([]string(nil), cfg.Project.EntryPoints...),
		OutDir:      cfg.Project.OutDir,
		Format:      format,
		Target:      target,
		Sourcemap:   cfg.Build.Sourcemap,
		Minify:      cfg.Build.Minify,
		Metafile:    cfg.Build.Metafile,
		Loaders:     loaders,
		Define:      define,
		CSS:         pipeline,
		CSSFilter:   cfg.CSS.Filter,
		Plugins:     append([]api.Plugin(nil), plugins...),
		IndexPath:   cfg.IndexPath(),
		MountID:     cfg.Project.MountID,
	}, nil
}

// Production returns the esbuild options for a one-shot release build:
// minified according to the configuration and written to disk.
func (o Options) Production() api.BuildOptions {
	opts := o.base(false)
	opts.MinifyWhitespace = o.Minify
	opts.MinifyIdentifiers = o.Minify
	opts.MinifySyntax = o.Minify
	return opts
}

// Development returns the esbuild options for the watch context. Output is
// never minified, stylesheets carry inline source maps, and every completed
// pass is reported to observers.
func (o Options) Development(observers ...Observer) api.BuildOptions {
	opts := o.base(true)
	opts.MinifyWhitespace = false
	opts.MinifyIdentifiers = false
	opts.MinifySyntax = false
	if len(observers) > 0 {
		opts.Plugins = append(opts.Plugins, ObserverPlugin(observers...))
	}
	return opts
}

func (o Options) base(cssSourceMap bool) api.BuildOptions {
	sourcemap := api.SourceMapNone
	if o.Sourcemap {
		sourcemap = api.SourceMapLinked
	}

	loaders := make(map[string]api.Loader, len(o.Loaders))
	for ext, l := range o.Loaders {
		loaders[ext] = l
	}
	define := make(map[string]string, len(o.Define))
	for k, v := range o.Define {
		define[k] = v
	}

	plugins := make([]api.Plugin, 0, len(o.Plugins)+2)
	if o.CSS != nil {
		plugins = append(plugins, css.Plugin(o.CSS, o.CSSFilter, cssSourceMap && o.Sourcemap))
	}
	plugins = append(plugins, o.Plugins...)

	return api.BuildOptions{
		AbsWorkingDir: o.WorkingDir,
		EntryPoints:   append([]string(nil), o.EntryPoints...),
		Bundle:        true,
		Outdir:        o.OutDir,
		Format:        o.Format,
		Target:        o.Target,
		Sourcemap:     sourcemap,
		Loader:        loaders,
		Define:        define,
		Plugins:       plugins,
		// The output list in reports is read from the metafile.
		Metafile: true,
		Write:    true,
		LogLevel: api.LogLevelSilent,
	}
}
