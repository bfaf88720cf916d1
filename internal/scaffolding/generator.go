// Package scaffolding writes new kiln projects from built-in templates.
package scaffolding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/kiln/internal/config"
	"github.com/conneroisu/kiln/internal/logging"
)

// ConfigFileName is the project configuration written next to index.html.
const ConfigFileName = ".kiln.yml"

// ProjectGenerator handles project scaffolding
type ProjectGenerator struct {
	templates map[string]ProjectTemplate
	logger    logging.Logger
}

// GenerateOptions holds options for project generation
type GenerateOptions struct {
	Dir      string
	Name     string
	Template string
	// Force overwrites existing files.
	Force bool
	// Config seeds .kiln.yml and the template values. Defaults apply when nil.
	Config *config.Config
}

// TemplateInfo holds basic template information
type TemplateInfo struct {
	Name        string
	Description string
	Files       int
}

// ErrFileExists is returned when generation would overwrite a file.
var ErrFileExists = errors.New("file already exists")

// NewProjectGenerator creates a generator with the built-in templates.
func NewProjectGenerator(logger logging.Logger) *ProjectGenerator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ProjectGenerator{
		templates: GetBuiltinTemplates(),
		logger:    logger.WithComponent("scaffolding"),
	}
}

// Generate writes the project and returns the created paths relative to
// opts.Dir. Existing files are left alone unless Force is set; nothing is
// written when any target exists.
func (g *ProjectGenerator) Generate(opts GenerateOptions) ([]string, error) {
	if opts.Template == "" {
		opts.Template = DefaultTemplate
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Name == "" {
		abs, err := filepath.Abs(opts.Dir)
		if err != nil {
			return nil, err
		}
		opts.Name = filepath.Base(abs)
	}
	if err := ValidateProjectName(opts.Name); err != nil {
		return nil, err
	}

	tmpl, exists := g.GetTemplate(opts.Template)
	if !exists {
		return nil, fmt.Errorf("template '%s' not found", opts.Template)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	ctx := TemplateContext{
		ProjectName: strings.ToLower(opts.Name),
		Title:       Title(opts.Name),
		MountID:     cfg.Project.MountID,
		OutDir:      filepath.ToSlash(cfg.Project.OutDir),
		ReloadPath:  cfg.Server.ReloadPath,
		EntryName:   entryName(cfg.Project.EntryPoints),
	}

	files := make(map[string][]byte, len(tmpl.Files)+1)
	for _, f := range tmpl.Files {
		path, err := render(f.Path, f.Path, ctx)
		if err != nil {
			return nil, err
		}
		content, err := render(f.Path, f.Content, ctx)
		if err != nil {
			return nil, err
		}
		files[string(path)] = content
	}

	cfgYAML, err := MarshalConfig(cfg)
	if err != nil {
		return nil, err
	}
	files[ConfigFileName] = cfgYAML

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if !opts.Force {
		for _, p := range paths {
			if _, err := os.Stat(filepath.Join(opts.Dir, p)); err == nil {
				return nil, fmt.Errorf("%w: %s (use --force to overwrite)", ErrFileExists, p)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	for _, p := range paths {
		full := filepath.Join(opts.Dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		if err := os.WriteFile(full, files[p], 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", p, err)
		}
		g.logger.Debug(context.Background(), "Generated file", "path", p)
	}

	g.logger.Info(context.Background(), "Project scaffold created",
		"dir", opts.Dir, "template", opts.Template, "files", len(paths))
	return paths, nil
}

// ListTemplates returns available templates sorted by name.
func (g *ProjectGenerator) ListTemplates() []TemplateInfo {
	templates := make([]TemplateInfo, 0, len(g.templates))
	for name, tmpl := range g.templates {
		templates = append(templates, TemplateInfo{
			Name:        name,
			Description: tmpl.Description,
			Files:       len(tmpl.Files),
		})
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates
}

// GetTemplate returns a specific template
func (g *ProjectGenerator) GetTemplate(name string) (ProjectTemplate, bool) {
	tmpl, exists := g.templates[name]
	return tmpl, exists
}

// MarshalConfig renders cfg as the YAML written to .kiln.yml.
func MarshalConfig(cfg *config.Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# kiln project configuration. Every key can be overridden with a\n")
	buf.WriteString("# KILN_ environment variable, e.g. KILN_SERVER_PORT=8080.\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var projectNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ValidateProjectName checks that name can be used as an npm package name.
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if len(name) > 214 {
		return fmt.Errorf("project name is too long")
	}
	if !projectNamePattern.MatchString(name) {
		return fmt.Errorf("project name %q may only contain letters, digits, '.', '_' and '-'", name)
	}
	return nil
}

// Title turns a project name such as "my-app" into "My App".
func Title(name string) string {
	words := strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(name)
	return cases.Title(language.English).String(strings.Join(strings.Fields(words), " "))
}

func entryName(entryPoints []string) string {
	if len(entryPoints) == 0 {
		return "main"
	}
	base := filepath.Base(entryPoints[0])
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func render(name, content string, ctx TemplateContext) ([]byte, error) {
	tmpl, err := template.New(name).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
