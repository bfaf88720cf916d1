// Package config provides configuration management for kiln using Viper
// for flexible loading from files, environment variables and command-line
// flags.
//
// Configuration is read from .kiln.yml (or the file named by --config or
// KILN_CONFIG_FILE) and every key can be overridden with a KILN_ prefixed
// environment variable, e.g. KILN_SERVER_PORT=8080. The defaults reproduce
// a conventional single-page app layout: src/main.tsx bundled into dist/,
// served together with index.html on localhost:3000.
package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	kerrors "github.com/conneroisu/kiln/internal/errors"
)

type Config struct {
	Project ProjectConfig `yaml:"project" mapstructure:"project"`
	Build   BuildConfig   `yaml:"build" mapstructure:"build"`
	CSS     CSSConfig     `yaml:"css" mapstructure:"css"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Dev     DevConfig     `yaml:"dev" mapstructure:"dev"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

type ProjectConfig struct {
	Root        string   `yaml:"root" mapstructure:"root"`
	EntryPoints []string `yaml:"entry_points" mapstructure:"entry_points"`
	OutDir      string   `yaml:"out_dir" mapstructure:"out_dir"`
	Index       string   `yaml:"index" mapstructure:"index"`
	MountID     string   `yaml:"mount_id" mapstructure:"mount_id"`
}

type BuildConfig struct {
	Format    string            `yaml:"format" mapstructure:"format"`
	Sourcemap bool              `yaml:"sourcemap" mapstructure:"sourcemap"`
	Minify    bool              `yaml:"minify" mapstructure:"minify"`
	Target    string            `yaml:"target,omitempty" mapstructure:"target"`
	Loaders   map[string]string `yaml:"loaders" mapstructure:"loaders"`
	Define    []string          `yaml:"define,omitempty" mapstructure:"define"`
	Metafile  bool              `yaml:"metafile" mapstructure:"metafile"`
}

type CSSConfig struct {
	Processor string   `yaml:"processor" mapstructure:"processor"`
	Command   string   `yaml:"command" mapstructure:"command"`
	Args      []string `yaml:"args,omitempty" mapstructure:"args"`
	Filter    string   `yaml:"filter" mapstructure:"filter"`
}

type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port"`
	ReloadPath     string   `yaml:"reload_path" mapstructure:"reload_path"`
	WebSocketPath  string   `yaml:"websocket_path" mapstructure:"websocket_path"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" mapstructure:"allowed_origins"`
}

type DevConfig struct {
	WatchStatic   []string      `yaml:"watch_static" mapstructure:"watch_static"`
	Debounce      time.Duration `yaml:"debounce" mapstructure:"debounce"`
	ReloadPayload string        `yaml:"reload_payload" mapstructure:"reload_payload"`
}

// MarshalYAML writes the debounce as a duration string such as "100ms".
func (d DevConfig) MarshalYAML() (interface{}, error) {
	return struct {
		WatchStatic   []string `yaml:"watch_static"`
		Debounce      string   `yaml:"debounce"`
		ReloadPayload string   `yaml:"reload_payload"`
	}{d.WatchStatic, d.Debounce.String(), d.ReloadPayload}, nil
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CSS processor modes.
const (
	ProcessorAuto    = "auto"
	ProcessorCommand = "command"
	ProcessorNone    = "none"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "KILN"

var replacer = strings.NewReplacer(".", "_")

// BindEnv enables KILN_<SECTION>_<KEY> environment overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()
}

// Loaders accepted in build.loaders. The names match esbuild's loader names.
var knownLoaders = map[string]bool{
	"js": true, "jsx": true, "ts": true, "tsx": true, "css": true,
	"json": true, "text": true, "base64": true, "dataurl": true,
	"file": true, "binary": true, "copy": true, "empty": true,
}

// DefaultLoaders returns a fresh copy of the default extension loaders.
// Keys are extensions without the leading dot because viper treats dots as
// key separators.
func DefaultLoaders() map[string]string {
	return map[string]string{
		"tsx": "tsx",
		"ts":  "tsx",
		"jsx": "jsx",
		"js":  "jsx",
		"svg": "dataurl",
	}
}

// SetDefaults registers kiln's defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project.root", ".")
	v.SetDefault("project.entry_points", []string{"src/main.tsx"})
	v.SetDefault("project.out_dir", "dist")
	v.SetDefault("project.index", "index.html")
	v.SetDefault("project.mount_id", "root")

	v.SetDefault("build.format", "esm")
	v.SetDefault("build.sourcemap", true)
	v.SetDefault("build.minify", true)
	v.SetDefault("build.metafile", false)

	v.SetDefault("css.processor", ProcessorAuto)
	v.SetDefault("css.command", "tailwindcss")
	v.SetDefault("css.filter", `\.css$`)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.reload_path", "/esbuild")
	v.SetDefault("server.websocket_path", "/ws")

	v.SetDefault("dev.watch_static", []string{"index.html", "public"})
	v.SetDefault("dev.debounce", "100ms")
	v.SetDefault("dev.reload_payload", "update")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Default returns the configuration used when no file or overrides exist.
func Default() *Config {
	cfg, err := LoadFrom(viper.New())
	if err != nil {
		// The built-in defaults always validate.
		panic(err)
	}
	return cfg
}

// LoadFrom reads, defaults and validates a configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, kerrors.ErrConfigInvalid("failed to decode configuration").
			WithContext("cause", err.Error())
	}

	// Viper lower-cases map keys and cannot express "unset" for maps, so
	// loaders fall back to the defaults only when nothing was configured.
	if len(config.Build.Loaders) == 0 {
		config.Build.Loaders = DefaultLoaders()
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Addr returns the listen address of the development server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IndexPath returns the default document path inside the project root.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Project.Root, c.Project.Index)
}

func validateConfig(config *Config) error {
	if err := validateProjectConfig(&config.Project); err != nil {
		return err
	}
	if err := validateBuildConfig(&config.Build); err != nil {
		return err
	}
	if err := validateCSSConfig(&config.CSS); err != nil {
		return err
	}
	if err := validateServerConfig(&config.Server); err != nil {
		return err
	}
	if config.Dev.Debounce < 0 {
		return kerrors.ErrConfigInvalid("dev.debounce must not be negative")
	}
	return nil
}

func validateProjectConfig(config *ProjectConfig) error {
	if len(config.EntryPoints) == 0 {
		return kerrors.ErrConfigInvalid("project.entry_points must not be empty")
	}
	for _, entry := range config.EntryPoints {
		if strings.TrimSpace(entry) == "" {
			return kerrors.ErrConfigInvalid("project.entry_points contains an empty path")
		}
	}
	if err := validateRelativeDir("project.out_dir", config.OutDir); err != nil {
		return err
	}
	if config.Index == "" {
		return kerrors.ErrConfigInvalid("project.index must not be empty")
	}
	if config.MountID == "" {
		return kerrors.ErrConfigInvalid("project.mount_id must not be empty")
	}
	return nil
}

// validateRelativeDir rejects absolute paths and traversal outside the
// project root.
func validateRelativeDir(field, dir string) error {
	if dir == "" {
		return kerrors.ErrConfigInvalid(field + " must not be empty")
	}
	clean := filepath.Clean(dir)
	if filepath.IsAbs(clean) {
		return kerrors.ErrConfigInvalid(fmt.Sprintf("%s should be a relative path: %s", field, dir))
	}
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return kerrors.ErrConfigInvalid(fmt.Sprintf("%s must stay inside the project: %s", field, dir))
	}
	return nil
}

func validateBuildConfig(config *BuildConfig) error {
	for _, def := range config.Define {
		if _, _, ok := strings.Cut(def, "="); !ok {
			return kerrors.ErrConfigInvalid(fmt.Sprintf("build.define entry %q must look like NAME=value", def))
		}
	}
	switch config.Format {
	case "esm", "iife", "cjs":
	default:
		return kerrors.ErrConfigInvalid("build.format must be one of esm, iife, cjs: " + config.Format)
	}
	for ext, loader := range config.Loaders {
		if ext == "" || strings.ContainsAny(ext, "./\\") {
			return kerrors.ErrConfigInvalid(fmt.Sprintf("build.loaders key %q must be a bare extension like \"tsx\"", ext))
		}
		if !knownLoaders[loader] {
			return kerrors.ErrConfigInvalid(fmt.Sprintf("build.loaders has unknown loader %q for %s", loader, ext))
		}
	}
	return nil
}

func validateCSSConfig(config *CSSConfig) error {
	switch config.Processor {
	case ProcessorAuto, ProcessorCommand, ProcessorNone:
	default:
		return kerrors.ErrConfigInvalid("css.processor must be one of auto, command, none: " + config.Processor)
	}
	if config.Processor == ProcessorCommand && config.Command == "" {
		return kerrors.ErrConfigInvalid("css.command is required when css.processor is command")
	}
	if _, err := regexp.Compile(config.Filter); err != nil {
		return kerrors.ErrConfigInvalid("css.filter is not a valid regular expression: " + err.Error())
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// Port 0 lets the OS pick, which tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		return kerrors.ErrConfigInvalid(fmt.Sprintf("port %d is not in valid range 0-65535", config.Port))
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return kerrors.ErrConfigInvalid("host contains dangerous character: " + char)
			}
		}
	}

	for field, path := range map[string]string{
		"server.reload_path":    config.ReloadPath,
		"server.websocket_path": config.WebSocketPath,
	} {
		if !strings.HasPrefix(path, "/") || path == "/" {
			return kerrors.ErrConfigInvalid(fmt.Sprintf("%s must be an absolute, non-root path: %q", field, path))
		}
	}
	if config.ReloadPath == config.WebSocketPath {
		return kerrors.ErrConfigInvalid("server.reload_path and server.websocket_path must differ")
	}
	return nil
}
