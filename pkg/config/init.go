package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var Config = DefaultConfiguration()

// DefaultConfiguration returns the layout of a fresh project. Paths are relative to the project root.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		Paths: Paths{
			ScssFile:     "./assets/scss/style.scss",
			ScssFiles:    "./assets/scss/**/*.scss",
			ScssFolder:   "./assets/scss",
			CSSFolder:    "./assets/css",
			HTMLFiles:    "./*.html",
			JSFiles:      []string{"./assets/js/**/*.js", "!./assets/js/**/*.min.js", "!./assets/js/**/all.js"},
			JSFolder:     "./assets/js",
			JSBundleName: "all.js",
			BuildFolder:  "dest",
		},
		Prefixer: PrefixerConfiguration{
			Cascade: true,
		},
		ServeConfig: ServeConfiguration{
			Port:         3000,
			WatchDelayMS: 200,
		},
	}
}

type Configuration struct {
	Paths       Paths                 `json:"paths" yaml:"paths"`
	Prefixer    PrefixerConfiguration `json:"prefixer" yaml:"prefixer"`
	Scripts     ScriptsConfiguration  `json:"scripts" yaml:"scripts"`
	ServeConfig ServeConfiguration    `json:"serve_config" yaml:"serve_config"`
}

// Paths enumerates every glob and folder the tasks read from or write to.
type Paths struct {
	ScssFile     string   `json:"scss_file,omitempty" yaml:"scss_file,omitempty"`
	ScssFiles    string   `json:"scss_files,omitempty" yaml:"scss_files,omitempty"`
	ScssFolder   string   `json:"scss_folder,omitempty" yaml:"scss_folder,omitempty"`
	CSSFolder    string   `json:"css_folder,omitempty" yaml:"css_folder,omitempty"`
	HTMLFiles    string   `json:"html_files,omitempty" yaml:"html_files,omitempty"`
	JSFiles      []string `json:"js_files,omitempty" yaml:"js_files,omitempty"`
	JSFolder     string   `json:"js_folder,omitempty" yaml:"js_folder,omitempty"`
	JSBundleName string   `json:"js_bundle_name,omitempty" yaml:"js_bundle_name,omitempty"`
	BuildFolder  string   `json:"build_folder,omitempty" yaml:"build_folder,omitempty"`
}

type PrefixerConfiguration struct {
	Cascade bool `json:"cascade" yaml:"cascade"`
}

// ScriptsConfiguration tunes the es6 minifier. MangleTopLevel renames top-level bindings,
// which breaks scripts that share globals across files.
type ScriptsConfiguration struct {
	MangleTopLevel bool `json:"mangle_toplevel" yaml:"mangle_toplevel"`
}

type ServeConfiguration struct {
	Port         int `json:"port" yaml:"port"`
	WatchDelayMS int `json:"watch_delay_ms" yaml:"watch_delay_ms"`
}

var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks that every path the tasks depend on is set.
func (c *Configuration) Validate() error {
	required := map[string]string{
		"scss_file":      c.Paths.ScssFile,
		"scss_files":     c.Paths.ScssFiles,
		"css_folder":     c.Paths.CSSFolder,
		"html_files":     c.Paths.HTMLFiles,
		"js_folder":      c.Paths.JSFolder,
		"js_bundle_name": c.Paths.JSBundleName,
		"build_folder":   c.Paths.BuildFolder,
	}
	for _, k := range []string{"scss_file", "scss_files", "css_folder", "html_files", "js_folder", "js_bundle_name", "build_folder"} {
		if strings.TrimSpace(required[k]) == "" {
			return fmt.Errorf("%w: %s is empty", ErrInvalidConfig, k)
		}
	}
	if len(c.Paths.JSFiles) == 0 {
		return fmt.Errorf("%w: js_files is empty", ErrInvalidConfig)
	}
	if strings.ContainsAny(c.Paths.JSBundleName, `/\`) {
		return fmt.Errorf("%w: js_bundle_name %q must be a file name", ErrInvalidConfig, c.Paths.JSBundleName)
	}
	if c.ServeConfig.Port < 0 || c.ServeConfig.WatchDelayMS < 0 {
		return fmt.Errorf("%w: serve_config values must be positive", ErrInvalidConfig)
	}
	return nil
}

// Init loads the configuration of the project found in rootDir into Config.
// An empty configpath looks for toastpipe.json, then toastpipe.yaml and toastpipe.yml.
func Init(rootDir, configpath string) error {
	cfg, err := Load(rootDir, configpath)
	if err != nil {
		return err
	}
	Config = cfg
	return nil
}

// Load reads the configuration without touching the global Config.
func Load(rootDir, configpath string) (*Configuration, error) {
	if rootDir == "" {
		rootDir = "."
	}
	cfg := DefaultConfiguration()

	explicit := configpath != ""
	candidates := []string{configpath}
	if !explicit {
		candidates = []string{
			filepath.Join(rootDir, "toastpipe.json"),
			filepath.Join(rootDir, "toastpipe.yaml"),
			filepath.Join(rootDir, "toastpipe.yml"),
		}
	}

	for _, p := range candidates {
		_, err := os.Stat(p)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("could not access configuration file %s: %v", p, err)
			}
			if explicit {
				return nil, fmt.Errorf("configuration file %s not found", p)
			}
			continue
		}
		if err := decodeFile(p, cfg); err != nil {
			return nil, fmt.Errorf("could not decode configuration file %s: %w", p, err)
		}
		break
	}

	if err := applyEnv(rootDir, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(p string, cfg *Configuration) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return yaml.NewDecoder(f).Decode(cfg)
	default:
		return json.NewDecoder(f).Decode(cfg)
	}
}

// applyEnv loads rootDir/.env (without overriding the real environment) and applies overrides.
func applyEnv(rootDir string, cfg *Configuration) error {
	envFile := filepath.Join(rootDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("could not load %s: %w", envFile, err)
		}
	}

	if v := os.Getenv("TOASTPIPE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: TOASTPIPE_PORT=%q", ErrInvalidConfig, v)
		}
		cfg.ServeConfig.Port = port
	}
	if v := os.Getenv("TOASTPIPE_BUILD_FOLDER"); v != "" {
		cfg.Paths.BuildFolder = v
	}
	return nil
}
