// Package config resolves reactor.yaml, REACTOR_* environment variables
// and command-line flags into one configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/reactor/pkg/logging"
)

// FileName is the optional per-project configuration file.
const FileName = "reactor.yaml"

// EnvPrefix prefixes environment overrides, e.g. REACTOR_LOG_LEVEL.
const EnvPrefix = "REACTOR"

// Config represents reactor.yaml.
type Config struct {
	App    AppConfig    `yaml:"app"`
	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
	Debug  DebugConfig  `yaml:"debug"`
	Store  StoreConfig  `yaml:"store"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name     string   `yaml:"name,omitempty"`
	Counters []string `yaml:"counters,omitempty"`
}

// EngineConfig contains engine settings.
type EngineConfig struct {
	MaxPassesPerTick int     `yaml:"max_passes_per_tick,omitempty"`
	Workers          int     `yaml:"workers,omitempty"`
	SlowPassMs       float64 `yaml:"slow_pass_ms,omitempty"`
	RuntimeSampleMs  int     `yaml:"runtime_sample_ms,omitempty"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// DebugConfig configures the debug HTTP server. Port 0 disables it.
type DebugConfig struct {
	Port int `yaml:"port,omitempty"`
}

// StoreConfig configures counter persistence. An empty path disables it.
type StoreConfig struct {
	Path       string `yaml:"path,omitempty"`
	AutosaveMs int    `yaml:"autosave_ms,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root       string
	File       string
	ModulePath string
	AppName    string
	Config
}

// SlowPass returns the slow pass threshold.
func (c EngineConfig) SlowPass() time.Duration {
	return time.Duration(c.SlowPassMs * float64(time.Millisecond))
}

// RuntimeSampleInterval returns the runtime sampling interval.
func (c EngineConfig) RuntimeSampleInterval() time.Duration {
	return time.Duration(c.RuntimeSampleMs) * time.Millisecond
}

// AutosaveInterval returns the autosave period.
func (c StoreConfig) AutosaveInterval() time.Duration {
	return time.Duration(c.AutosaveMs) * time.Millisecond
}

// Default returns the configuration used when reactor.yaml sets nothing.
func Default() Config {
	return Config{
		App: AppConfig{Counters: []string{"apples", "pears", "plums"}},
		Log: LogConfig{Level: logging.LevelInfo, Format: logging.FormatText},
		Store: StoreConfig{
			AutosaveMs: 2000,
		},
	}
}

// LoadOptional reads reactor.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile reads a config file. A missing file yields an empty Config.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}

// Resolve loads reactor.yaml (if present), applies v's flag and
// environment overrides and fills defaults. v may be nil.
func Resolve(dir string, v *viper.Viper) (*Resolved, error) {
	return ResolveFile(dir, filepath.Join(dir, FileName), v)
}

// ResolveFile is Resolve with an explicit config file path.
func ResolveFile(dir, path string, v *viper.Viper) (*Resolved, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if v != nil {
		Overlay(v, cfg)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	modulePath, err := modulePath(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	appName := strings.TrimSpace(cfg.App.Name)
	if appName == "" {
		appName = defaultAppName(modulePath, dir)
	}

	return &Resolved{
		Root:       dir,
		File:       path,
		ModulePath: modulePath,
		AppName:    appName,
		Config:     *cfg,
	}, nil
}

// NewViper returns a viper instance reading REACTOR_* environment
// variables. Nested keys use underscores, e.g. REACTOR_DEBUG_PORT for
// debug.port.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Overlay copies every key set in v (by flag or environment) over cfg.
func Overlay(v *viper.Viper, cfg *Config) {
	if v.IsSet("app.name") {
		cfg.App.Name = v.GetString("app.name")
	}
	if v.IsSet("app.counters") {
		cfg.App.Counters = v.GetStringSlice("app.counters")
	}
	if v.IsSet("engine.max_passes_per_tick") {
		cfg.Engine.MaxPassesPerTick = v.GetInt("engine.max_passes_per_tick")
	}
	if v.IsSet("engine.workers") {
		cfg.Engine.Workers = v.GetInt("engine.workers")
	}
	if v.IsSet("engine.slow_pass_ms") {
		cfg.Engine.SlowPassMs = v.GetFloat64("engine.slow_pass_ms")
	}
	if v.IsSet("engine.runtime_sample_ms") {
		cfg.Engine.RuntimeSampleMs = v.GetInt("engine.runtime_sample_ms")
	}
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.format") {
		cfg.Log.Format = v.GetString("log.format")
	}
	if v.IsSet("debug.port") {
		cfg.Debug.Port = v.GetInt("debug.port")
	}
	if v.IsSet("store.path") {
		cfg.Store.Path = v.GetString("store.path")
	}
	if v.IsSet("store.autosave_ms") {
		cfg.Store.AutosaveMs = v.GetInt("store.autosave_ms")
	}
}

// Validate reports the first invalid setting.
func Validate(cfg *Config) error {
	switch {
	case cfg.Engine.MaxPassesPerTick < 0:
		return fmt.Errorf("engine.max_passes_per_tick must not be negative (got %d)", cfg.Engine.MaxPassesPerTick)
	case cfg.Engine.Workers < 0:
		return fmt.Errorf("engine.workers must not be negative (got %d)", cfg.Engine.Workers)
	case cfg.Engine.SlowPassMs < 0:
		return fmt.Errorf("engine.slow_pass_ms must not be negative (got %v)", cfg.Engine.SlowPassMs)
	case cfg.Debug.Port < 0 || cfg.Debug.Port > 65535:
		return fmt.Errorf("debug.port out of range (got %d)", cfg.Debug.Port)
	case cfg.Store.AutosaveMs < 0:
		return fmt.Errorf("store.autosave_ms must not be negative (got %d)", cfg.Store.AutosaveMs)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("log.format must be %q or %q (got %q)", logging.FormatText, logging.FormatJSON, cfg.Log.Format)
	}
	for _, label := range cfg.App.Counters {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("app.counters contains an empty label")
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if len(cfg.App.Counters) == 0 {
		cfg.App.Counters = def.App.Counters
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	if cfg.Store.AutosaveMs == 0 {
		cfg.Store.AutosaveMs = def.Store.AutosaveMs
	}
}

// FindProjectRoot walks up from the current directory to find go.mod.
// Outside a module it returns the current directory.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for dir := cwd; ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", err
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("could not determine module path from go.mod")
	}
	return path, nil
}

func defaultAppName(modulePath, dir string) string {
	base := filepath.Base(dir)
	if modulePath != "" {
		if modName, _, ok := module.SplitPathVersion(modulePath); ok {
			parts := strings.Split(modName, "/")
			base = parts[len(parts)-1]
		}
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "reactor_app"
	}
	return base
}
