// Package config loads the run configuration: the agent config file, the
// global .env file, and the overrides given on the command line.
package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/spachava753/coderun/internal/models"
)

// Environment variables read by the loader.
const (
	EnvConfigPath  = "CODERUN_CONFIG_PATH"
	EnvModelName   = "MODEL_NAME"
	EnvModelAPIKey = "MODEL_API_KEY"
)

// DefaultConfigName is the builtin config used when none is given.
const DefaultConfigName = "default.yaml"

// BuiltinPrefix marks config sources read from the embedded config dir.
const BuiltinPrefix = "builtin:"

// ErrNoModelName is returned when no model name is set on the command line,
// in the environment or in the config file.
var ErrNoModelName = errors.New("no model name set: pass --model, set MODEL_NAME, or set model.model_name in the config file")

//go:embed builtin
var builtinFS embed.FS

// DefaultRunConfig returns a RunConfig with default values.
func DefaultRunConfig() models.RunConfig {
	return models.RunConfig{
		LogLevel: "info",
		Agent: models.AgentConfig{
			CostLimit:   3.0,
			Mode:        models.ModeConfirm,
			ConfirmExit: true,
		},
		Model: models.ModelConfig{
			CostTracking: models.CostTrackingDefault,
		},
		Environment: models.EnvironmentConfig{
			EnvironmentClass: "local",
			TimeoutSec:       30,
		},
	}
}

// ConfigSpec returns the config to load when spec is empty: $CODERUN_CONFIG_PATH
// if set, else the builtin default.
func ConfigSpec(spec string) string {
	if spec != "" {
		return spec
	}
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	return DefaultConfigName
}

// ReadConfigFile finds and reads the config named by spec. A path that exists
// on disk wins; otherwise spec is looked up in the builtin config dir, with
// and without a .yaml extension. The returned source is the path read, or
// BuiltinPrefix plus the builtin name.
func ReadConfigFile(spec string) (data []byte, source string, err error) {
	if _, statErr := os.Stat(spec); statErr == nil {
		data, err = os.ReadFile(spec)
		if err != nil {
			return nil, "", fmt.Errorf("reading config: %w", err)
		}
		return data, spec, nil
	}

	name := filepath.ToSlash(strings.TrimPrefix(spec, BuiltinPrefix))
	for _, candidate := range []string{name, name + ".yaml"} {
		data, err = fs.ReadFile(builtinFS, path.Join("builtin", candidate))
		if err == nil {
			return data, BuiltinPrefix + candidate, nil
		}
	}
	return nil, "", fmt.Errorf("config %q not found on disk or in builtin configs", spec)
}

// ParseRunConfig decodes a config file over DefaultRunConfig. Files ending in
// .toml are TOML; everything else is YAML.
func ParseRunConfig(data []byte, source string) (models.RunConfig, error) {
	cfg := DefaultRunConfig()

	if strings.EqualFold(filepath.Ext(source), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parsing run config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing run config: %w", err)
		}
	}

	// Apply defaults for values the file set to empty
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Agent.Mode == "" {
		cfg.Agent.Mode = models.ModeConfirm
	}
	if cfg.Model.CostTracking == "" {
		cfg.Model.CostTracking = models.CostTrackingDefault
	}
	if cfg.Environment.EnvironmentClass == "" {
		cfg.Environment.EnvironmentClass = "local"
	}

	return cfg, nil
}

// LoadRunConfig resolves, reads and parses the config named by spec.
func LoadRunConfig(spec string) (models.RunConfig, string, error) {
	data, source, err := ReadConfigFile(ConfigSpec(spec))
	if err != nil {
		return models.RunConfig{}, "", err
	}
	cfg, err := ParseRunConfig(data, source)
	if err != nil {
		return cfg, source, err
	}
	slog.Debug("loaded run config", "source", source)
	return cfg, source, nil
}

// Overrides are the settings given on the command line. Zero values leave the
// config untouched.
type Overrides struct {
	ModelName        string
	Yolo             bool
	CostLimit        *float64
	ExitImmediately  bool
	EnvironmentClass string
	LogLevel         string
}

// Resolve applies overrides and environment variables to cfg and validates
// the result. The model name is taken from the command line, then
// $MODEL_NAME, then the config file.
func Resolve(cfg models.RunConfig, o Overrides) (models.RunConfig, error) {
	if o.Yolo {
		cfg.Agent.Mode = models.ModeYolo
	}
	if o.CostLimit != nil {
		cfg.Agent.CostLimit = *o.CostLimit
	}
	if o.ExitImmediately {
		cfg.Agent.ConfirmExit = false
	}
	if o.EnvironmentClass != "" {
		cfg.Environment.EnvironmentClass = o.EnvironmentClass
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}

	switch {
	case o.ModelName != "":
		cfg.Model.ModelName = o.ModelName
	case os.Getenv(EnvModelName) != "":
		cfg.Model.ModelName = os.Getenv(EnvModelName)
	}
	if key := os.Getenv(EnvModelAPIKey); key != "" {
		cfg.Model.APIKey = key
	}

	return cfg, Validate(cfg)
}

// Validate reports settings a run cannot start with.
func Validate(cfg models.RunConfig) error {
	if cfg.Model.ModelName == "" {
		return ErrNoModelName
	}
	switch cfg.Agent.Mode {
	case "", models.ModeConfirm, models.ModeYolo, models.ModeHuman:
	default:
		return fmt.Errorf("unknown agent mode %q", cfg.Agent.Mode)
	}
	switch cfg.Model.CostTracking {
	case "", models.CostTrackingDefault, models.CostTrackingIgnoreErrors:
	default:
		return fmt.Errorf("unknown cost_tracking %q", cfg.Model.CostTracking)
	}
	if cfg.Agent.CostLimit < 0 || cfg.Agent.StepLimit < 0 {
		return fmt.Errorf("agent limits must not be negative")
	}
	return nil
}

// ParseLogLevel converts a config log level to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}
