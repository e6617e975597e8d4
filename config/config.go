// Package config loads codelens configuration via Viper.
//
// Sources, in precedence order: explicit file (--config / CODELENS_CONFIG),
// codelens.toml in the workspace root, environment variables with the
// CODELENS_ prefix, built-in defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/codelens/errors"
)

// Config is the root configuration for codelens.
type Config struct {
	Workspace Workspace           `mapstructure:"workspace"`
	Analyzer  Analyzer            `mapstructure:"analyzer"`
	Traversal Traversal           `mapstructure:"traversal"`
	Watcher   Watcher             `mapstructure:"watcher"`
	Log       Log                 `mapstructure:"log"`
	Languages map[string]Language `mapstructure:"languages"`
}

// Workspace configures the directory all queries are scoped to.
type Workspace struct {
	Root string `mapstructure:"root"`
}

// Analyzer configures the language-analysis subprocess.
type Analyzer struct {
	RequestTimeoutMS  int `mapstructure:"request_timeout_ms"`
	ShutdownTimeoutMS int `mapstructure:"shutdown_timeout_ms"`
}

// Traversal configures impact/deps call-graph expansion.
type Traversal struct {
	MaxDepth      int `mapstructure:"max_depth"`
	FanOutWarning int `mapstructure:"fan_out_warning"`
}

// Watcher configures workspace filesystem watching.
type Watcher struct {
	Enabled bool `mapstructure:"enabled"`
}

// Log configures logging output.
type Log struct {
	JSON      bool `mapstructure:"json"`
	Verbosity int  `mapstructure:"verbosity"`
}

// Language overrides the built-in analyzer record for one language.
type Language struct {
	Binary string   `mapstructure:"binary"`
	Args   []string `mapstructure:"args"`
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workspace.root", ".")

	v.SetDefault("analyzer.request_timeout_ms", 30000)
	v.SetDefault("analyzer.shutdown_timeout_ms", 3000)

	v.SetDefault("traversal.max_depth", 5)
	v.SetDefault("traversal.fan_out_warning", 10)

	v.SetDefault("watcher.enabled", true)

	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 0)
}

func initViper(workspaceRoot string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("CODELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CODELENS_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("codelens")
		v.SetConfigType("toml")
		if workspaceRoot != "" {
			v.AddConfigPath(workspaceRoot)
		}
		v.AddConfigPath(".")
	}

	return v
}

// Load reads configuration for the given workspace root. A missing config
// file is not an error; defaults and environment apply.
func Load(workspaceRoot string) (*Config, error) {
	v := initViper(workspaceRoot)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if cfg.Workspace.Root == "" || cfg.Workspace.Root == "." {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve working directory")
		}
		cfg.Workspace.Root = cwd
	}
	abs, err := filepath.Abs(cfg.Workspace.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve workspace root %s", cfg.Workspace.Root)
	}
	cfg.Workspace.Root = abs

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config file %s", configPath)
	}
	return &cfg, nil
}
