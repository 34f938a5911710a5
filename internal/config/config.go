// Package config loads restsql.yaml: backends with their table schemas,
// engine options, the HTTP server address and the history database.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	maxWalkDepth = 25
	envPrefix    = "RESTSQL"
)

// FileNames are the config file names searched for, in order.
var FileNames = []string{"restsql.yaml", "restsql.yml"}

// Config represents restsql.yaml.
type Config struct {
	Backends []BackendConfig `mapstructure:"backends"`
	Engine   EngineConfig    `mapstructure:"engine"`
	Server   ServerConfig    `mapstructure:"server"`
	History  HistoryConfig   `mapstructure:"history"`
}

// BackendConfig describes one backend.
type BackendConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Kind string `mapstructure:"kind" yaml:"kind"` // sql, es, impala

	// Relational backends.
	Driver   string `mapstructure:"driver" yaml:"driver"` // sqlite3, postgres, pgx, or any registered database/sql driver
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns"`

	// Search backends.
	URL      string `mapstructure:"url" yaml:"url"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	Namespace   string `mapstructure:"namespace" yaml:"namespace"`
	Placeholder string `mapstructure:"placeholder" yaml:"placeholder"`

	// Tables maps table name to column name to declared type.
	Tables map[string]map[string]string `mapstructure:"tables" yaml:"tables"`
}

// EngineConfig holds federation settings.
type EngineConfig struct {
	Parallel bool `mapstructure:"parallel"`
	PushDown bool `mapstructure:"push_down"`
	MaxJoins int  `mapstructure:"max_joins"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// HistoryConfig holds query history settings. An empty path disables
// history.
type HistoryConfig struct {
	Path  string `mapstructure:"path"`
	Limit int    `mapstructure:"limit"`
}

// Load discovers and loads configuration with precedence
// env > config file > defaults. A .env file next to the config file (or in
// the working directory) is loaded into the environment first, and
// ${VAR} references in DSNs, URLs and passwords are expanded.
//
// Returns the config and the path of the file read (empty if none).
func Load(explicitPath string) (*Config, string, error) {
	path, err := findConfigFile(explicitPath)
	if err != nil {
		return nil, "", err
	}

	envDir := "."
	if path != "" {
		envDir = filepath.Dir(path)
	}
	if err := godotenv.Load(filepath.Join(envDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, path, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, path, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, path, fmt.Errorf("unmarshaling config: %w", err)
	}
	if path != "" {
		// viper folds keys to lower case; table and column names must keep theirs
		if cfg.Backends, err = readBackends(path); err != nil {
			return nil, path, err
		}
	}
	for i := range cfg.Backends {
		b := &cfg.Backends[i]
		b.DSN = os.ExpandEnv(b.DSN)
		b.URL = os.ExpandEnv(b.URL)
		b.Password = os.ExpandEnv(b.Password)
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

func readBackends(path string) ([]BackendConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var doc struct {
		Backends []BackendConfig `yaml:"backends"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing backends: %w", err)
	}
	return doc.Backends, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.parallel", false)
	v.SetDefault("engine.push_down", true)
	v.SetDefault("engine.max_joins", 16)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("history.path", "")
	v.SetDefault("history.limit", 20)
}

// Validate checks backend entries for the fields their kind needs.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends[%d]: name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("backends[%d]: duplicate name %q", i, b.Name)
		}
		seen[b.Name] = true
		switch b.Kind {
		case "sql", "impala":
			if b.Driver == "" {
				return fmt.Errorf("backend %q: driver is required for %s backends", b.Name, b.Kind)
			}
		case "es":
			if b.URL == "" {
				return fmt.Errorf("backend %q: url is required for es backends", b.Name)
			}
		default:
			return fmt.Errorf("backend %q: unknown kind %q", b.Name, b.Kind)
		}
	}
	return nil
}

// findConfigFile validates an explicit path, or walks up from the working
// directory looking for restsql.yaml, stopping at a .git directory.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}
