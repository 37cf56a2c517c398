// Package config holds the host-side configuration: one section per share
// service plus the settings of the HTTP host. Values come from a YAML file,
// an optional .env file and BLOBSHARE_* environment variables, in increasing
// order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dvloznov/blobshare/internal/share"
)

// EnvPrefix prefixes environment overrides, e.g. BLOBSHARE_AZURE_ACCOUNTKEY.
const EnvPrefix = "BLOBSHARE"

// FileName is the config file looked up when no path is given.
const FileName = "blobshare.yaml"

// Settings are the host settings that are not tied to a share service.
type Settings struct {
	DefaultService string        `mapstructure:"default_service"`
	Server         ServerConfig  `mapstructure:"server"`
	Redis          RedisConfig   `mapstructure:"redis"`
	History        HistoryConfig `mapstructure:"history"`
	Log            LogConfig     `mapstructure:"log"`
}

// ServerConfig configures the HTTP host.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Workers     int    `mapstructure:"workers"`
	MaxRetries  int    `mapstructure:"max_retries"`
	TempDir     string `mapstructure:"temp_dir"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb"`

	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken string `mapstructure:"api_token"`
}

// RedisConfig selects the Redis job store. An empty URL keeps jobs in memory.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// HistoryConfig selects the BigQuery upload history table.
// An empty project disables history.
type HistoryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
	Table   string `mapstructure:"table"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Store reads configuration for a fixed set of services.
type Store struct {
	v        *viper.Viper
	path     string
	services []*share.Service
}

// Load reads configuration. path may be empty, in which case FileName is
// looked up in the working directory and then in the user config directory.
// A missing file is not an error.
func Load(path string, services []*share.Service) (*Store, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, services)

	if path == "" {
		path = findConfigFile()
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Store{v: v, path: path, services: services}, nil
}

// DefaultPath returns where the config file lives when none is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(dir, "blobshare", FileName)
}

func findConfigFile() string {
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	return DefaultPath()
}

func setDefaults(v *viper.Viper, services []*share.Service) {
	v.SetDefault("default_service", "azure")

	for _, svc := range services {
		for key, value := range svc.Defaults() {
			v.SetDefault(svc.Name+"."+key, value)
		}
	}

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.workers", 5)
	v.SetDefault("server.max_retries", 0)
	v.SetDefault("server.temp_dir", os.TempDir())
	v.SetDefault("server.max_upload_mb", 512)
	v.SetDefault("server.api_token", "")

	v.SetDefault("redis.url", "")

	v.SetDefault("history.project", "")
	v.SetDefault("history.dataset", "blobshare")
	v.SetDefault("history.table", "shares")

	v.SetDefault("log.level", "info")
}

// Path returns the config file path in use.
func (s *Store) Path() string {
	return s.path
}

// Service returns the configuration section of a share service.
func (s *Store) Service(name string) share.Config {
	return serviceConfig{v: s.v, prefix: name + "."}
}

type serviceConfig struct {
	v      *viper.Viper
	prefix string
}

// Get implements share.Config.
func (c serviceConfig) Get(key string) string {
	return c.v.GetString(c.prefix + key)
}

// Settings decodes the host settings.
func (s *Store) Settings() (Settings, error) {
	var settings Settings
	if err := s.v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return settings, nil
}

// Missing lists the required keys of a service that have no value.
func (s *Store) Missing(svc *share.Service) []string {
	cfg := s.Service(svc.Name)
	var missing []string
	for _, f := range svc.Config {
		if f.Required && cfg.Get(f.Key) == "" {
			missing = append(missing, f.Key)
		}
	}
	return missing
}

// WriteDefaults creates the config file with every service's schema
// defaults. An existing file is left untouched.
func (s *Store) WriteDefaults() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	// Only schema defaults are written; env overrides may carry secrets.
	fresh := viper.New()
	fresh.SetConfigType("yaml")
	setDefaults(fresh, s.services)
	if err := fresh.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write config %s: %w", s.path, err)
	}
	return nil
}

// OpenInEditor opens the config file in $EDITOR (vi when unset), creating it
// from the defaults first if needed, and waits for the editor to exit.
func (s *Store) OpenInEditor(ctx context.Context) error {
	if err := s.WriteDefaults(); err != nil {
		return err
	}

	editor := strings.Fields(os.Getenv("EDITOR"))
	if len(editor) == 0 {
		editor = []string{"vi"}
	}

	cmd := exec.CommandContext(ctx, editor[0], append(editor[1:], s.path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run editor %s: %w", editor[0], err)
	}
	return nil
}
