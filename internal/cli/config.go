package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	defaultEndpoint = "http://localhost:8080"
	configFileName  = "config.yaml"
)

// Config is the CLI configuration kept in <dir>/config.yaml.
type Config struct {
	Endpoint string `mapstructure:"endpoint"`
}

// DefaultDir is ~/.taskflow, or ./.taskflow when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskflow"
	}
	return filepath.Join(home, ".taskflow")
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, configFileName))
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TASKFLOW")
	v.AutomaticEnv()
	v.SetDefault("endpoint", defaultEndpoint)
	return v
}

// LoadConfig reads the config file. A missing file yields the defaults;
// TASKFLOW_ENDPOINT overrides the file.
func LoadConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to <dir>/config.yaml, creating dir if needed.
func SaveConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("endpoint", cfg.Endpoint)
	path := filepath.Join(dir, configFileName)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
