package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the production CTS SIRI-lite endpoint.
const DefaultBaseURL = "https://api.cts-strasbourg.eu/v1/siri/2.0"

// Defaults applied after load for fields left unset.
const (
	DefaultPort           = 17280
	DefaultTimeoutMS      = 10000
	DefaultScanIntervalMS = 60000
	DefaultEntryPath      = "cts-entry.yml"
)

// LoadAppConfig loads and validates the application configuration. With an
// empty path it falls back to config.yml in the working directory; a missing
// fallback file yields the defaults rather than an error.
func LoadAppConfig(path string) (AppConfig, error) {
	var cfg AppConfig

	paths := []string{"config.yml"}
	explicit := path != ""
	if explicit {
		paths = []string{path}
	}

	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			applyDefaults(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultBaseURL
	}
	if cfg.API.TimeoutMS == 0 {
		cfg.API.TimeoutMS = DefaultTimeoutMS
	}
	if cfg.Monitor.ScanIntervalMS == 0 {
		cfg.Monitor.ScanIntervalMS = DefaultScanIntervalMS
	}
	if cfg.Storage.EntryPath == "" {
		cfg.Storage.EntryPath = DefaultEntryPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}
