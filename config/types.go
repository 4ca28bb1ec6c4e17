package config

import "time"

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0"`
}

// APIConfig contains CTS API client configuration
type APIConfig struct {
	BaseURL           string  `yaml:"baseURL" validate:"omitempty,url"`
	TimeoutMS         int     `yaml:"timeoutMS" validate:"gte=0"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" validate:"gte=0"`
}

// Timeout returns the request timeout as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// MonitorConfig contains the refresh scheduling configuration
type MonitorConfig struct {
	ScanIntervalMS int `yaml:"scanIntervalMS" validate:"gte=0"`
}

// ScanInterval returns the refresh cadence as a duration.
func (c MonitorConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMS) * time.Millisecond
}

// StorageConfig locates the persisted state files
type StorageConfig struct {
	// EntryPath is the YAML file holding the configuration entry.
	EntryPath string `yaml:"entryPath"`
	// RegistryPath is the sqlite device registry; empty keeps the registry
	// in memory.
	RegistryPath string `yaml:"registryPath"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server   ServerConfig  `yaml:"server"`
	API      APIConfig     `yaml:"api"`
	Monitor  MonitorConfig `yaml:"monitor"`
	Storage  StorageConfig `yaml:"storage"`
	LogLevel string        `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
}
