// Package config handles application configuration loading and validation,
// plus the persisted configuration entry the wizard creates.
//
// Daemon configuration is loaded from config.yml and validated using struct
// tags. The configuration entry (API token and monitored stops) lives in its
// own YAML file managed through the Store interface, so it survives restarts
// independently of the daemon configuration.
package config
