package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "NOTEBOOK"
	defaultDatabasePath  = "notebook.db"
	defaultLogLevel      = "info"
	defaultPollInterval  = 3 * time.Second
	defaultPersistDelay  = time.Duration(0)
	defaultAutosaveDelay = time.Second
)

// Configuration keys shared by the CLI flag bindings.
const (
	KeyDatabasePath  = "database.path"
	KeyLogLevel      = "log.level"
	KeyPollInterval  = "sync.poll_interval"
	KeyPersistDelay  = "sync.persist_delay"
	KeyAutosaveDelay = "editor.autosave_delay"
)

// AppConfig captures runtime configuration for the notebook shell.
type AppConfig struct {
	DatabasePath  string
	LogLevel      string
	PollInterval  time.Duration
	PersistDelay  time.Duration
	AutosaveDelay time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault(KeyDatabasePath, defaultDatabasePath)
	configViper.SetDefault(KeyLogLevel, defaultLogLevel)
	configViper.SetDefault(KeyPollInterval, defaultPollInterval)
	configViper.SetDefault(KeyPersistDelay, defaultPersistDelay)
	configViper.SetDefault(KeyAutosaveDelay, defaultAutosaveDelay)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DatabasePath:  configViper.GetString(KeyDatabasePath),
		LogLevel:      configViper.GetString(KeyLogLevel),
		PollInterval:  configViper.GetDuration(KeyPollInterval),
		PersistDelay:  configViper.GetDuration(KeyPersistDelay),
		AutosaveDelay: configViper.GetDuration(KeyAutosaveDelay),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("%s is required", KeyDatabasePath)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive", KeyPollInterval)
	}
	if c.PersistDelay < 0 {
		return fmt.Errorf("%s must not be negative", KeyPersistDelay)
	}
	if c.AutosaveDelay <= 0 {
		return fmt.Errorf("%s must be positive", KeyAutosaveDelay)
	}
	return nil
}
