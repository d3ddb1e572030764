package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the accounts server. Tags use
// mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	// RedisAddr enables the Redis session store and distributed refresh
	// lock when set. Empty means in-process implementations.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// SealKey is the base64-encoded 32-byte key for sealing tokens at
	// rest. Empty disables sealing (development only).
	SealKey string `mapstructure:"SEAL_KEY"`

	// Pitchly service configuration seed. When ClientID is set, the
	// service_configurations row is upserted at startup.
	PitchlyClientID string `mapstructure:"PITCHLY_CLIENT_ID"`
	PitchlySecret   string `mapstructure:"PITCHLY_SECRET"`
	PitchlyOrigin   string `mapstructure:"PITCHLY_ORIGIN"`
	// PitchlyScopes is a space-separated scope list.
	PitchlyScopes string `mapstructure:"PITCHLY_SCOPES"`

	// ConfigCacheTTLSec bounds how long the provider configuration is
	// served from cache.
	ConfigCacheTTLSec int `mapstructure:"CONFIG_CACHE_TTL_SEC"`
}

// ScopeList returns the configured scopes as a list.
func (c *ServerConfig) ScopeList() []string {
	return strings.Fields(c.PitchlyScopes)
}

// LoadConfig reads configuration from file, environment variables, and
// defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/accounts-pitchly/")
	v.AddConfigPath("$HOME/.accounts-pitchly")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/accounts_pitchly_dev")
	v.SetDefault("MONGO_DB_NAME", "accounts_pitchly_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "accounts-pitchly")
	v.SetDefault("PITCHLY_ORIGIN", "")
	v.SetDefault("CONFIG_CACHE_TTL_SEC", 60)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
