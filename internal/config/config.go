// Package config loads service configuration from file and environment.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server struct {
		Host string `mapstructure:"host"`
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Layers struct {
		Dir  string `mapstructure:"dir"`
		Meta string `mapstructure:"meta"`
	} `mapstructure:"layers"`
	Cache struct {
		TTL      time.Duration `mapstructure:"ttl"`
		MaxItems int           `mapstructure:"max_items"`
		MaxBytes int64         `mapstructure:"max_bytes"`
	} `mapstructure:"cache"`
	Query struct {
		FeatureCap int `mapstructure:"feature_cap"`
	} `mapstructure:"query"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// Load reads configuration from the given file (optional) with environment
// variables taking precedence via ATLAS_* (e.g. ATLAS_SERVER_PORT).
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("atlas")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("atlas")
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("layers.dir", "data/layers")
	v.SetDefault("layers.meta", "data/layers.yaml")
	v.SetDefault("cache.ttl", 15*time.Minute)
	v.SetDefault("cache.max_items", 100)
	v.SetDefault("cache.max_bytes", int64(50*1024*1024))
	v.SetDefault("query.feature_cap", 5000)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, all keys have defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
