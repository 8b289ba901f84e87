package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	WordPress struct {
		BaseURL     string `yaml:"baseUrl"`
		Username    string `yaml:"username"`
		AppPassword string `yaml:"appPassword"`
	} `yaml:"wordpress"`
	Catalog struct {
		TTL string `yaml:"ttl"`
	} `yaml:"catalog"`
	Sync struct {
		Interval string `yaml:"interval"`
	} `yaml:"sync"`
	Quiz struct {
		// CompletionThreshold is the fraction of correct answers counted as a
		// perfect quiz. Zero or out-of-range means "every answer correct".
		CompletionThreshold float64 `yaml:"completionThreshold"`
	} `yaml:"quiz"`
	Auth struct {
		GuestSecret   string `yaml:"guestSecret"`
		GuestTokenTTL string `yaml:"guestTokenTtl"`
	} `yaml:"auth"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
