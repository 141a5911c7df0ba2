package config

import (
	"os"
	"time"
)

// ClientConfig configures the query client. The API URL is the only
// setting that reaches the wire.
type ClientConfig struct {
	APIURL    string        `koanf:"api_url" validate:"required,url"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	LogLevel  string        `koanf:"log_level"`
	LogFormat string        `koanf:"log_format" validate:"oneof=json console"`
}

const DefaultAPIURL = "http://localhost:5000"

// VITE_API_URL is accepted so an existing frontend .env keeps working.
var clientEnvKeys = map[string]string{
	"VITE_API_URL":       "api_url",
	"CRATEBUDDY_API_URL": "api_url",
	"CRATEBUDDY_TIMEOUT": "timeout",
	"LOG_LEVEL":          "log_level",
	"LOG_FORMAT":         "log_format",
}

func LoadClient() (*ClientConfig, error) {
	cfg := ClientConfig{
		APIURL:    DefaultAPIURL,
		Timeout:   5 * time.Minute,
		LogLevel:  "warn",
		LogFormat: "console",
	}
	lookup := envLookup(clientEnvKeys)
	envKey := func(key string) string {
		if key == "VITE_API_URL" && os.Getenv("CRATEBUDDY_API_URL") != "" {
			return ""
		}
		return lookup(key)
	}
	if err := load(&cfg, envKey); err != nil {
		return nil, err
	}
	return &cfg, nil
}
