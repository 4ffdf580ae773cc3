package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:8089/api/"
	DefaultPushChannel = "dashboard"
	DefaultPushEvent   = "DASHBOARD_UPDATE"

	envPrefix = "DISPATCHDESK_"
)

type APIConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type PushConfig struct {
	// URL overrides the websocket endpoint derived from Key and Cluster.
	URL              string        `yaml:"url" validate:"omitempty,url"`
	Key              string        `yaml:"key" validate:"required_without=URL"`
	Cluster          string        `yaml:"cluster"`
	Channel          string        `yaml:"channel" validate:"required"`
	Event            string        `yaml:"event" validate:"required"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" validate:"gte=0"`
}

type CredentialsConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=file sqlite redis"`
	Path        string `yaml:"path"`
	RedisAddr   string `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPrefix string `yaml:"redis_prefix"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file"`
}

type Config struct {
	StateDir    string            `yaml:"state_dir" validate:"required"`
	API         APIConfig         `yaml:"api"`
	Push        PushConfig        `yaml:"push"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Log         LogConfig         `yaml:"log"`
	MetricsAddr string            `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used when no file is present.
func Default(stateDir string) Config {
	return Config{
		StateDir: stateDir,
		API: APIConfig{
			BaseURL: DefaultAPIURL,
			Timeout: 15 * time.Second,
		},
		Push: PushConfig{
			Key:              "local",
			Cluster:          "ap1",
			Channel:          DefaultPushChannel,
			Event:            DefaultPushEvent,
			HandshakeTimeout: 10 * time.Second,
		},
		Credentials: CredentialsConfig{
			Backend:     "file",
			RedisPrefix: "dispatchdesk:credentials:",
		},
		Log: LogConfig{Level: "info"},
	}
}

// DefaultPath is <user config dir>/dispatchdesk/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "dispatchdesk", "config.yaml"), nil
}

// Load reads the YAML file at path (a missing file is not an error), applies
// .env and DISPATCHDESK_* overrides and validates the result.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	_ = godotenv.Load()

	cfg := Default(filepath.Dir(path))
	payload, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(payload, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	if cfg.Credentials.Path == "" {
		cfg.Credentials.Path = defaultCredentialsPath(cfg)
	}
	if !strings.HasSuffix(cfg.API.BaseURL, "/") {
		cfg.API.BaseURL += "/"
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"STATE_DIR":           &cfg.StateDir,
		"API_URL":             &cfg.API.BaseURL,
		"PUSH_URL":            &cfg.Push.URL,
		"PUSH_KEY":            &cfg.Push.Key,
		"PUSH_CLUSTER":        &cfg.Push.Cluster,
		"CREDENTIALS_BACKEND": &cfg.Credentials.Backend,
		"CREDENTIALS_PATH":    &cfg.Credentials.Path,
		"REDIS_ADDR":          &cfg.Credentials.RedisAddr,
		"LOG_LEVEL":           &cfg.Log.Level,
		"LOG_FILE":            &cfg.Log.File,
		"METRICS_ADDR":        &cfg.MetricsAddr,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "API_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = d
		}
	}
}

func defaultCredentialsPath(cfg Config) string {
	switch cfg.Credentials.Backend {
	case "sqlite":
		return filepath.Join(cfg.StateDir, "dispatchdesk.db")
	default:
		return filepath.Join(cfg.StateDir, "credentials.json")
	}
}
