package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Listen     string          `yaml:"listen"`
	DBPath     string          `yaml:"db_path"`
	UploadDir  string          `yaml:"upload_dir"`
	AdminToken string          `yaml:"admin_token"`
	TokenSalt  string          `yaml:"token_salt"`
	PolicyFile string          `yaml:"policy_file"`
	Logging    LoggingConfig   `yaml:"logging"`
	Tracing    TracingConfig   `yaml:"tracing"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
	LogSpans    bool    `yaml:"log_spans"`
}

type RateLimitConfig struct {
	SweepIntervalS int                      `yaml:"sweep_interval_s"`
	Categories     map[string]CategoryLimit `yaml:"categories"`
}

// CategoryLimit overrides one category's stock policy.
type CategoryLimit struct {
	WindowS     int `yaml:"window_s"`
	MaxRequests int `yaml:"max_requests"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Listen:     ":8080",
		DBPath:     "furlough.db",
		UploadDir:  "uploads",
		PolicyFile: "leave-policy.yaml",
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
		Tracing: TracingConfig{
			Endpoint:    "",
			Insecure:    false,
			SampleRatio: 1,
			LogSpans:    false,
		},
		RateLimit: RateLimitConfig{
			SweepIntervalS: 60,
		},
	}
}

// Load reads config from file with env var overrides
func Load(path string) (*ServerConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	if listen := os.Getenv("FURLOUGH_LISTEN"); listen != "" {
		cfg.Listen = listen
	}
	if db := os.Getenv("FURLOUGH_DB"); db != "" {
		cfg.DBPath = db
	}
	if token := os.Getenv("FURLOUGH_ADMIN_TOKEN"); token != "" {
		cfg.AdminToken = token
	}
	if salt := os.Getenv("FURLOUGH_TOKEN_SALT"); salt != "" {
		cfg.TokenSalt = salt
	}
	if level := os.Getenv("FURLOUGH_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}

func (c *ServerConfig) Validate() error {
	if c.Listen == "" {
		return ErrMissingListen
	}
	if c.TokenSalt == "" {
		return ErrMissingTokenSalt
	}
	if c.DBPath == "" {
		c.DBPath = "furlough.db"
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
	if c.RateLimit.SweepIntervalS <= 0 {
		c.RateLimit.SweepIntervalS = 60
	}
	for name, lim := range c.RateLimit.Categories {
		if lim.WindowS <= 0 || lim.MaxRequests < 1 {
			return &Error{"invalid rate limit override for category " + name}
		}
	}
	return nil
}

var (
	ErrMissingListen    = &Error{"listen address is required"}
	ErrMissingTokenSalt = &Error{"token salt is required"}
)

type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
