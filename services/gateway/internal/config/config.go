package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                      string   `yaml:"port"`
	LogLevel                  string   `yaml:"logLevel"`
	AuthServiceURL            string   `yaml:"authServiceURL"`
	AuthJWKSURL               string   `yaml:"authJwksURL"`
	ChatServiceURL            string   `yaml:"chatServiceURL"`
	MarketServiceURL          string   `yaml:"marketServiceURL"`
	JWTIssuer                 string   `yaml:"jwtIssuer"`
	JWTAudience               string   `yaml:"jwtAudience"`
	JWTLeeway                 string   `yaml:"jwtLeeway"`
	RedisAddr                 string   `yaml:"redisAddr"`
	RedisPassword             string   `yaml:"redisPassword"`
	TrustedProxyCIDRs         []string `yaml:"trustedProxyCidrs"`
	SignupRateLimitPerMinute  int      `yaml:"signupRateLimitPerMinute"`
	LoginRateLimitPerMinute   int      `yaml:"loginRateLimitPerMinute"`
	RefreshRateLimitPerMinute int      `yaml:"refreshRateLimitPerMinute"`
	InsightRateLimitPerMinute int      `yaml:"insightRateLimitPerMinute"`
	MaxUploadBytes            int64    `yaml:"maxUploadBytes"`
	TwitterAPIBase            string   `yaml:"twitterApiBase"`
	TwitterBearerToken        string   `yaml:"twitterBearerToken"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("GATEWAY_AUTH_JWKS_URL"); v != "" {
		cfg.AuthJWKSURL = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("GATEWAY_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("GATEWAY_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("TWITTER_API_BASE"); v != "" {
		cfg.TwitterAPIBase = v
	}
	if v := os.Getenv("TWITTER_BEARER_TOKEN"); v != "" {
		cfg.TwitterBearerToken = v
	}
	if v := os.Getenv("GATEWAY_SIGNUP_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SignupRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("GATEWAY_LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("GATEWAY_REFRESH_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RefreshRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("GATEWAY_INSIGHT_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.InsightRateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.AuthServiceURL == "" {
		return errors.New("config: authServiceURL is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.AuthJWKSURL) == "" {
		return errors.New("config: authJwksURL is required (set in config.yaml or GATEWAY_AUTH_JWKS_URL)")
	}
	if cfg.ChatServiceURL == "" {
		return errors.New("config: chatServiceURL is required (set in config.yaml)")
	}
	if cfg.MarketServiceURL == "" {
		return errors.New("config: marketServiceURL is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for distributed rate limiting")
	}
	if cfg.SignupRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 || cfg.RefreshRateLimitPerMinute < 0 || cfg.InsightRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseJWTLeeway parses optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid jwtLeeway duration: %w", err)
	}
	return dur, nil
}
