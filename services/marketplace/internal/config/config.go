package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseURL"`
	LogLevel    string `yaml:"logLevel"`
	AuthJWKSURL string `yaml:"authJWKSURL"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`
	JWTLeeway   string `yaml:"jwtLeeway"`

	MinioEndpoint   string `yaml:"minioEndpoint"`
	MinioAccessKey  string `yaml:"minioAccessKey"`
	MinioSecretKey  string `yaml:"minioSecretKey"`
	MinioUseSSL     bool   `yaml:"minioUseSSL"`
	BriefsBucket    string `yaml:"briefsBucket"`
	MediaKitsBucket string `yaml:"mediaKitsBucket"`
	LogosBucket     string `yaml:"logosBucket"`
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
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("AUTH_JWKS_URL"); v != "" {
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
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if cfg.BriefsBucket == "" {
		cfg.BriefsBucket = "campaign-briefs"
	}
	if cfg.MediaKitsBucket == "" {
		cfg.MediaKitsBucket = "media-kits"
	}
	if cfg.LogosBucket == "" {
		cfg.LogosBucket = "startup-logos"
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
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml)")
	}
	if cfg.AuthJWKSURL == "" {
		return errors.New("config: authJWKSURL is required (set AUTH_JWKS_URL)")
	}
	if cfg.MinioEndpoint == "" {
		return errors.New("config: minioEndpoint is required (set MINIO_ENDPOINT)")
	}
	return nil
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
