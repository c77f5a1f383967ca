// Package config loads service settings from defaults, an optional YAML
// file, a .env file and the process environment, in that order of precedence
// from lowest to highest. API keys are never compiled in.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/example/smartkingston/internal/textgen"
)

// Config holds every recognized option.
type Config struct {
	VisionAPIKey     string `yaml:"visionApiKey"`
	GenerativeAPIKey string `yaml:"generativeApiKey"`
	EndpointBaseURL  string `yaml:"endpointBaseUrl"`
	TimeoutMs        int    `yaml:"timeoutMs"`

	GenerativeProvider string `yaml:"generativeProvider"`
	GenerativeModel    string `yaml:"generativeModel"`
	MaxImageDimension  int    `yaml:"maxImageDimension"`
	Category           string `yaml:"category"`

	HTTPAddr    string   `yaml:"httpAddr"`
	GRPCAddr    string   `yaml:"grpcAddr"`
	DatabaseDSN string   `yaml:"databaseDsn"`
	RedisAddr   string   `yaml:"redisAddr"`
	JWTSecret   string   `yaml:"jwtSecret"`
	JWTAudience string   `yaml:"jwtAudience"`
	CORSOrigins []string `yaml:"corsOrigins"`
	LogLevel    string   `yaml:"logLevel"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		TimeoutMs:          5000,
		GenerativeProvider: textgen.ProviderGemini,
		MaxImageDimension:  2000,
		Category:           "Eco-Friendly Disposal",
		HTTPAddr:           ":8080",
		GRPCAddr:           ":9090",
		DatabaseDSN:        "host=postgres user=postgres dbname=smartkingston port=5432 sslmode=disable",
		RedisAddr:          "redis:6379",
		CORSOrigins:        []string{"*"},
		LogLevel:           "info",
	}
}

// Load reads the YAML file at path (or $CONFIG_FILE when path is empty),
// then the given .env files (".env" when none are given), then the
// environment. Missing files are skipped.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.GenerativeProvider = normalizeProvider(cfg.GenerativeProvider)
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("VISION_API_KEY", &c.VisionAPIKey)
	envString("GENERATIVE_API_KEY", &c.GenerativeAPIKey)
	envString("ENDPOINT_BASE_URL", &c.EndpointBaseURL)
	envString("GENERATIVE_PROVIDER", &c.GenerativeProvider)
	envString("GENERATIVE_MODEL", &c.GenerativeModel)
	envString("CLASSIFICATION_CATEGORY", &c.Category)
	envString("HTTP_ADDR", &c.HTTPAddr)
	envString("GRPC_ADDR", &c.GRPCAddr)
	envString("DATABASE_DSN", &c.DatabaseDSN)
	envString("REDIS_ADDR", &c.RedisAddr)
	envString("JWT_SECRET", &c.JWTSecret)
	envString("JWT_AUDIENCE", &c.JWTAudience)
	envString("LOG_LEVEL", &c.LogLevel)

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = splitList(origins)
	}
	if err := envInt("TIMEOUT_MS", &c.TimeoutMs); err != nil {
		return err
	}
	return envInt("MAX_IMAGE_DIMENSION", &c.MaxImageDimension)
}

// Timeout returns the per-call timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Validate checks the settings the classification pipeline needs.
func (c Config) Validate() error {
	var errs []error
	if c.VisionAPIKey == "" {
		errs = append(errs, errors.New("visionApiKey is required"))
	}
	if c.GenerativeAPIKey == "" {
		errs = append(errs, errors.New("generativeApiKey is required"))
	}
	if c.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("timeoutMs must be positive, got %d", c.TimeoutMs))
	}
	if c.MaxImageDimension < 0 {
		errs = append(errs, fmt.Errorf("maxImageDimension must not be negative, got %d", c.MaxImageDimension))
	}
	switch normalizeProvider(c.GenerativeProvider) {
	case textgen.ProviderGemini, textgen.ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unknown generativeProvider %q", c.GenerativeProvider))
	}
	return errors.Join(errs...)
}

func envString(key string, target *string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

func envInt(key string, target *int) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = parsed
	return nil
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
