package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the seoflood server.
type Config struct {
	DBPath        string
	ServerPort    int
	LogLevel      string
	LLMEndpoint   string
	LLMAPIKey     string
	LLMModels     []string
	SentryDSN     string
	Environment   string
	ShutdownGrace time.Duration

	ExportDir         string
	ExportStagger     time.Duration
	DefaultPageCount  int
	DefaultWordCount  int
	EnforceMetaLimits bool
	SessionTTL        time.Duration

	RateLimit RateLimit
}

// RateLimit configures the per-client token bucket applied by the HTTP layer.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

const (
	defaultDBPath         = "./data/seoflood.db"
	defaultServerPort     = 8080
	defaultLogLevel       = "info"
	defaultEnvironment    = "development"
	defaultShutdownGrace  = 10 * time.Second
	defaultExportDir      = "./data/export"
	defaultExportStagger  = 250 * time.Millisecond
	defaultPageCount      = 50
	defaultWordCount      = 500
	defaultSessionTTL     = 2 * time.Hour
	defaultRateLimitRPS   = 5.0
	defaultRateLimitBurst = 20
	defaultRateLimitTTL   = 10 * time.Minute
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		LLMEndpoint:   os.Getenv("LLM_ENDPOINT"),
		LLMAPIKey:     os.Getenv("LLM_API_KEY"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   getEnv("ENV", defaultEnvironment),
		ShutdownGrace: defaultShutdownGrace,
		ExportDir:     getEnv("EXPORT_DIR", defaultExportDir),
	}

	if modelsJSON := os.Getenv("LLM_MODELS"); modelsJSON != "" {
		models, err := parseModels(modelsJSON)
		if err != nil {
			return nil, eris.Wrap(err, "parsing LLM_MODELS")
		}
		cfg.LLMModels = models
	}

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	if cfg.ExportStagger, err = getDuration("EXPORT_STAGGER", defaultExportStagger); err != nil {
		return nil, err
	}

	if cfg.DefaultPageCount, err = getPositiveInt("DEFAULT_PAGE_COUNT", defaultPageCount); err != nil {
		return nil, err
	}

	if cfg.DefaultWordCount, err = getPositiveInt("DEFAULT_WORD_COUNT", defaultWordCount); err != nil {
		return nil, err
	}

	if cfg.SessionTTL, err = getDuration("SESSION_TTL", defaultSessionTTL); err != nil {
		return nil, err
	}

	if raw := os.Getenv("ENFORCE_META_LIMITS"); raw != "" {
		enforce, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			return nil, eris.Wrapf(parseErr, "invalid ENFORCE_META_LIMITS value: %s", raw)
		}
		cfg.EnforceMetaLimits = enforce
	}

	cfg.RateLimit.RequestsPerSecond = defaultRateLimitRPS
	if raw := os.Getenv("RATE_LIMIT_RPS"); raw != "" {
		rps, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil || rps <= 0 {
			return nil, eris.Errorf("invalid RATE_LIMIT_RPS value: %s", raw)
		}
		cfg.RateLimit.RequestsPerSecond = rps
	}

	if cfg.RateLimit.Burst, err = getPositiveInt("RATE_LIMIT_BURST", defaultRateLimitBurst); err != nil {
		return nil, err
	}

	if cfg.RateLimit.ClientTTL, err = getDuration("RATE_LIMIT_CLIENT_TTL", defaultRateLimitTTL); err != nil {
		return nil, err
	}

	return cfg, nil
}

// CopywriterModel returns the model used for page copy, or an empty string when none is configured.
func (c *Config) CopywriterModel() string {
	if len(c.LLMModels) == 0 {
		return ""
	}
	return c.LLMModels[0]
}

// ResearchModel returns the keyword research model, falling back to the copywriter model.
func (c *Config) ResearchModel() string {
	if len(c.LLMModels) > 1 {
		return c.LLMModels[1]
	}
	return c.CopywriterModel()
}

// LLMEnabled reports whether the generative collaborator can be constructed.
func (c *Config) LLMEnabled() bool {
	return strings.TrimSpace(c.LLMAPIKey) != "" && c.CopywriterModel() != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	if value < 0 {
		return 0, eris.Errorf("invalid %s value: %s must not be negative", key, raw)
	}

	return value, nil
}

func getPositiveInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	if value <= 0 {
		return 0, eris.Errorf("invalid %s value: %s must be positive", key, raw)
	}

	return value, nil
}

func parseModels(raw string) ([]string, error) {
	// Accept either a JSON array of strings or an object with a `models` field.
	var arrayInput []string
	if err := json.Unmarshal([]byte(raw), &arrayInput); err == nil {
		return arrayInput, nil
	}

	var objectInput struct {
		Models []string `json:"models"`
	}
	if err := json.Unmarshal([]byte(raw), &objectInput); err != nil {
		return nil, eris.Wrap(err, "decoding JSON")
	}

	if len(objectInput.Models) == 0 {
		return nil, eris.New("models list is empty")
	}

	return objectInput.Models, nil
}
