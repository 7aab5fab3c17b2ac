package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/FACorreiaa/po-reconciler/internal/domain/lineitem"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Matching      MatchingConfig
	Reports       ReportConfig
	Batch         BatchConfig
	Observability ObservabilityConfig
	Notifications NotificationConfig
	Schedule      ScheduleConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	BaseURL            string
	RateLimitPerSecond int
	RateLimitBurst     int
	CORSOrigins        []string
	MaxUploadBytes     int64
}

// MatchingConfig carries the knobs of a comparison run.
type MatchingConfig struct {
	FuzzyThreshold    float64
	ZeroValueSeverity string // LOW or HIGH
	Currency          string // Empty means taken from the documents
	EuropeanFormat    bool
	AliasFile         string // CSV of sku,alias pairs
	Suggestions       bool
}

type ReportConfig struct {
	OutputDir        string
	Formats          []string
	IncludeMatched   bool
	IncludeUnmatched bool
	IncludeSummary   bool
	IncludeAlerts    bool
	Highlight        bool
}

type BatchConfig struct {
	Workers int
}

type ObservabilityConfig struct {
	LogLevel       string
	MetricsEnabled bool
	MetricsPort    int
}

type NotificationConfig struct {
	WebhookURL    string
	ResendAPIKey  string
	EmailFrom     string
	EmailTo       []string
	NotifyOnLevel string // Lowest alert severity that triggers a notification
	Timeout       time.Duration
}

// ScheduleConfig drives the periodic inbox sweep.
type ScheduleConfig struct {
	Enabled   bool
	Spec      string
	InboxDir  string
	Retention time.Duration // Zero keeps stored runs forever
}

// Load reads configuration from environment variables, after loading any
// .env files given (missing files are ignored).
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	env := &envReader{}
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               env.asInt("SERVER_PORT", 8080),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			RateLimitPerSecond: env.asInt("SERVER_RATE_LIMIT_PER_SECOND", 10),
			RateLimitBurst:     env.asInt("SERVER_RATE_LIMIT_BURST", 20),
			CORSOrigins:        getEnvAsList("CORS_ORIGINS", []string{"*"}),
			MaxUploadBytes:     int64(env.asInt("MAX_UPLOAD_MB", 20)) << 20,
		},
		Matching: MatchingConfig{
			FuzzyThreshold:    env.asFloat("FUZZY_THRESHOLD", 80),
			ZeroValueSeverity: strings.ToUpper(getEnv("ZERO_VALUE_SEVERITY", "HIGH")),
			Currency:          strings.ToUpper(getEnv("CURRENCY", "")),
			EuropeanFormat:    env.asBool("EUROPEAN_NUMBER_FORMAT", false),
			AliasFile:         getEnv("SKU_ALIAS_FILE", ""),
			Suggestions:       env.asBool("MATCH_SUGGESTIONS", true),
		},
		Reports: ReportConfig{
			OutputDir:        getEnv("REPORT_DIR", "./reports"),
			Formats:          getEnvAsList("REPORT_FORMATS", []string{"json", "csv", "xlsx"}),
			IncludeMatched:   env.asBool("REPORT_INCLUDE_MATCHED", true),
			IncludeUnmatched: env.asBool("REPORT_INCLUDE_UNMATCHED", true),
			IncludeSummary:   env.asBool("REPORT_INCLUDE_SUMMARY", true),
			IncludeAlerts:    env.asBool("REPORT_INCLUDE_ALERTS", true),
			Highlight:        env.asBool("REPORT_HIGHLIGHT", true),
		},
		Batch: BatchConfig{
			Workers: env.asInt("BATCH_WORKERS", 4),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			MetricsEnabled: env.asBool("METRICS_ENABLED", true),
			MetricsPort:    env.asInt("METRICS_PORT", 9090),
		},
		Notifications: NotificationConfig{
			WebhookURL:    getEnv("ALERT_WEBHOOK_URL", ""),
			ResendAPIKey:  getEnv("RESEND_API_KEY", ""),
			EmailFrom:     getEnv("ALERT_EMAIL_FROM", ""),
			EmailTo:       getEnvAsList("ALERT_EMAIL_TO", nil),
			NotifyOnLevel: strings.ToUpper(getEnv("ALERT_NOTIFY_LEVEL", "HIGH")),
			Timeout:       env.asDuration("ALERT_TIMEOUT", 10*time.Second),
		},
		Schedule: ScheduleConfig{
			Enabled:   env.asBool("SCHEDULE_ENABLED", false),
			Spec:      getEnv("SCHEDULE_SPEC", "*/15 * * * *"),
			InboxDir:  getEnv("INBOX_DIR", "./inbox"),
			Retention: env.asDuration("REPORT_RETENTION", 0),
		},
	}

	if env.err != nil {
		return nil, env.err
	}

	for i, f := range cfg.Reports.Formats {
		cfg.Reports.Formats[i] = strings.ToLower(f)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would make a run meaningless.
func (c *Config) Validate() error {
	t := c.Matching.FuzzyThreshold
	if math.IsNaN(t) || t < 0 || t > 100 {
		return lineitem.ConfigurationError{
			Field:   "fuzzy threshold",
			Value:   strconv.FormatFloat(t, 'f', -1, 64),
			Message: "must be between 0 and 100",
		}
	}
	if !isSeverity(c.Matching.ZeroValueSeverity) {
		return lineitem.ConfigurationError{
			Field:   "zero value severity",
			Value:   c.Matching.ZeroValueSeverity,
			Message: "must be LOW or HIGH",
		}
	}
	if !isSeverity(c.Notifications.NotifyOnLevel) {
		return lineitem.ConfigurationError{
			Field:   "alert notify level",
			Value:   c.Notifications.NotifyOnLevel,
			Message: "must be LOW or HIGH",
		}
	}
	for _, f := range c.Reports.Formats {
		switch f {
		case "json", "csv", "xlsx":
		default:
			return lineitem.ConfigurationError{Field: "report format", Value: f, Message: "must be json, csv or xlsx"}
		}
	}
	if c.Batch.Workers < 1 {
		return lineitem.ConfigurationError{
			Field:   "batch workers",
			Value:   strconv.Itoa(c.Batch.Workers),
			Message: "must be at least 1",
		}
	}
	return nil
}

// Addr returns the listen address of the API server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func isSeverity(s string) bool {
	return s == "LOW" || s == "HIGH"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables. A variable that is set but does not parse
// is a configuration error; the first one is kept in err.
type envReader struct {
	err error
}

func (r *envReader) lookup(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

func (r *envReader) fail(key, value, message string) {
	if r.err != nil {
		return
	}
	r.err = lineitem.ConfigurationError{
		Field:   strings.ToLower(strings.ReplaceAll(key, "_", " ")),
		Value:   value,
		Message: message,
	}
}

func (r *envReader) asInt(key string, defaultValue int) int {
	valueStr, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		r.fail(key, valueStr, "must be an integer")
		return defaultValue
	}
	return value
}

func (r *envReader) asFloat(key string, defaultValue float64) float64 {
	valueStr, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		r.fail(key, valueStr, "must be a number")
		return defaultValue
	}
	return value
}

func (r *envReader) asBool(key string, defaultValue bool) bool {
	valueStr, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		r.fail(key, valueStr, "must be true or false")
		return defaultValue
	}
	return value
}

func (r *envReader) asDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		r.fail(key, valueStr, "must be a duration such as 720h")
		return defaultValue
	}
	if value < 0 {
		r.fail(key, valueStr, "must not be negative")
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
