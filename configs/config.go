package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PresignTTL time.Duration
}

type Config struct {
	GraphAPIBaseURL     string
	InstagramAPIBaseURL string
	PostgresURI         string
	RedisURI            string
	ListenAddr          string
	LogLevel            string
	R2                  R2
	SecretKey           string
	CookieName          string
	CronSecret          string
	Policy              Policy
}

// Policy holds the publish/retry tunables. A policy file overrides only the
// keys it names; everything else keeps its DefaultPolicy value.
type Policy struct {
	MaxRetries         int            `yaml:"max_retries"`
	ScheduledBatchSize int            `yaml:"scheduled_batch_size"`
	RetryBatchSize     int            `yaml:"retry_batch_size"`
	PollInterval       time.Duration  `yaml:"poll_interval"`
	MaxPollAttempts    int            `yaml:"max_poll_attempts"`
	MaxRetryDelay      time.Duration  `yaml:"max_retry_delay"`
	BaseDelays         map[string]int `yaml:"base_delays"`
	PreflightEnabled   bool           `yaml:"preflight_enabled"`

	PublishSchedule      string        `yaml:"publish_schedule"`
	RetrySchedule        string        `yaml:"retry_schedule"`
	TokenRefreshSchedule string        `yaml:"token_refresh_schedule"`
	RunLockTTL           time.Duration `yaml:"run_lock_ttl"`

	TokenRefreshDaysBefore int `yaml:"token_refresh_days_before"`
	TokenWarningDays       int `yaml:"token_warning_days"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:             3,
		ScheduledBatchSize:     10,
		RetryBatchSize:         5,
		PollInterval:           2 * time.Second,
		MaxPollAttempts:        45,
		MaxRetryDelay:          1800 * time.Second,
		PreflightEnabled:       true,
		PublishSchedule:        "@every 00h05m00s",
		RetrySchedule:          "@every 00h05m00s",
		TokenRefreshSchedule:   "@daily",
		RunLockTTL:             15 * time.Minute,
		TokenRefreshDaysBefore: 7,
		TokenWarningDays:       14,
	}
}

// LoadConfig reads the environment and the optional POLICY_FILE. A policy
// file that cannot be read or parsed is an error; callers should not start.
func LoadConfig() (*Config, error) {
	policy, err := LoadPolicy(getEnv("POLICY_FILE", ""))
	if err != nil {
		return nil, err
	}

	presignTTL, err := time.ParseDuration(getEnv("R2_PRESIGN_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid R2_PRESIGN_TTL: %w", err)
	}

	return &Config{
		GraphAPIBaseURL:     getEnv("GRAPH_API_BASE_URL", "https://graph.facebook.com/v18.0"),
		InstagramAPIBaseURL: getEnv("INSTAGRAM_API_BASE_URL", "https://graph.instagram.com"),
		PostgresURI:         getEnv("POSTGRES_URI", ""),
		RedisURI:            getEnv("REDIS_URI", ""),
		ListenAddr:          getEnv("LISTEN_ADDR", ":3000"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PresignTTL: presignTTL,
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", ""),
		CronSecret: getEnv("CRON_SECRET", ""),
		Policy:     policy,
	}, nil
}

// LoadPolicy reads an optional YAML policy file. An empty path yields the
// defaults; environment variables inside the file are expanded.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultPolicy(), fmt.Errorf("failed to read policy file: %w", err)
	}

	policy := DefaultPolicy()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &policy); err != nil {
		return DefaultPolicy(), fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	if err := policy.validate(); err != nil {
		return DefaultPolicy(), fmt.Errorf("invalid policy file %s: %w", path, err)
	}
	return policy, nil
}

func (p Policy) validate() error {
	switch {
	case p.MaxRetries <= 0:
		return fmt.Errorf("max_retries must be positive")
	case p.ScheduledBatchSize <= 0 || p.RetryBatchSize <= 0:
		return fmt.Errorf("batch sizes must be positive")
	case p.PollInterval <= 0 || p.MaxPollAttempts <= 0:
		return fmt.Errorf("poll_interval and max_poll_attempts must be positive")
	case p.MaxRetryDelay <= 0:
		return fmt.Errorf("max_retry_delay must be positive")
	case p.RunLockTTL <= 0:
		return fmt.Errorf("run_lock_ttl must be positive")
	case p.PublishSchedule == "" || p.RetrySchedule == "" || p.TokenRefreshSchedule == "":
		return fmt.Errorf("schedules must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
