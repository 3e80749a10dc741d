package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Retry policies for failed queue items.
const (
	RetryPolicyNone     = "none"
	RetryPolicyCooldown = "cooldown"
)

// Config is loaded once per invocation and treated as immutable afterwards.
type Config struct {
	DatabaseDSN     string `env:"DATABASE_DSN,required=true" validate:"required"`
	SendGridAPIKey  string `env:"SENDGRID_API_KEY,required=true" validate:"required"`
	SendGridBaseURL string `env:"SENDGRID_BASE_URL,default=https://api.sendgrid.com" validate:"required,url"`
	SenderEmail     string `env:"SENDER_EMAIL,default=outreach@example.com" validate:"required,email"`
	SenderName      string `env:"SENDER_NAME,default=Outreach"`
	OrganizationID  string `env:"ORGANIZATION_ID"`
	AppBaseURL      string `env:"APP_BASE_URL,default=https://pipelineiq.net" validate:"required,url"`

	BatchSize       int           `env:"BATCH_SIZE,default=6" validate:"min=1"`
	OverfetchFactor int           `env:"OVERFETCH_FACTOR,default=3" validate:"min=1,max=20"`
	SendDelay       time.Duration `env:"SEND_DELAY,default=2s" validate:"min=0"`
	DefaultTimezone string        `env:"DEFAULT_TIMEZONE,default=America/Los_Angeles" validate:"required"`
	DailySendCap    int           `env:"DAILY_SEND_CAP,default=0" validate:"min=0"`

	RetryPolicy           string        `env:"RETRY_POLICY,default=none" validate:"oneof=none cooldown"`
	RetryCooldown         time.Duration `env:"RETRY_COOLDOWN,default=24h" validate:"min=0"`
	RetryMaxAttempts      int           `env:"RETRY_MAX_ATTEMPTS,default=3" validate:"min=1"`
	SuppressionFailClosed bool          `env:"SUPPRESSION_FAIL_CLOSED,default=false"`

	RedisURL    string `env:"REDIS_URL"`
	RabbitMQURL string `env:"RABBITMQ_URL"`

	DispatchSchedule string `env:"DISPATCH_SCHEDULE,default=@hourly" validate:"required"`
	OpsPort          int    `env:"OPS_PORT,default=8080" validate:"min=1,max=65535"`
	LogLevel         string `env:"LOG_LEVEL,default=info"`
}

// Load reads optional dotenv files, then the process environment.
// Variables already present in the environment win over dotenv values.
func Load() (*Config, error) {
	for _, path := range []string{".env.local", ".env"} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// FetchLimit is the number of candidates read per run for a given batch size.
func (c *Config) FetchLimit(batchSize int) int {
	if batchSize <= 0 {
		batchSize = c.BatchSize
	}
	factor := c.OverfetchFactor
	if factor < 1 {
		factor = 1
	}
	return batchSize * factor
}

// RetryEnabled reports whether failed items are re-queued after the cooldown.
func (c *Config) RetryEnabled() bool {
	return c.RetryPolicy == RetryPolicyCooldown
}
