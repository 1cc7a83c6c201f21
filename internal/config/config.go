package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	ShareRootPath string `env:"SHARE_ROOT_PATH,required=true"`
	SourcesFile   string `env:"SOURCES_FILE,required=true"`

	GatewayEndpoint  string `env:"GATEWAY_ENDPOINT,required=true"`
	IdentityEndpoint string `env:"IDENTITY_ENDPOINT,required=true"`
	PartyEndpoint    string `env:"PARTY_ENDPOINT,required=true"`
	MailEndpoint     string `env:"MAIL_ENDPOINT"`

	ReportSubjectPrefix string `env:"REPORT_SUBJECT_PREFIX,default=Fakturakörning"`
	ReportSender        string `env:"REPORT_SENDER"`
	ReportRecipients    string `env:"REPORT_RECIPIENTS"`

	ScanInterval      string `env:"SCAN_INTERVAL,default=15m"`
	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=20"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=4"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := cfg.ScanIntervalDuration(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ScanIntervalDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.ScanInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid SCAN_INTERVAL %q: %w", c.ScanInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid SCAN_INTERVAL %q: must be positive", c.ScanInterval)
	}
	return d, nil
}

// ReportRecipientList splits REPORT_RECIPIENTS on commas, dropping empty
// entries.
func (c *Config) ReportRecipientList() []string {
	parts := strings.Split(c.ReportRecipients, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// ReportingEnabled reports whether enough mail settings are present to send
// status and error reports.
func (c *Config) ReportingEnabled() bool {
	return strings.TrimSpace(c.MailEndpoint) != "" &&
		strings.TrimSpace(c.ReportSender) != "" &&
		len(c.ReportRecipientList()) > 0
}
