package config

import "time"

// NotifxConfig configures failure alert e-mail. Alerts are off when no
// recipients are set.
type NotifxConfig struct {
	Provider        string   `validate:"oneof=console ses"`
	FromAddress     string   `validate:"required,email"`
	AlertRecipients []string `validate:"dive,email"`
	AlertInterval   time.Duration
	AWSRegion       string
	ConfigSet       string
}

func (n NotifxConfig) AlertsEnabled() bool { return len(n.AlertRecipients) > 0 }

func loadNotifxConfig() NotifxConfig {
	return NotifxConfig{
		Provider:        getEnv("NOTIFX_PROVIDER", "console"),
		FromAddress:     getEnv("NOTIFX_FROM_ADDRESS", getEnv("EMAIL_FROM_ADDRESS", "noreply@flashmoji.dev")),
		AlertRecipients: getEnvStringSlice("NOTIFX_ALERT_RECIPIENTS", nil),
		AlertInterval:   getEnvDuration("NOTIFX_ALERT_INTERVAL", 10*time.Minute),
		AWSRegion:       getEnv("NOTIFX_AWS_REGION", getEnv("AWS_REGION", "us-east-1")),
		ConfigSet:       getEnv("NOTIFX_SES_CONFIG_SET", ""),
	}
}
