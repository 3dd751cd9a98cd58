package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Port   string `mapstructure:"PORT"`
	AppEnv string `mapstructure:"APP_ENV"`

	DBDriver string `mapstructure:"DB_DRIVER"`
	DBURL    string `mapstructure:"DB_URL"`

	JWTSecret      string `mapstructure:"JWT_SECRET"`
	JWTExpiryHours int    `mapstructure:"JWT_EXPIRY_HOURS"`
	AccessCode     string `mapstructure:"ACCESS_CODE"`
	CORSOrigins    string `mapstructure:"CORS_ORIGINS"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	LoginRateLimit  int `mapstructure:"LOGIN_RATE_LIMIT"`
	LoginRateWindow int `mapstructure:"LOGIN_RATE_WINDOW_MINUTES"`

	TwilioAccountSID  string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `mapstructure:"TWILIO_PHONE_NUMBER"`
	ReminderSchedule  string `mapstructure:"REMINDER_SCHEDULE"`
}

var keys = []string{
	"PORT", "APP_ENV", "DB_DRIVER", "DB_URL", "JWT_SECRET", "JWT_EXPIRY_HOURS", "ACCESS_CODE",
	"CORS_ORIGINS", "REDIS_URL", "RABBITMQ_URL", "EVENTS_EXCHANGE", "LOGIN_RATE_LIMIT",
	"LOGIN_RATE_WINDOW_MINUTES", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_PHONE_NUMBER",
	"REMINDER_SCHEDULE",
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("JWT_EXPIRY_HOURS", 24)
	viper.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	viper.SetDefault("EVENTS_EXCHANGE", "invoicely.events")
	viper.SetDefault("LOGIN_RATE_LIMIT", 10)
	viper.SetDefault("LOGIN_RATE_WINDOW_MINUTES", 15)
	viper.SetDefault("REMINDER_SCHEDULE", "0 9 * * *")
	viper.AutomaticEnv()

	for _, key := range keys {
		_ = viper.BindEnv(key)
	}

	if err = viper.Unmarshal(&config); err != nil {
		return config, err
	}
	return config, config.validate()
}

func (c Config) validate() error {
	var missing []string
	if c.DBURL == "" {
		missing = append(missing, "DB_URL")
	}
	if c.JWTSecret == "" && !c.IsDevelopment() {
		missing = append(missing, "JWT_SECRET")
	}
	if c.AccessCode == "" {
		missing = append(missing, "ACCESS_CODE")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return errors.New("DB_DRIVER must be postgres or sqlite")
	}
	return nil
}

// IsDevelopment reports whether APP_ENV selects local development defaults.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// JWTExpiry is the lifetime of session tokens.
func (c Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpiryHours) * time.Hour
}

// LoginWindow is the rate limiting window for auth attempts.
func (c Config) LoginWindow() time.Duration {
	return time.Duration(c.LoginRateWindow) * time.Minute
}

// AllowedOrigins splits CORS_ORIGINS.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// TwilioEnabled reports whether SMS reminders can be sent.
func (c Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}
