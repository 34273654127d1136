package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Email     EmailConfig     `mapstructure:"email"`
	Slack     SlackConfig     `mapstructure:"slack"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	// Base URL of the web app, used to build links in emails.
	URL         string `mapstructure:"url"`
	Environment string `mapstructure:"environment"`
}

func (c AppConfig) IsDevelopment() bool {
	return c.Environment == "" || c.Environment == "development"
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	// Driver is "sqlite3" (cgo) or "sqlite" (pure Go).
	Driver         string `mapstructure:"driver"`
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	APIReadPerMinute  int `mapstructure:"api_read_per_minute"`
	APIWritePerMinute int `mapstructure:"api_write_per_minute"`
	AuthPerMinute     int `mapstructure:"auth_per_minute"`
}

type WebhooksConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type EmailConfig struct {
	// Provider is "smtp" or "log".
	Provider string     `mapstructure:"provider"`
	SMTP     SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

type SlackConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type IdentityConfig struct {
	HookSecret        string   `mapstructure:"hook_secret"`
	BlockedDomains    []string `mapstructure:"blocked_domains"`
	AutoVerifyDomains []string `mapstructure:"auto_verify_domains"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

type JobsConfig struct {
	ReminderInterval        time.Duration `mapstructure:"reminder_interval"`
	RecurringInterval       time.Duration `mapstructure:"recurring_interval"`
	DigestInterval          time.Duration `mapstructure:"digest_interval"`
	InvitationSweepInterval time.Duration `mapstructure:"invitation_sweep_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ProjectHub")
	v.SetDefault("app.url", "http://localhost:3000")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.url", "file:projecthub.db")
	v.SetDefault("database.max_connections", 1)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "projecthub")
	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_token_ttl", 7*24*time.Hour)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("rate_limit.api_read_per_minute", 1000)
	v.SetDefault("rate_limit.api_write_per_minute", 100)
	v.SetDefault("rate_limit.auth_per_minute", 20)

	v.SetDefault("webhooks.timeout", 10*time.Second)
	v.SetDefault("webhooks.failure_threshold", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")

	v.SetDefault("email.provider", "log")
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.from_address", "no-reply@projecthub.local")
	v.SetDefault("email.smtp.from_name", "ProjectHub")

	v.SetDefault("slack.timeout", 10*time.Second)

	v.SetDefault("identity.hook_secret", "")
	v.SetDefault("identity.auto_verify_domains", []string{})
	v.SetDefault("identity.blocked_domains", []string{"mailinator.com", "guerrillamail.com", "10minutemail.com"})

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "")

	v.SetDefault("jobs.reminder_interval", time.Hour)
	v.SetDefault("jobs.recurring_interval", time.Hour)
	v.SetDefault("jobs.digest_interval", 24*time.Hour)
	v.SetDefault("jobs.invitation_sweep_interval", 6*time.Hour)
}

// Load reads the YAML file at path, then environment overrides. A missing file
// is not an error; defaults and environment still apply.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.JWT.Secret == "" {
		return nil, errors.New("jwt.secret is required")
	}

	return &config, nil
}
