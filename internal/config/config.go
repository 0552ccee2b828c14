package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig selects and configures the contact photo backend.
// Driver is one of "minio", "s3" or "local".
type StorageConfig struct {
	Driver       string
	Endpoint     string
	PublicURL    string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UseSSL       bool
	Region       string
	LocalDir     string
	MaxPhotoSize int64
}

type SecurityConfig struct {
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTResetSecret   string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	ResetTTL         time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// MailConfig controls how outbound mail leaves the API. Delivery "smtp"
// sends inline, "queue" pushes onto a redis stream drained by cmd/worker.
type MailConfig struct {
	Delivery string
	SMTP     SMTPConfig
}

type QueueConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type JobsConfig struct {
	SessionPurge string
}

type TelemetryConfig struct {
	Enabled       bool
	ServiceName   string
	CollectorAddr string
}

type AppConfig struct {
	Environment      string
	LogLevel         string
	Domain           string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Mail             MailConfig
	Queue            QueueConfig
	Jobs             JobsConfig
	Telemetry        TelemetryConfig
	AllowCORSOrigins []string
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("CONTACTBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the services cannot run with.
func (c *AppConfig) Validate() error {
	if c.Security.JWTAccessSecret == "" || c.Security.JWTRefreshSecret == "" || c.Security.JWTResetSecret == "" {
		return fmt.Errorf("security: jwt access, refresh and reset secrets are required")
	}
	switch c.Storage.Driver {
	case "minio", "s3", "local":
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}
	switch c.Mail.Delivery {
	case "smtp", "queue":
	default:
		return fmt.Errorf("mail: unknown delivery %q", c.Mail.Delivery)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("domain", "http://localhost:3000")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.requesttimeout", "10s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.migrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.bucket", "contact-photos")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.localdir", "./uploads")
	v.SetDefault("storage.maxphotosize", 5*1024*1024)

	v.SetDefault("security.jwtaccessttl", "15m")
	v.SetDefault("security.jwtrefreshttl", "720h") // 30 days
	v.SetDefault("security.resetttl", "15m")

	v.SetDefault("mail.delivery", "smtp")
	v.SetDefault("mail.smtp.port", 587)

	v.SetDefault("queue.stream", "mail:outbound")
	v.SetDefault("queue.group", "mail-workers")
	v.SetDefault("queue.consumer", "worker-1")
	v.SetDefault("queue.claiminterval", "30s")

	v.SetDefault("jobs.sessionpurge", "0 0 * * * *")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.servicename", "contactbook-api")
	v.SetDefault("telemetry.collectoraddr", "localhost:4317")

	// env-only keys still need a registered default for Unmarshal to see them
	for _, key := range []string{
		"loglevel",
		"allowcorsorigins",
		"postgres.dsn",
		"redis.password",
		"storage.endpoint",
		"storage.publicurl",
		"storage.accesskey",
		"storage.secretkey",
		"security.jwtaccesssecret",
		"security.jwtrefreshsecret",
		"security.jwtresetsecret",
		"mail.smtp.host",
		"mail.smtp.user",
		"mail.smtp.password",
		"mail.smtp.from",
	} {
		v.SetDefault(key, "")
	}
}
