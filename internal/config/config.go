package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// TrustedProxies may set the client address through X-Forwarded-For.
	// Empty means the peer address is always used.
	TrustedProxies []string
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type SecurityConfig struct {
	JWTAccessSecret string
	JWTAccessTTL    time.Duration
}

// UploadConfig controls identifier lengths and the links handed back to clients.
type UploadConfig struct {
	DefaultHost   string
	BaseURL       string
	ShortIDLength int
	SecretBytes   int
	MaxIDAttempts int
	MaxBytes      int64
}

type PurgeConfig struct {
	Stream        string
	Group         string
	Consumer      string
	Workers       int
	Concurrency   int
	ClaimInterval time.Duration
	JobTimeout    time.Duration
}

type ReconcileConfig struct {
	Enabled  bool
	Schedule string
}

type MetricsConfig struct {
	WorkerAddr string
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Upload           UploadConfig
	Purge            PurgeConfig
	Reconcile        ReconcileConfig
	Metrics          MetricsConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("PIXELHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
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

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.Security.JWTAccessSecret == "" {
		return fmt.Errorf("security.jwtaccesssecret is required")
	}
	if c.Upload.ShortIDLength < 4 {
		return fmt.Errorf("upload.shortidlength must be at least 4, got %d", c.Upload.ShortIDLength)
	}
	if c.Upload.SecretBytes < 16 {
		return fmt.Errorf("upload.secretbytes must be at least 16, got %d", c.Upload.SecretBytes)
	}
	if c.Upload.MaxIDAttempts < 1 {
		return fmt.Errorf("upload.maxidattempts must be positive, got %d", c.Upload.MaxIDAttempts)
	}
	if c.Purge.Workers < 1 || c.Purge.Concurrency < 1 {
		return fmt.Errorf("purge.workers and purge.concurrency must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "30s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.trustedproxies", []string{})

	// keys without a useful default are still registered so that
	// AutomaticEnv values reach Unmarshal
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.automigrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "127.0.0.1:9000")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucket", "pixelhost-images")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.jwtaccesssecret", "")
	v.SetDefault("security.jwtaccessttl", "15m")

	v.SetDefault("upload.defaulthost", "i.pxl.blue")
	v.SetDefault("upload.baseurl", "https://api.pxl.blue")
	v.SetDefault("upload.shortidlength", 8)
	v.SetDefault("upload.secretbytes", 24)
	v.SetDefault("upload.maxidattempts", 5)
	v.SetDefault("upload.maxbytes", 50<<20)

	v.SetDefault("purge.stream", "images:purge")
	v.SetDefault("purge.group", "purge-workers")
	v.SetDefault("purge.consumer", "worker-1")
	v.SetDefault("purge.workers", 4)
	v.SetDefault("purge.concurrency", 16)
	v.SetDefault("purge.claiminterval", "30s")
	v.SetDefault("purge.jobtimeout", "15m")

	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.schedule", "0 0 * * * *") // hourly

	v.SetDefault("metrics.workeraddr", ":9100")

	v.SetDefault("logging.level", "")

	v.SetDefault("allowcorsorigins", []string{})
}
