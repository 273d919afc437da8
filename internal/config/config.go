package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string
	LogLevel string
	JWT      JWTConfig
	Stats    StatsConfig
	Rank     RankConfig
	Notify   NotifyConfig
	Retry    RetryConfig
	Watch    WatchConfig
	Labels   LabelConfig
}

type JWTConfig struct {
	SecretKey string
}

type StatsConfig struct {
	CacheTTL time.Duration
}

// RankConfig bounds leaderboard staleness: a cached board lives at most
// RefreshInterval and is dropped on every approval, credit or withdrawal.
type RankConfig struct {
	RefreshInterval time.Duration
	DefaultLimit    int
}

type NotifyConfig struct {
	QueueSize int
	Timeout   time.Duration
}

// RetryConfig applies to read-only operations only.
type RetryConfig struct {
	ReadAttempts int
	ReadBackoff  time.Duration
}

type WatchConfig struct {
	Interval   time.Duration
	MaxBackoff time.Duration
}

type LabelConfig struct {
	Size int
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("jwt.secret_key", "")
	viper.SetDefault("stats.cache_ttl", 10*time.Minute)
	viper.SetDefault("rank.refresh_interval", 60*time.Second)
	viper.SetDefault("rank.default_limit", 20)
	viper.SetDefault("notify.queue_size", 256)
	viper.SetDefault("notify.timeout", 3*time.Second)
	viper.SetDefault("retry.read_attempts", 3)
	viper.SetDefault("retry.read_backoff", 50*time.Millisecond)
	viper.SetDefault("watch.interval", 5*time.Second)
	viper.SetDefault("watch.max_backoff", time.Minute)
	viper.SetDefault("labels.size", 256)
}

func bindEnv() {
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("log.level", "LOG_LEVEL")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	viper.BindEnv("stats.cache_ttl", "STATS_CACHE_TTL")
	viper.BindEnv("rank.refresh_interval", "RANK_REFRESH_INTERVAL")
	viper.BindEnv("rank.default_limit", "RANK_DEFAULT_LIMIT")
	viper.BindEnv("notify.queue_size", "NOTIFY_QUEUE_SIZE")
	viper.BindEnv("notify.timeout", "NOTIFY_TIMEOUT")
	viper.BindEnv("retry.read_attempts", "RETRY_READ_ATTEMPTS")
	viper.BindEnv("retry.read_backoff", "RETRY_READ_BACKOFF")
	viper.BindEnv("watch.interval", "WATCH_INTERVAL")
	viper.BindEnv("watch.max_backoff", "WATCH_MAX_BACKOFF")
	viper.BindEnv("labels.size", "LABEL_SIZE")
}

// Init loads .env (if any) into the environment and prepares viper. The
// returned error only reports a missing or unreadable config file; every key
// has a default, so callers log it and carry on.
func Init() error {
	_ = godotenv.Load()

	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	setDefaults()
	bindEnv()

	return viper.ReadInConfig()
}

// Load reads the application settings. Database and Redis settings are read
// by the database package.
func Load() *Config {
	setDefaults()

	return &Config{
		Port:     viper.GetString("server.port"),
		LogLevel: viper.GetString("log.level"),
		JWT: JWTConfig{
			SecretKey: viper.GetString("jwt.secret_key"),
		},
		Stats: StatsConfig{
			CacheTTL: viper.GetDuration("stats.cache_ttl"),
		},
		Rank: RankConfig{
			RefreshInterval: viper.GetDuration("rank.refresh_interval"),
			DefaultLimit:    viper.GetInt("rank.default_limit"),
		},
		Notify: NotifyConfig{
			QueueSize: viper.GetInt("notify.queue_size"),
			Timeout:   viper.GetDuration("notify.timeout"),
		},
		Retry: RetryConfig{
			ReadAttempts: viper.GetInt("retry.read_attempts"),
			ReadBackoff:  viper.GetDuration("retry.read_backoff"),
		},
		Watch: WatchConfig{
			Interval:   viper.GetDuration("watch.interval"),
			MaxBackoff: viper.GetDuration("watch.max_backoff"),
		},
		Labels: LabelConfig{
			Size: viper.GetInt("labels.size"),
		},
	}
}
