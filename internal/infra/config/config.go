package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Lockout   LockoutSettings   `mapstructure:"lockout"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Retention RetentionSettings `mapstructure:"retention"`
}

type AppSettings struct {
	Name               string   `mapstructure:"name"`
	Env                string   `mapstructure:"env"`
	Host               string   `mapstructure:"host"`
	Port               int      `mapstructure:"port"`
	CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and key layout.
type RedisSettings struct {
	Host                string        `mapstructure:"host"`
	Port                int           `mapstructure:"port"`
	DB                  int           `mapstructure:"db"`
	Password            string        `mapstructure:"password"`
	TLSEnabled          bool          `mapstructure:"tls_enabled"`
	LockStatePrefix     string        `mapstructure:"lock_state_prefix"`
	LockStateTTL        time.Duration `mapstructure:"lock_state_ttl"`
	AttemptWindowPrefix string        `mapstructure:"attempt_window_prefix"`
	AttemptWindowTTL    time.Duration `mapstructure:"attempt_window_ttl"`
}

// KafkaSettings configures the Kafka producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// LockoutSettings configures the lockout policy applied to every session.
type LockoutSettings struct {
	WindowDuration     time.Duration `mapstructure:"window_duration"`
	MaxFailedAttempts  int           `mapstructure:"max_failed_attempts"`
	LockDuration       time.Duration `mapstructure:"lock_duration"`
	MinLockedForUnlock time.Duration `mapstructure:"min_locked_for_unlock"`
}

// RateLimitSettings configures transport-level throttling per client IP.
type RateLimitSettings struct {
	WindowDuration     time.Duration `mapstructure:"window_duration"`
	AttemptMaxRequests int           `mapstructure:"attempt_max_requests"`
	UnlockMaxRequests  int           `mapstructure:"unlock_max_requests"`
	StatusMaxRequests  int           `mapstructure:"status_max_requests"`
}

// RetentionSettings configures the background purge of inactive sessions.
type RetentionSettings struct {
	MaxInactivity time.Duration `mapstructure:"max_inactivity"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type TelemetrySettings struct {
	MetricsPort int    `mapstructure:"metrics_port"`
	ServiceName string `mapstructure:"service_name"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("LOCKOUT")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.cors_allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.lock_state_prefix",
		"redis.lock_state_ttl",
		"redis.attempt_window_prefix",
		"redis.attempt_window_ttl",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"lockout.window_duration",
		"lockout.max_failed_attempts",
		"lockout.lock_duration",
		"lockout.min_locked_for_unlock",
		"telemetry.metrics_port",
		"telemetry.service_name",
		"rate_limit.window_duration",
		"rate_limit.attempt_max_requests",
		"rate_limit.unlock_max_requests",
		"rate_limit.status_max_requests",
		"retention.max_inactivity",
		"retention.sweep_interval",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "lockout-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.cors_allowed_origins", []string{"*"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "lockout")
	v.SetDefault("postgres.password", "lockout_password")
	v.SetDefault("postgres.database", "lockout")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.lock_state_prefix", "lockout:lock_state")
	v.SetDefault("redis.lock_state_ttl", "2m")
	v.SetDefault("redis.attempt_window_prefix", "lockout:attempt_window")
	v.SetDefault("redis.attempt_window_ttl", "30m")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "lockout")
	v.SetDefault("kafka.async", true)

	v.SetDefault("lockout.window_duration", "15m")
	v.SetDefault("lockout.max_failed_attempts", 5)
	v.SetDefault("lockout.lock_duration", "30m")
	v.SetDefault("lockout.min_locked_for_unlock", "0s")

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.service_name", "lockout-service")

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.attempt_max_requests", 30)
	v.SetDefault("rate_limit.unlock_max_requests", 5)
	v.SetDefault("rate_limit.status_max_requests", 60)

	v.SetDefault("retention.max_inactivity", "720h")
	v.SetDefault("retention.sweep_interval", "1h")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "LOCKOUT_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
