package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Provider ProviderConfig `mapstructure:"provider"`
	TTL      TTLConfig      `mapstructure:"ttl"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	S3       S3Config       `mapstructure:"s3"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type RedisConfig struct {
	Address     string        `mapstructure:"address"`
	MaxIdle     int           `mapstructure:"max_idle"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// ProviderConfig configures the external plan generation service.
type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TTLConfig holds the look-aside cache TTLs in seconds, per plan type.
// Independent of the plan's own cacheExpiry timestamp.
type TTLConfig struct {
	WorkoutPlans int `mapstructure:"workout_plans"`
	DietPlans    int `mapstructure:"diet_plans"`
}

// RefreshConfig configures the background refresh sweep.
type RefreshConfig struct {
	Schedule       string        `mapstructure:"schedule"`        // cron expression
	PacingInterval time.Duration `mapstructure:"pacing_interval"` // sleep between plans
	FailureBackoff time.Duration `mapstructure:"failure_backoff"` // nextRefreshDate push on error
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment variable handling: redis.address -> REDIS_ADDRESS etc.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "fitlife_plans")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.max_idle", 10)
	viper.SetDefault("redis.idle_timeout", "240s")
	viper.SetDefault("provider.timeout", "30s")
	viper.SetDefault("ttl.workout_plans", 86400)
	viper.SetDefault("ttl.diet_plans", 86400)
	viper.SetDefault("refresh.schedule", "30 3 * * *") // daily, off-peak
	viper.SetDefault("refresh.pacing_interval", "1500ms")
	viper.SetDefault("refresh.failure_backoff", "168h") // 7 days
	viper.SetDefault("s3.use_ssl", true)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")

	err = viper.ReadInConfig()
	// Config file is optional; env vars and defaults may be enough.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
