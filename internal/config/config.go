package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type SchedulerConfig struct {
	CheckInterval    time.Duration `mapstructure:"check_interval"`
	QueueSize        int           `mapstructure:"queue_size"`
	Workers          int           `mapstructure:"workers"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
}

type QualityConfig struct {
	MinRecordsForStats   int     `mapstructure:"min_records_for_stats"`
	MissingRateThreshold float64 `mapstructure:"missing_rate_threshold"`
	OutlierZScore        float64 `mapstructure:"outlier_zscore"`
}

type OperatorConfig struct {
	Email        string `mapstructure:"email"`
	PasswordHash string `mapstructure:"password_hash"`
}

type Config struct {
	ServerPort         string          `mapstructure:"server_port"`
	JWTSecret          string          `mapstructure:"jwt_secret"`
	ArchiveDatabaseURL string          `mapstructure:"archive_database_url"`
	AllowedOrigins     []string        `mapstructure:"allowed_origins"`
	Operator           OperatorConfig  `mapstructure:"operator"`
	Scheduler          SchedulerConfig `mapstructure:"scheduler"`
	Quality            QualityConfig   `mapstructure:"quality"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}
	if config.Operator.Email == "" || config.Operator.PasswordHash == "" {
		log.Fatal("Operator credentials must be set in the config file")
	}

	if config.Scheduler.CheckInterval <= 0 {
		config.Scheduler.CheckInterval = time.Minute
	}
	if config.Scheduler.QueueSize <= 0 {
		config.Scheduler.QueueSize = 64
	}
	if config.Scheduler.Workers <= 0 {
		config.Scheduler.Workers = 4
	}
	if config.Scheduler.BatchConcurrency <= 0 {
		config.Scheduler.BatchConcurrency = 2
	}

	if config.Quality.MinRecordsForStats <= 0 {
		config.Quality.MinRecordsForStats = 3
	}
	if config.Quality.MissingRateThreshold <= 0 {
		config.Quality.MissingRateThreshold = 0.2
	}
	if config.Quality.OutlierZScore <= 0 {
		config.Quality.OutlierZScore = 3.0
	}

	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}

	return &config
}
