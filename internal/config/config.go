// internal/config/config.go
package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Solver   SolverConfig
	Planner  PlannerConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Enabled  bool
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// MaxConcurrent bounds simultaneous transactions on the run store.
	MaxConcurrent int
}

type AppConfig struct {
	LogLevel string
	DataDir  string
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	ResultTTLSeconds int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

// SolverConfig holds the default per-call solver options.
type SolverConfig struct {
	Name             string
	TimeLimitSeconds int
	MIPGap           float64
	MaxNodes         int
}

type PlannerConfig struct {
	// UnmetPenalty is the default per-unit penalty; 0 derives it from data.
	UnmetPenalty        float64
	ScenarioConcurrency int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 30)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 900)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_ENABLED", false)
		viper.SetDefault("DB_DRIVER", "postgres")
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "netplan")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("DB_MAX_CONCURRENT", 10)
		viper.SetDefault("LOG_LEVEL", "info")
		viper.SetDefault("APP_DATA_DIR", "./data/output")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_RESULT_TTL_SECONDS", 3600)
		viper.SetDefault("STORAGE_ENABLED", false)
		viper.SetDefault("STORAGE_ENDPOINT", "localhost:9000")
		viper.SetDefault("STORAGE_BUCKET", "netplan")
		viper.SetDefault("STORAGE_REGION", "")
		viper.SetDefault("STORAGE_USE_SSL", false)
		viper.SetDefault("STORAGE_PREFIX", "runs")
		viper.SetDefault("SOLVER_NAME", "bnb")
		viper.SetDefault("SOLVER_TIME_LIMIT_SECONDS", 600)
		viper.SetDefault("SOLVER_MIP_GAP", 0.01)
		viper.SetDefault("PLANNER_MAX_NODES", 0)
		viper.SetDefault("PLANNER_UNMET_PENALTY", 0)
		viper.SetDefault("PLANNER_SCENARIO_CONCURRENCY", 2)

		// Read from environment variables
		viper.AutomaticEnv()

		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Enabled:       viper.GetBool("DB_ENABLED"),
				Driver:        viper.GetString("DB_DRIVER"),
				Host:          viper.GetString("DB_HOST"),
				Port:          viper.GetString("DB_PORT"),
				User:          viper.GetString("DB_USER"),
				Password:      viper.GetString("DB_PASSWORD"),
				DBName:        viper.GetString("DB_NAME"),
				SSLMode:       viper.GetString("DB_SSLMODE"),
				MaxConcurrent: viper.GetInt("DB_MAX_CONCURRENT"),
			},
			App: AppConfig{
				LogLevel: viper.GetString("LOG_LEVEL"),
				DataDir:  viper.GetString("APP_DATA_DIR"),
			},
			Cache: CacheConfig{
				Enabled:          viper.GetBool("CACHE_ENABLED"),
				RedisURL:         viper.GetString("REDIS_URL"),
				RedisHost:        viper.GetString("REDIS_HOST"),
				RedisPort:        viper.GetString("REDIS_PORT"),
				RedisPassword:    viper.GetString("REDIS_PASSWORD"),
				RedisDB:          viper.GetInt("REDIS_DB"),
				ResultTTLSeconds: viper.GetInt("CACHE_RESULT_TTL_SECONDS"),
			},
			Storage: StorageConfig{
				Enabled:   viper.GetBool("STORAGE_ENABLED"),
				Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
				AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
				SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
				Bucket:    viper.GetString("STORAGE_BUCKET"),
				Region:    viper.GetString("STORAGE_REGION"),
				UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
				Prefix:    viper.GetString("STORAGE_PREFIX"),
			},
			Solver: SolverConfig{
				Name:             viper.GetString("SOLVER_NAME"),
				TimeLimitSeconds: viper.GetInt("SOLVER_TIME_LIMIT_SECONDS"),
				MIPGap:           viper.GetFloat64("SOLVER_MIP_GAP"),
				MaxNodes:         viper.GetInt("PLANNER_MAX_NODES"),
			},
			Planner: PlannerConfig{
				UnmetPenalty:        viper.GetFloat64("PLANNER_UNMET_PENALTY"),
				ScenarioConcurrency: viper.GetInt("PLANNER_SCENARIO_CONCURRENCY"),
			},
		}
	})

	return instance
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
