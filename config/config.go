package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// AppName doubles as the postgres schema the app lives in.
const AppName = "mileage"

const (
	DefaultDepreciationRate = 140.0
	DefaultRoadFactor       = 1.3
	DefaultTimezone         = "Asia/Seoul"
)

type Config struct {
	Port   string `yaml:"port"`
	IsDev  bool   `yaml:"dev"`
	MqMode string `yaml:"mq_mode"`

	DatabaseURL  string `yaml:"database_url"`
	RedisURL     string `yaml:"redis_url"`
	RabbitURL    string `yaml:"rabbitmq_url"`
	GCPProjectID string `yaml:"gcp_project_id"`

	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Settlement SettlementConfig `yaml:"settlement"`
	Maps       MapsConfig       `yaml:"maps"`
}

type SettlementConfig struct {
	// DepreciationRate applies when a month's rate entry leaves depreciation unset.
	DepreciationRate float64 `yaml:"depreciation_rate"`
	BulkWorkers      int     `yaml:"bulk_workers"`
	Timezone         string  `yaml:"timezone"`
}

type MapsConfig struct {
	APIKey     string  `yaml:"api_key"`
	RoadFactor float64 `yaml:"road_factor"`
}

func Default() *Config {
	return &Config{
		Port:      "8080",
		IsDev:     true,
		MqMode:    "go_chan",
		JWTSecret: "change-me",
		TokenTTL:  24 * time.Hour,
		LogLevel:  "info",
		LogFormat: "text",
		Settlement: SettlementConfig{
			DepreciationRate: DefaultDepreciationRate,
			BulkWorkers:      4,
			Timezone:         DefaultTimezone,
		},
		Maps: MapsConfig{
			RoadFactor: DefaultRoadFactor,
		},
	}
}

// Load builds the config from defaults, an optional yaml file, a .env file and
// the process environment, in that order of precedence (last wins).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil {
		// the app logger does not exist yet
		logrus.Debug("no .env file found, using system environment variables")
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.IsDev = getEnvAsBool("DEV", cfg.IsDev)
	cfg.MqMode = getEnv("MQ_MODE", cfg.MqMode)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RabbitURL = getEnv("RABBITMQ_URL", cfg.RabbitURL)
	cfg.GCPProjectID = getEnv("GCP_PROJECT_ID", cfg.GCPProjectID)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.TokenTTL = getEnvAsDuration("TOKEN_TTL", cfg.TokenTTL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.Settlement.DepreciationRate = getEnvAsFloat64("DEPRECIATION_DEFAULT", cfg.Settlement.DepreciationRate)
	cfg.Settlement.BulkWorkers = getEnvAsInt("BULK_WORKERS", cfg.Settlement.BulkWorkers)
	cfg.Settlement.Timezone = getEnv("TIMEZONE", cfg.Settlement.Timezone)
	cfg.Maps.APIKey = getEnv("GOOGLE_MAPS_API_KEY", cfg.Maps.APIKey)
	cfg.Maps.RoadFactor = getEnvAsFloat64("ROAD_CORRECTION_FACTOR", cfg.Maps.RoadFactor)
}

func (c *Config) Validate() error {
	if c.Settlement.DepreciationRate < 0 {
		return fmt.Errorf("settlement.depreciation_rate must not be negative, got %v", c.Settlement.DepreciationRate)
	}
	if c.Settlement.BulkWorkers < 1 {
		return fmt.Errorf("settlement.bulk_workers must be at least 1, got %d", c.Settlement.BulkWorkers)
	}
	if c.Maps.RoadFactor <= 0 {
		return fmt.Errorf("maps.road_factor must be positive, got %v", c.Maps.RoadFactor)
	}
	if _, err := time.LoadLocation(c.Settlement.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Settlement.Timezone, err)
	}
	return nil
}

// Location returns the zone "today" is evaluated in. Falls back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Settlement.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
