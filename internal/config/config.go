// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"kavach/internal/geo"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Geo         GeoConfig
	Stats       StatsConfig
	Lifecycle   LifecycleConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// GeoConfig holds proximity index configuration
type GeoConfig struct {
	// IndexPrecision is the geohash precision of stored keys. Changing
	// it on a populated index requires re-encoding every stored report,
	// so it is fixed at deploy time.
	IndexPrecision  int
	DefaultRadiusKm float64
	MaxRadiusKm     float64
	NearbyLimit     int
}

// StatsConfig holds aggregate statistics configuration
type StatsConfig struct {
	// Timezone is the IANA zone name used for time-of-day bucketing.
	Timezone      string
	DefaultWindow time.Duration
}

// LifecycleConfig holds report lifecycle configuration
type LifecycleConfig struct {
	NotifyTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "kavach"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Geo: GeoConfig{
			IndexPrecision:  getEnvAsInt("GEO_INDEX_PRECISION", geo.DefaultPrecision),
			DefaultRadiusKm: getEnvAsFloat("GEO_DEFAULT_RADIUS_KM", 5.0),
			MaxRadiusKm:     getEnvAsFloat("GEO_MAX_RADIUS_KM", 50.0),
			NearbyLimit:     getEnvAsInt("GEO_NEARBY_LIMIT", 20),
		},
		Stats: StatsConfig{
			Timezone:      getEnv("STATS_TIMEZONE", "UTC"),
			DefaultWindow: getEnvAsDuration("STATS_DEFAULT_WINDOW", 7*24*time.Hour),
		},
		Lifecycle: LifecycleConfig{
			NotifyTimeout: getEnvAsDuration("LIFECYCLE_NOTIFY_TIMEOUT", 2*time.Second),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Geo.IndexPrecision < 1 || config.Geo.IndexPrecision > geo.MaxPrecision {
		return fmt.Errorf("geo index precision must be between 1 and %d, got %d", geo.MaxPrecision, config.Geo.IndexPrecision)
	}

	if config.Geo.DefaultRadiusKm <= 0 {
		return fmt.Errorf("default radius must be positive, got %v", config.Geo.DefaultRadiusKm)
	}
	if config.Geo.MaxRadiusKm < config.Geo.DefaultRadiusKm {
		return fmt.Errorf("max radius %v is below the default radius %v", config.Geo.MaxRadiusKm, config.Geo.DefaultRadiusKm)
	}

	if _, err := time.LoadLocation(config.Stats.Timezone); err != nil {
		return fmt.Errorf("invalid stats timezone %q: %w", config.Stats.Timezone, err)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
