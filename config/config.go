package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	JWT      JWTConfig
	Monitor  MonitorConfig
}

type ServerConfig struct {
	Port           string
	GinMode        string
	TrustedProxies []string
	AllowedOrigin  string
	RateLimit      int // requests per second per client IP, 0 disables
}

type DatabaseConfig struct {
	Driver          string // mysql | postgres | sqlite
	DSN             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	LogSQL          bool
}

// EngineConfig tunes the order pipeline and recipe traversal.
type EngineConfig struct {
	MaxRecipeDepth int
	MaxRetries     int
	StrictPayments bool
}

type JWTConfig struct {
	Secret string
	Issuer string
	// DevSecret is set when JWT_SECRET was missing outside release mode and the
	// built-in development secret is in use.
	DevSecret bool
}

// DevJWTSecret signs tokens in local development and tests only.
const DevJWTSecret = "TestSecretKeyAUTH1945"

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set when GIN_MODE=release")

type MonitorConfig struct {
	StockSweepSchedule string
	Enabled            bool
}

// LoadEnv reads .env (when present) and the process environment.
func LoadEnv() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			GinMode:        getEnv("GIN_MODE", "debug"),
			TrustedProxies: getEnvSlice("TRUSTED_PROXIES", []string{"127.0.0.1"}),
			AllowedOrigin:  getEnv("CORS_ALLOWED_ORIGIN", "http://127.0.0.1:5500"),
			RateLimit:      getEnvInt("RATE_LIMIT_RPS", 50),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "mysql"),
			DSN:             getEnv("DB_DSN", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "3306"),
			User:            getEnv("DB_USER", "root"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "restaurant_core"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
			LogSQL:          getEnv("GORM_LOG", "") != "off",
		},
		Engine: EngineConfig{
			MaxRecipeDepth: getEnvInt("MAX_RECIPE_DEPTH", 2),
			MaxRetries:     getEnvInt("ORDER_MAX_RETRIES", 3),
			StrictPayments: getEnvBool("STRICT_PAYMENTS", false),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Issuer: getEnv("JWT_ISSUER", "RestaurantCore"),
		},
		Monitor: MonitorConfig{
			StockSweepSchedule: getEnv("STOCK_SWEEP_SCHEDULE", "@every 5m"),
			Enabled:            getEnvBool("STOCK_SWEEP_ENABLED", true),
		},
	}
	if cfg.JWT.Secret == "" && cfg.Server.GinMode != "release" {
		cfg.JWT.Secret = DevJWTSecret
		cfg.JWT.DevSecret = true
	}
	return cfg
}

// Validate rejects configurations that are unsafe to serve with.
func (c *Config) Validate() error {
	if c.Server.GinMode == "release" && (c.JWT.Secret == "" || c.JWT.Secret == DevJWTSecret) {
		return ErrMissingJWTSecret
	}
	return nil
}

// Default returns the configuration used when no environment is present.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", GinMode: "debug", RateLimit: 50},
		Database: DatabaseConfig{Driver: "sqlite", Name: ":memory:"},
		Engine:   EngineConfig{MaxRecipeDepth: 2, MaxRetries: 3},
		JWT:      JWTConfig{Secret: DevJWTSecret, Issuer: "RestaurantCore", DevSecret: true},
		Monitor:  MonitorConfig{StockSweepSchedule: "@every 5m"},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
