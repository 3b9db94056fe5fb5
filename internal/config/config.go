package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Auth       AuthConfig
	Commerce   CommerceConfig
	Vault      VaultConfig
	Session    SessionConfig
	Redemption RedemptionConfig
	Events     EventsConfig
	Cleanup    CleanupConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// CommerceConfig configures the GET services client.
type CommerceConfig struct {
	Endpoint    string
	Timeout     time.Duration
	MaxRetries  int
	BackoffStep time.Duration
}

// VaultConfig holds the key for device credentials at rest. The key is not
// validated here; the cipher reports a bad key on first use.
type VaultConfig struct {
	EncryptionKey string
}

type SessionConfig struct {
	Backend       string // memory or redis
	TTL           time.Duration
	MaxEntries    int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type RedemptionConfig struct {
	CodeTTL         time.Duration
	RefreshInterval time.Duration
}

// EventsConfig configures domain event publishing. An empty URL disables it.
type EventsConfig struct {
	RabbitMQURL string
	Queue       string
}

type CleanupConfig struct {
	Interval              time.Duration
	NotificationRetention time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "redeem"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnv("TRUSTED_PROXIES", ""),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		},
		Commerce: CommerceConfig{
			Endpoint:    getEnv("GET_API_ENDPOINT", "https://services.get.cbord.com/GETServices/services/json"),
			Timeout:     getEnvAsDuration("GET_API_TIMEOUT", 15*time.Second),
			MaxRetries:  getEnvAsInt("GET_API_MAX_RETRIES", 2),
			BackoffStep: getEnvAsDuration("GET_API_BACKOFF_STEP", 250*time.Millisecond),
		},
		Vault: VaultConfig{
			EncryptionKey: getEnv("GET_CREDENTIALS_ENCRYPTION_KEY", ""),
		},
		Session: SessionConfig{
			Backend:       strings.ToLower(getEnv("SESSION_CACHE_BACKEND", "memory")),
			TTL:           getEnvAsDuration("SESSION_CACHE_TTL", 60*time.Second),
			MaxEntries:    getEnvAsInt("SESSION_CACHE_SIZE", 10000),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		Redemption: RedemptionConfig{
			CodeTTL:         getEnvAsDuration("CODE_TTL", 15*time.Minute),
			RefreshInterval: getEnvAsDuration("SCAN_REFRESH_INTERVAL", 5*time.Second),
		},
		Events: EventsConfig{
			RabbitMQURL: getEnv("RABBITMQ_URL", ""),
			Queue:       getEnv("RABBITMQ_QUEUE", "redemption.events"),
		},
		Cleanup: CleanupConfig{
			Interval:              getEnvAsDuration("CLEANUP_INTERVAL", 10*time.Minute),
			NotificationRetention: getEnvAsDuration("NOTIFICATION_RETENTION", 30*24*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if cfg.Session.Backend != "memory" && cfg.Session.Backend != "redis" {
		return nil, fmt.Errorf("SESSION_CACHE_BACKEND must be memory or redis, got %q", cfg.Session.Backend)
	}

	if cfg.Commerce.MaxRetries < 0 {
		return nil, fmt.Errorf("GET_API_MAX_RETRIES cannot be negative")
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"GET_API_TIMEOUT", cfg.Commerce.Timeout},
		{"SESSION_CACHE_TTL", cfg.Session.TTL},
		{"CODE_TTL", cfg.Redemption.CodeTTL},
		{"SCAN_REFRESH_INTERVAL", cfg.Redemption.RefreshInterval},
		{"CLEANUP_INTERVAL", cfg.Cleanup.Interval},
	} {
		if d.value <= 0 {
			return nil, fmt.Errorf("%s must be positive", d.name)
		}
	}

	if cfg.Cleanup.NotificationRetention < 0 {
		return nil, fmt.Errorf("NOTIFICATION_RETENTION cannot be negative")
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{}
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
