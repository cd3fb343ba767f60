package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Env  string
	Port int

	JWTSecret  string
	BcryptCost int

	StoreDriver string
	UsersFile   string
	DBURL       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	WeatherAPIKey         string
	WeatherBaseURL        string
	WeatherTimeoutSeconds int

	CORSAllowedOrigins []string
	OTLPEndpoint       string
	MaxBodyBytes       int64
}

// Load reads the environment, after merging an optional .env file. Variables
// already set in the process win over the file.
func Load() Config {
	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load env file", "err", err)
	}

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 5500),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		BcryptCost: getEnvInt("BCRYPT_COST", 10),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreFile)),
		UsersFile:   getEnv("USERS_FILE", "data/users.json"),
		DBURL:       buildDBURL(),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		WeatherAPIKey:         os.Getenv("WEATHER_API_KEY"),
		WeatherBaseURL:        strings.TrimRight(getEnv("WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"), "/"),
		WeatherTimeoutSeconds: getEnvInt("WEATHER_TIMEOUT_SECONDS", 8),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
	}
}

// Validate rejects configurations that would run with missing secrets.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if strings.TrimSpace(c.WeatherAPIKey) == "" {
		errs = append(errs, errors.New("WEATHER_API_KEY is required"))
	}
	if c.WeatherTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("WEATHER_TIMEOUT_SECONDS must be positive"))
	}

	switch c.StoreDriver {
	case StoreFile:
		if c.UsersFile == "" {
			errs = append(errs, errors.New("USERS_FILE is required for the file store"))
		}
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	return errors.Join(errs...)
}

func (c Config) WeatherTimeout() time.Duration {
	return time.Duration(c.WeatherTimeoutSeconds) * time.Second
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "weatherhub")
	pass := getEnv("DB_PASSWORD", "weatherhub")
	name := getEnv("DB_NAME", "weatherhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer env value, using default", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
