package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	AllowedOrigins   []string
	DefaultGroupSize int

	// Redis необязателен: без него лимиты и блокировки локальные.
	RedisURL          string
	MessageRateLimit  int
	MessageRateWindow time.Duration

	RazorpayKeyID     string
	RazorpayKeySecret string
	ReconcileInterval time.Duration

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv собирает конфигурацию из произвольного источника переменных.
func FromEnv(getenv func(string) string) (*Config, error) {
	dbURL := getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intVar(getenv, "SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	groupSize, err := intVar(getenv, "DEFAULT_GROUP_SIZE", 16)
	if err != nil {
		return nil, err
	}
	if groupSize <= 0 {
		return nil, fmt.Errorf("DEFAULT_GROUP_SIZE must be positive, got %d", groupSize)
	}

	rateLimit, err := intVar(getenv, "MESSAGE_RATE_LIMIT", 30)
	if err != nil {
		return nil, err
	}
	rateWindow, err := durationVar(getenv, "MESSAGE_RATE_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	reconcileInterval, err := durationVar(getenv, "RECONCILE_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:       dbURL,
		JWTSecretKey:      jwtKey,
		ServerPort:        port,
		AllowedOrigins:    splitList(getenv("CORS_ALLOWED_ORIGINS"), "*"),
		DefaultGroupSize:  groupSize,
		RedisURL:          getenv("REDIS_URL"),
		MessageRateLimit:  rateLimit,
		MessageRateWindow: rateWindow,
		RazorpayKeyID:     getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: getenv("RAZORPAY_KEY_SECRET"),
		ReconcileInterval: reconcileInterval,
		R2AccountID:       getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

func intVar(getenv func(string) string, name string, def int) (int, error) {
	raw := getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}

func durationVar(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	raw := getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, v)
	}
	return v, nil
}

func splitList(raw, def string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{def}
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
