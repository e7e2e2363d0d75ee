package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/yeremiapane/waiter-pos/utils"
)

type Config struct {
	HTTPPort string
	GinMode  string
	Debug    bool

	// POS server
	APIBaseURL     string
	RealtimeURL    string
	AccessToken    string
	RequestTimeout time.Duration

	// optional AMQP relay of the realtime events; used instead of RealtimeURL when set
	AMQPURL      string
	AMQPExchange string

	// local journal
	DBDriver string
	DBDSN    string

	PollInterval   time.Duration
	CORSOrigins    string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Debug("No .env file loaded")
	}

	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		Debug:          getBool("DEBUG", false),
		APIBaseURL:     strings.TrimRight(getEnv("POS_API_BASE_URL", "http://localhost:3000/api"), "/"),
		RealtimeURL:    getEnv("POS_REALTIME_URL", "ws://localhost:3000/realtime"),
		AccessToken:    getEnv("POS_ACCESS_TOKEN", ""),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 10*time.Second),
		AMQPURL:        getEnv("POS_AMQP_URL", ""),
		AMQPExchange:   getEnv("POS_AMQP_EXCHANGE", "pos_realtime"),
		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:          getEnv("DB_DSN", "waiter-pos.db"),
		PollInterval:   getDuration("POLL_INTERVAL", 30*time.Second),
		CORSOrigins:    getEnv("CORS_ORIGIN", "*"),
		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 40),
	}

	if cfg.AccessToken == "" {
		utils.InfoLogger.Warn("POS_ACCESS_TOKEN is not set, server calls will be unauthenticated")
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// plain numbers are seconds
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	utils.ErrorLogger.Errorf("Invalid %s=%q, using %s", key, v, def)
	return def
}

func getInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return def
}

func getBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}
