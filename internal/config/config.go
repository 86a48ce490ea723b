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
	Port                    string
	AllowedOrigin           string
	DatabaseURL             string
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	StoreID                 string
	SettingsCacheTTLSeconds int
	AuthSecret              string
	AccessTokenTTLMinutes   int
	Stage                   string
	LogLevel                string
	PrinterType             string
	PrinterAddress          string
	PrinterDevice           string
	PrinterSpoolDir         string
	LookupDebounceMS        int
	LookupLimit             int
	LoginRatePerMinute      int
	SessionIdleMinutes      int
}

// Load reads an optional .env file, then the process environment. Values
// already set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:                    getEnv("PORT", "8080"),
		AllowedOrigin:           getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 redisDB,
		StoreID:                 getEnv("DEFAULT_STORE_ID", "main-store"),
		SettingsCacheTTLSeconds: getPositiveInt("SETTINGS_CACHE_TTL_SECONDS", 300),
		AuthSecret:              strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:   getPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		Stage:                   strings.ToLower(getEnv("STAGE", "dev")),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		PrinterType:             strings.ToLower(getEnv("PRINTER_TYPE", "spool")),
		PrinterAddress:          os.Getenv("PRINTER_ADDRESS"),
		PrinterDevice:           os.Getenv("PRINTER_DEVICE"),
		PrinterSpoolDir:         getEnv("PRINTER_SPOOL_DIR", "receipts"),
		LookupDebounceMS:        getNonNegativeInt("LOOKUP_DEBOUNCE_MS", 250),
		LookupLimit:             getPositiveInt("LOOKUP_LIMIT", 20),
		LoginRatePerMinute:      getPositiveInt("LOGIN_RATE_PER_MINUTE", 10),
		SessionIdleMinutes:      getPositiveInt("SESSION_IDLE_MINUTES", 720),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) SettingsCacheTTL() time.Duration {
	return time.Duration(c.SettingsCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

func (c Config) LookupDebounce() time.Duration {
	return time.Duration(c.LookupDebounceMS) * time.Millisecond
}

func getEnv(key string, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func getNonNegativeInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
