package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fuelstation/backend/internal/domain"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	DBMaxConns             int
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	ReportCacheTTLSeconds  int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	LogLevel               string
	AppEnv                 string
	Timezone               string
	ShiftScope             domain.ShiftScope
	CashVariancePolicy     string
	CashVarianceReject     bool
	OperationTimeoutMS     int
	AuditCompressThreshold int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	reject, _ := strconv.ParseBool(getEnv("CASH_VARIANCE_REJECT", "false"))

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		DBMaxConns:             getInt("DB_MAX_CONNS", 20, 1),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		ReportCacheTTLSeconds:  getInt("REPORT_CACHE_TTL_SECONDS", 300, 0),
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		LogLevel:               strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AppEnv:                 strings.ToLower(getEnv("APP_ENV", "development")),
		Timezone:               getEnv("TIMEZONE", "UTC"),
		ShiftScope:             domain.ShiftScope(strings.ToLower(getEnv("SHIFT_SCOPE", string(domain.ShiftScopeSystem)))),
		CashVariancePolicy:     strings.TrimSpace(os.Getenv("CASH_VARIANCE_POLICY")),
		CashVarianceReject:     reject,
		OperationTimeoutMS:     getInt("OPERATION_TIMEOUT_MS", 5000, 0),
		AuditCompressThreshold: getInt("AUDIT_COMPRESS_THRESHOLD_BYTES", 4096, 1),
	}

	return cfg
}

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	if len(c.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	switch c.ShiftScope {
	case domain.ShiftScopeSystem, domain.ShiftScopeEmployee:
	default:
		return fmt.Errorf("SHIFT_SCOPE must be %q or %q, got %q", domain.ShiftScopeSystem, domain.ShiftScopeEmployee, c.ShiftScope)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.CashVarianceReject && c.CashVariancePolicy == "" {
		return fmt.Errorf("CASH_VARIANCE_REJECT requires CASH_VARIANCE_POLICY")
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location is the time zone periods are resolved in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c Config) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutMS) * time.Millisecond
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// getInt parses key, falling back when unset, malformed or below min.
func getInt(key string, fallback int, min int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < min {
		return fallback
	}
	return val
}
