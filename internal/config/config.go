// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity (Supabase Auth / GoTrue)
	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string
	IdentityTimeout   time.Duration
	MFAFriendlyName   string

	// Authorization
	SuperadminEmail string
	GateFailClosed  bool

	// Session Cookie
	SessionCookiePrefix string
	CookieSecure        bool
	CookieDomain        string

	// Rate Limit
	LoginRateLimit int // req/min/IP

	// Cache
	RedisURL      string
	StatsCacheTTL time.Duration

	// Events
	AMQPURL      string
	AMQPExchange string

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string
	// TrustProxyHeaders がtrueの場合、X-Forwarded-For等からクライアントIPを取る
	TrustProxyHeaders bool

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SupabaseURL = strings.TrimRight(os.Getenv("SUPABASE_URL"), "/")
	if cfg.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}

	cfg.SupabaseAnonKey = os.Getenv("SUPABASE_ANON_KEY")
	if cfg.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SupabaseJWTSecret = os.Getenv("SUPABASE_JWT_SECRET")
	cfg.IdentityTimeout = getEnvDuration("IDENTITY_TIMEOUT", 10*time.Second)
	cfg.MFAFriendlyName = getEnvString("MFA_FRIENDLY_NAME", "EryAI Sales Dashboard")
	cfg.SuperadminEmail = os.Getenv("SUPERADMIN_EMAIL")
	cfg.GateFailClosed = getEnvBool("GATE_FAIL_CLOSED", false)
	cfg.SessionCookiePrefix = getEnvString("SESSION_COOKIE_PREFIX", "sb")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.LoginRateLimit = getEnvInt("LOGIN_RATE_LIMIT", 10)
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.StatsCacheTTL = getEnvDuration("STATS_CACHE_TTL", 60*time.Second)
	cfg.AMQPURL = os.Getenv("AMQP_URL")
	cfg.AMQPExchange = getEnvString("AMQP_EXCHANGE", "ex.leads")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.BaseURL)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
