// Package config centralizes how QCBoard reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration shared by the API server, the
// worker and the CLI.
type Config struct {
	Address        string
	LogLevel       string
	LogFormat      string
	SeedFile       string
	DataDir        string
	MaxFileSize    int64
	SigningSecret  []byte
	SignedURLTTL   time.Duration
	ProcessingPool int
	AllowedOrigins []string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool
	S3Bucket    string

	ProcoreClientID     string
	ProcoreClientSecret string
	ProcoreRedirectURI  string
	ProcoreLoginURL     string
	ProcoreAPIURL       string
	ProcoreTimeout      time.Duration
	FrontendURL         string
}

const (
	// 50 << 20 equals 50 * 2^20 bytes.
	defaultAddress     = ":8080"
	defaultMaxFileSize = 50 << 20 // 50 MiB
	defaultSignedTTL   = 5 * time.Minute
	defaultWorkerCount = 2
	defaultProcoreWait = 30 * time.Second
	defaultDataDir     = "data"
)

// Load reads configuration from environment variables falling back to
// defaults. Callers load .env first if they want one.
func Load() (*Config, error) {
	cfg := &Config{
		Address:        readEnv("QCBOARD_ADDRESS", defaultAddress),
		LogLevel:       readEnv("QCBOARD_LOG_LEVEL", "info"),
		LogFormat:      readEnv("QCBOARD_LOG_FORMAT", "console"),
		SeedFile:       readEnv("QCBOARD_SEED_FILE", ""),
		DataDir:        readEnv("QCBOARD_DATA_DIR", defaultDataDir),
		MaxFileSize:    parseInt64("QCBOARD_MAX_FILE_BYTES", defaultMaxFileSize),
		SigningSecret:  parseSecret("QCBOARD_SIGNING_SECRET"),
		SignedURLTTL:   parseDuration("QCBOARD_SIGNED_TTL", defaultSignedTTL),
		ProcessingPool: parseInt("QCBOARD_WORKERS", defaultWorkerCount),
		AllowedOrigins: parseList("QCBOARD_ALLOWED_ORIGINS", "*"),

		DatabaseURL:   readEnv("DATABASE_URL", ""),
		RedisAddr:     readEnv("REDIS_ADDR", ""),
		RedisPassword: readEnv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt("REDIS_DB", 0),

		S3Endpoint:  readEnv("S3_ENDPOINT", ""),
		S3AccessKey: readEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: readEnv("S3_SECRET_KEY", ""),
		S3Region:    readEnv("S3_REGION", "us-east-1"),
		S3UseSSL:    parseBool("S3_USE_SSL", false),
		S3Bucket:    readEnv("S3_BUCKET", "qcboard-drawings"),

		ProcoreClientID:     readEnv("PROCORE_CLIENT_ID", ""),
		ProcoreClientSecret: readEnv("PROCORE_CLIENT_SECRET", ""),
		ProcoreRedirectURI:  readEnv("PROCORE_REDIRECT_URI", "http://localhost:8080/api/procore/oauth/callback"),
		ProcoreLoginURL:     readEnv("PROCORE_LOGIN_URL", "https://login.procore.com"),
		ProcoreAPIURL:       readEnv("PROCORE_API_URL", "https://api.procore.com"),
		ProcoreTimeout:      parseDuration("PROCORE_TIMEOUT", defaultProcoreWait),
		FrontendURL:         readEnv("QCBOARD_FRONTEND_URL", "http://localhost:5173"),
	}
	if cfg.SigningSecret == nil {
		// Without a configured secret, signed URLs only survive until restart.
		cfg.SigningSecret = randomSecret()
	}
	if cfg.ProcessingPool <= 0 {
		cfg.ProcessingPool = defaultWorkerCount
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	if cfg.ProcoreTimeout <= 0 {
		cfg.ProcoreTimeout = defaultProcoreWait
	}
	return cfg, nil
}

// UseRedis reports whether asynq and the shared OAuth state store are
// available.
func (c *Config) UseRedis() bool { return c.RedisAddr != "" }

// UseS3 reports whether drawings go to MinIO/S3 instead of the data dir.
func (c *Config) UseS3() bool { return c.S3Endpoint != "" }

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseList(key, def string) []string {
	val := readEnv(key, def)
	out := strings.Split(val, ",")
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out
}

func parseInt64(key string, def int64) int64 {
	// Invalid input falls back to the default rather than failing startup.
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	// time.ParseDuration understands inputs like "5m" or "30s".
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte(hex.EncodeToString([]byte("fallbacksecret")))
	}
	return buf
}
