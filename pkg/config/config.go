package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Memos    MemosConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MemosConfig governs attachment storage, workflow retries and document generation.
type MemosConfig struct {
	AttachmentsDir       string
	DocumentsDir         string
	MaxFileSizeBytes     int64
	MaxFilesPerRequest   int
	AllowedMIMEs         []string
	SignedURLSecret      string
	SignedURLTTL         time.Duration
	RetryOnConflict      bool
	DocumentCacheEnabled bool
	DocumentCacheTTL     time.Duration
	ArchiveEnabled       bool
	ArchiveWorkers       int
	ArchiveRetries       int
	TemplateCatalogPath  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxFileSize := v.GetInt64("MEMO_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	cfg.Memos = MemosConfig{
		AttachmentsDir:       v.GetString("MEMO_ATTACHMENTS_DIR"),
		DocumentsDir:         v.GetString("MEMO_DOCUMENTS_DIR"),
		MaxFileSizeBytes:     maxFileSize,
		MaxFilesPerRequest:   v.GetInt("MEMO_MAX_FILES"),
		AllowedMIMEs:         splitAndTrim(v.GetString("MEMO_ALLOWED_MIME_TYPES")),
		SignedURLSecret:      v.GetString("MEMO_SIGNED_URL_SECRET"),
		SignedURLTTL:         parseDuration(v.GetString("MEMO_SIGNED_URL_TTL"), 30*time.Minute),
		RetryOnConflict:      v.GetBool("MEMO_RETRY_ON_CONFLICT"),
		DocumentCacheEnabled: v.GetBool("MEMO_DOCUMENT_CACHE_ENABLED"),
		DocumentCacheTTL:     parseDuration(v.GetString("MEMO_DOCUMENT_CACHE_TTL"), time.Hour),
		ArchiveEnabled:       v.GetBool("MEMO_ARCHIVE_ENABLED"),
		ArchiveWorkers:       v.GetInt("MEMO_ARCHIVE_WORKERS"),
		ArchiveRetries:       v.GetInt("MEMO_ARCHIVE_RETRIES"),
		TemplateCatalogPath:  v.GetString("MEMO_TEMPLATE_CATALOG"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "office_memo")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MEMO_ATTACHMENTS_DIR", "./attachments")
	v.SetDefault("MEMO_DOCUMENTS_DIR", "./documents")
	v.SetDefault("MEMO_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("MEMO_MAX_FILES", 10)
	v.SetDefault("MEMO_ALLOWED_MIME_TYPES", "application/pdf,image/png,image/jpeg,application/vnd.openxmlformats-officedocument.wordprocessingml.document,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	v.SetDefault("MEMO_SIGNED_URL_SECRET", "dev_memo_secret")
	v.SetDefault("MEMO_SIGNED_URL_TTL", "30m")
	v.SetDefault("MEMO_RETRY_ON_CONFLICT", true)
	v.SetDefault("MEMO_DOCUMENT_CACHE_ENABLED", false)
	v.SetDefault("MEMO_DOCUMENT_CACHE_TTL", "1h")
	v.SetDefault("MEMO_ARCHIVE_ENABLED", false)
	v.SetDefault("MEMO_ARCHIVE_WORKERS", 1)
	v.SetDefault("MEMO_ARCHIVE_RETRIES", 3)
	v.SetDefault("MEMO_TEMPLATE_CATALOG", "")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
