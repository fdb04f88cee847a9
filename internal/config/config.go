// Пакет config — загрузка и валидация конфигурации File Manager
// из переменных окружения (FM_*) и опционального TOML-файла.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые значения FM_DEFAULT_PROVIDER и FM_AUTH_MODE.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"

	AuthModeJWT    = "jwt"
	AuthModeHeader = "header"
)

// DefaultAllowedExtensions — расширения, разрешённые к загрузке по умолчанию.
var DefaultAllowedExtensions = []string{
	"pdf", "jpg", "jpeg", "png", "gif", "webp", "bmp", "tif", "tiff",
	"doc", "docx", "xls", "xlsx", "csv", "txt", "xml", "json", "zip",
}

// Config содержит все параметры конфигурации File Manager.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Хранилище ---

	// Корневая директория локального провайдера
	UploadDir string
	// Префикс server-relative URL для файлов локального провайдера
	LocalBaseURL string
	// Провайдер по умолчанию (local, s3)
	DefaultProvider string

	// S3-совместимое хранилище (провайдер s3 включается, если задан S3Bucket)
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	// Path-style адресация (MinIO)
	S3UsePathStyle bool
	// Origin CDN; если задан — URL файлов строятся через CDN
	S3CDNURL string
	// Время жизни presigned URL
	S3PresignTTL time.Duration

	// --- Загрузка ---

	// Максимальный размер файла в байтах
	MaxFileSize int64
	// Разрешённые расширения (без точки, в нижнем регистре)
	AllowedExtensions []string

	// --- Кэш метаданных ---

	CacheSize int
	CacheTTL  time.Duration

	// --- Очистка ---

	// Интервал фоновой очистки внутри serve (0 — выключена)
	CleanupInterval time.Duration
	// Сколько soft-deleted файл хранится до физического удаления
	CleanupGracePeriod time.Duration
	// Минимальный возраст файла на диске, чтобы считать его orphan
	OrphanMinAge time.Duration

	// --- Аутентификация ---

	// Режим: jwt (JWKS) или header (X-User-ID от API Gateway)
	AuthMode            string
	JWKSURL             string
	JWTLeeway           time.Duration
	JWKSRefreshInterval time.Duration
	JWKSClientTimeout   time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
	// Health path S3-совместимого хранилища (MinIO)
	DephealthS3HealthPath string
}

// Load загружает конфигурацию. Если задан FM_CONFIG_FILE, значения из TOML-файла
// используются как значения по умолчанию для незаданных переменных окружения.
//
//nolint:cyclop,funlen // линейная загрузка большого количества параметров
func Load() (*Config, error) {
	if path := os.Getenv("FM_CONFIG_FILE"); path != "" {
		if err := applyConfigFile(path); err != nil {
			return nil, fmt.Errorf("FM_CONFIG_FILE: %w", err)
		}
	}

	cfg := &Config{}
	var err error

	// --- Сервер ---

	if cfg.Port, err = getEnvInt("FM_PORT", 8010); err != nil {
		return nil, fmt.Errorf("FM_PORT: %w", err)
	}
	if cfg.LogLevel, err = parseLogLevel(getEnvDefault("FM_LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("FM_LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = getEnvDefault("FM_LOG_FORMAT", "json")
	if cfg.HTTPReadTimeout, err = getEnvDuration("FM_HTTP_READ_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("FM_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.HTTPWriteTimeout, err = getEnvDuration("FM_HTTP_WRITE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("FM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.HTTPIdleTimeout, err = getEnvDuration("FM_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("FM_HTTP_IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("FM_SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, fmt.Errorf("FM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("FM_DB_HOST", "localhost")
	if cfg.DBPort, err = getEnvInt("FM_DB_PORT", 5432); err != nil {
		return nil, fmt.Errorf("FM_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("FM_DB_NAME", "file_manager")
	cfg.DBUser = getEnvDefault("FM_DB_USER", "file_manager")
	cfg.DBPassword = os.Getenv("FM_DB_PASSWORD")
	cfg.DBSSLMode = getEnvDefault("FM_DB_SSL_MODE", "disable")

	// --- Хранилище ---

	cfg.UploadDir = getEnvDefault("FM_UPLOAD_DIR", "./uploads")
	cfg.LocalBaseURL = strings.TrimRight(getEnvDefault("FM_LOCAL_BASE_URL", "/api/v1/files"), "/")
	cfg.DefaultProvider = strings.ToLower(getEnvDefault("FM_DEFAULT_PROVIDER", ProviderLocal))

	cfg.S3Bucket = os.Getenv("FM_S3_BUCKET")
	cfg.S3Region = getEnvDefault("FM_S3_REGION", "ap-south-1")
	cfg.S3Endpoint = os.Getenv("FM_S3_ENDPOINT")
	cfg.S3AccessKey = os.Getenv("FM_S3_ACCESS_KEY")
	cfg.S3SecretKey = os.Getenv("FM_S3_SECRET_KEY")
	if cfg.S3UsePathStyle, err = getEnvBool("FM_S3_USE_PATH_STYLE", false); err != nil {
		return nil, fmt.Errorf("FM_S3_USE_PATH_STYLE: %w", err)
	}
	cfg.S3CDNURL = strings.TrimRight(os.Getenv("FM_S3_CDN_URL"), "/")
	if cfg.S3PresignTTL, err = getEnvDuration("FM_S3_PRESIGN_TTL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("FM_S3_PRESIGN_TTL: %w", err)
	}

	// --- Загрузка ---

	if cfg.MaxFileSize, err = getEnvInt64("FM_MAX_FILE_SIZE", 100*1024*1024); err != nil {
		return nil, fmt.Errorf("FM_MAX_FILE_SIZE: %w", err)
	}
	cfg.AllowedExtensions = normalizeExtensions(getEnvList("FM_ALLOWED_EXTENSIONS", DefaultAllowedExtensions))

	// --- Кэш ---

	if cfg.CacheSize, err = getEnvInt("FM_CACHE_SIZE", 10000); err != nil {
		return nil, fmt.Errorf("FM_CACHE_SIZE: %w", err)
	}
	if cfg.CacheTTL, err = getEnvDuration("FM_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, fmt.Errorf("FM_CACHE_TTL: %w", err)
	}

	// --- Очистка ---

	if cfg.CleanupInterval, err = getEnvDuration("FM_CLEANUP_INTERVAL", 0); err != nil {
		return nil, fmt.Errorf("FM_CLEANUP_INTERVAL: %w", err)
	}
	if cfg.CleanupGracePeriod, err = getEnvDuration("FM_CLEANUP_GRACE_PERIOD", 7*24*time.Hour); err != nil {
		return nil, fmt.Errorf("FM_CLEANUP_GRACE_PERIOD: %w", err)
	}
	if cfg.OrphanMinAge, err = getEnvDuration("FM_ORPHAN_MIN_AGE", 10*time.Minute); err != nil {
		return nil, fmt.Errorf("FM_ORPHAN_MIN_AGE: %w", err)
	}

	// --- Аутентификация ---

	cfg.AuthMode = strings.ToLower(getEnvDefault("FM_AUTH_MODE", AuthModeJWT))
	cfg.JWKSURL = os.Getenv("FM_JWKS_URL")
	if cfg.JWTLeeway, err = getEnvDuration("FM_JWT_LEEWAY", 5*time.Second); err != nil {
		return nil, fmt.Errorf("FM_JWT_LEEWAY: %w", err)
	}
	if cfg.JWKSRefreshInterval, err = getEnvDuration("FM_JWKS_REFRESH_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("FM_JWKS_REFRESH_INTERVAL: %w", err)
	}
	if cfg.JWKSClientTimeout, err = getEnvDuration("FM_JWKS_CLIENT_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("FM_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("FM_DEPHEALTH_GROUP", "smarttax")
	if cfg.DephealthCheckInterval, err = getEnvDuration("FM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("FM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthS3HealthPath = getEnvDefault("FM_DEPHEALTH_S3_HEALTH_PATH", "/minio/health/live")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность параметров.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("FM_PORT: значение %d вне допустимого диапазона 1-65535", c.Port)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("FM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", c.LogFormat)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("FM_MAX_FILE_SIZE: значение должно быть положительным, получено %d", c.MaxFileSize)
	}
	if len(c.AllowedExtensions) == 0 {
		return fmt.Errorf("FM_ALLOWED_EXTENSIONS: список не может быть пустым")
	}
	switch c.DefaultProvider {
	case ProviderLocal:
	case ProviderS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("FM_DEFAULT_PROVIDER=s3 требует FM_S3_BUCKET")
		}
	default:
		return fmt.Errorf("FM_DEFAULT_PROVIDER: недопустимое значение %q, допустимые: local, s3", c.DefaultProvider)
	}
	switch c.AuthMode {
	case AuthModeJWT:
		if c.JWKSURL == "" {
			return fmt.Errorf("FM_AUTH_MODE=jwt требует FM_JWKS_URL")
		}
	case AuthModeHeader:
	default:
		return fmt.Errorf("FM_AUTH_MODE: недопустимое значение %q, допустимые: jwt, header", c.AuthMode)
	}
	if c.CleanupGracePeriod < 0 || c.OrphanMinAge < 0 || c.CleanupInterval < 0 {
		return fmt.Errorf("интервалы очистки не могут быть отрицательными")
	}
	return nil
}

// S3Enabled возвращает true, если сконфигурирован провайдер s3.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// DatabaseDSN возвращает DSN для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL (для golang-migrate и метрик topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает bool значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 168h)", val)
	}
	return d, nil
}

// getEnvList возвращает список значений, разделённых запятой.
func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var result []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}

// normalizeExtensions приводит расширения к виду "pdf" (нижний регистр, без точки).
func normalizeExtensions(exts []string) []string {
	seen := make(map[string]bool, len(exts))
	result := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		result = append(result, e)
	}
	return result
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
