package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

// allFMKeys — все переменные окружения FM_*, которые читает Load().
var allFMKeys = []string{
	"FM_CONFIG_FILE", "FM_PORT", "FM_LOG_LEVEL", "FM_LOG_FORMAT",
	"FM_HTTP_READ_TIMEOUT", "FM_HTTP_WRITE_TIMEOUT", "FM_HTTP_IDLE_TIMEOUT", "FM_SHUTDOWN_TIMEOUT",
	"FM_DB_HOST", "FM_DB_PORT", "FM_DB_NAME", "FM_DB_USER", "FM_DB_PASSWORD", "FM_DB_SSL_MODE",
	"FM_UPLOAD_DIR", "FM_LOCAL_BASE_URL", "FM_DEFAULT_PROVIDER",
	"FM_S3_BUCKET", "FM_S3_REGION", "FM_S3_ENDPOINT", "FM_S3_ACCESS_KEY", "FM_S3_SECRET_KEY",
	"FM_S3_USE_PATH_STYLE", "FM_S3_CDN_URL", "FM_S3_PRESIGN_TTL",
	"FM_MAX_FILE_SIZE", "FM_ALLOWED_EXTENSIONS", "FM_CACHE_SIZE", "FM_CACHE_TTL",
	"FM_CLEANUP_INTERVAL", "FM_CLEANUP_GRACE_PERIOD", "FM_ORPHAN_MIN_AGE",
	"FM_AUTH_MODE", "FM_JWKS_URL", "FM_JWT_LEEWAY", "FM_JWKS_REFRESH_INTERVAL", "FM_JWKS_CLIENT_TIMEOUT",
	"FM_DEPHEALTH_GROUP", "FM_DEPHEALTH_CHECK_INTERVAL", "FM_DEPHEALTH_S3_HEALTH_PATH",
}

// clearFMEnv очищает все FM_* переменные на время теста.
// t.Setenv восстанавливает исходные значения после завершения теста.
func clearFMEnv(t *testing.T) {
	t.Helper()
	for _, k := range allFMKeys {
		t.Setenv(k, "")
	}
}

// TestLoad_Defaults проверяет значения по умолчанию (режим header не требует JWKS).
func TestLoad_Defaults(t *testing.T) {
	clearFMEnv(t)
	t.Setenv("FM_AUTH_MODE", "header")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}

	if cfg.Port != 8010 {
		t.Errorf("Port = %d, ожидался 8010", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидался info", cfg.LogLevel)
	}
	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("MaxFileSize = %d, ожидался 100 MiB", cfg.MaxFileSize)
	}
	if cfg.DefaultProvider != ProviderLocal {
		t.Errorf("DefaultProvider = %q, ожидался local", cfg.DefaultProvider)
	}
	if cfg.CleanupGracePeriod != 7*24*time.Hour {
		t.Errorf("CleanupGracePeriod = %v, ожидалось 168h", cfg.CleanupGracePeriod)
	}
	if cfg.S3Enabled() {
		t.Error("S3Enabled() = true без FM_S3_BUCKET")
	}
	if len(cfg.AllowedExtensions) != len(DefaultAllowedExtensions) {
		t.Errorf("AllowedExtensions = %v, ожидался список по умолчанию", cfg.AllowedExtensions)
	}
	for _, ext := range []string{"tif", "tiff"} {
		if !slices.Contains(cfg.AllowedExtensions, ext) {
			t.Errorf("AllowedExtensions = %v, ожидалось расширение %s", cfg.AllowedExtensions, ext)
		}
	}
	if cfg.OrphanMinAge != 10*time.Minute {
		t.Errorf("OrphanMinAge = %v, ожидалось 10m", cfg.OrphanMinAge)
	}
	if cfg.LocalBaseURL != "/api/v1/files" {
		t.Errorf("LocalBaseURL = %q, ожидался /api/v1/files", cfg.LocalBaseURL)
	}
}

// TestLoad_CustomValues проверяет чтение заданных переменных окружения.
func TestLoad_CustomValues(t *testing.T) {
	clearFMEnv(t)
	t.Setenv("FM_PORT", "9000")
	t.Setenv("FM_LOG_LEVEL", "debug")
	t.Setenv("FM_LOG_FORMAT", "text")
	t.Setenv("FM_MAX_FILE_SIZE", "2048")
	t.Setenv("FM_ALLOWED_EXTENSIONS", ".PDF, png,pdf")
	t.Setenv("FM_DEFAULT_PROVIDER", "S3")
	t.Setenv("FM_S3_BUCKET", "tax-docs")
	t.Setenv("FM_S3_CDN_URL", "https://cdn.example.com/")
	t.Setenv("FM_AUTH_MODE", "jwt")
	t.Setenv("FM_JWKS_URL", "https://idp.example.com/jwks")
	t.Setenv("FM_CLEANUP_INTERVAL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, ожидался 9000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидался debug", cfg.LogLevel)
	}
	if cfg.MaxFileSize != 2048 {
		t.Errorf("MaxFileSize = %d, ожидался 2048", cfg.MaxFileSize)
	}
	if len(cfg.AllowedExtensions) != 2 || cfg.AllowedExtensions[0] != "pdf" || cfg.AllowedExtensions[1] != "png" {
		t.Errorf("AllowedExtensions = %v, ожидался [pdf png]", cfg.AllowedExtensions)
	}
	if cfg.DefaultProvider != ProviderS3 {
		t.Errorf("DefaultProvider = %q, ожидался s3", cfg.DefaultProvider)
	}
	if cfg.S3CDNURL != "https://cdn.example.com" {
		t.Errorf("S3CDNURL = %q, ожидался без завершающего /", cfg.S3CDNURL)
	}
	if cfg.CleanupInterval != time.Hour {
		t.Errorf("CleanupInterval = %v, ожидался 1h", cfg.CleanupInterval)
	}
}

// TestLoad_InvalidValues проверяет ошибки валидации.
func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"некорректный порт", map[string]string{"FM_PORT": "abc"}},
		{"порт вне диапазона", map[string]string{"FM_PORT": "70000"}},
		{"некорректный уровень логов", map[string]string{"FM_LOG_LEVEL": "trace"}},
		{"некорректный формат логов", map[string]string{"FM_LOG_FORMAT": "xml"}},
		{"нулевой лимит размера", map[string]string{"FM_MAX_FILE_SIZE": "0"}},
		{"неизвестный провайдер", map[string]string{"FM_DEFAULT_PROVIDER": "gcs"}},
		{"s3 без bucket", map[string]string{"FM_DEFAULT_PROVIDER": "s3"}},
		{"jwt без JWKS", map[string]string{"FM_AUTH_MODE": "jwt"}},
		{"неизвестный режим auth", map[string]string{"FM_AUTH_MODE": "basic"}},
		{"некорректная длительность", map[string]string{"FM_CLEANUP_GRACE_PERIOD": "week"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearFMEnv(t)
			t.Setenv("FM_AUTH_MODE", "header")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := Load(); err == nil {
				t.Errorf("Load() должна вернуть ошибку для %v", tt.env)
			}
		})
	}
}

// TestLoad_ConfigFile проверяет TOML-файл и приоритет переменных окружения.
func TestLoad_ConfigFile(t *testing.T) {
	clearFMEnv(t)

	path := filepath.Join(t.TempDir(), "file-manager.toml")
	content := `
auth_mode = "header"
upload_dir = "/srv/uploads"
max_file_size = 4096
allowed_extensions = ["pdf", "png"]
port = 8011
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("запись конфиг-файла: %v", err)
	}

	t.Setenv("FM_CONFIG_FILE", path)
	t.Setenv("FM_PORT", "8012")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}

	if cfg.UploadDir != "/srv/uploads" {
		t.Errorf("UploadDir = %q, ожидался /srv/uploads", cfg.UploadDir)
	}
	if cfg.MaxFileSize != 4096 {
		t.Errorf("MaxFileSize = %d, ожидался 4096", cfg.MaxFileSize)
	}
	if len(cfg.AllowedExtensions) != 2 {
		t.Errorf("AllowedExtensions = %v, ожидалось 2 значения", cfg.AllowedExtensions)
	}
	// Переменная окружения важнее файла
	if cfg.Port != 8012 {
		t.Errorf("Port = %d, ожидался 8012 из окружения", cfg.Port)
	}
}

// TestLoad_ConfigFileMissing проверяет ошибку для несуществующего файла.
func TestLoad_ConfigFileMissing(t *testing.T) {
	clearFMEnv(t)
	t.Setenv("FM_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	if _, err := Load(); err == nil {
		t.Fatal("Load() должна вернуть ошибку для отсутствующего файла")
	}
}

// TestDatabaseURL проверяет формирование URL и DSN.
func TestDatabaseURL(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: 5433, DBName: "fm", DBUser: "u", DBPassword: "p", DBSSLMode: "disable",
	}
	if got := cfg.DatabaseURL(); got != "postgres://u:p@db:5433/fm?sslmode=disable" {
		t.Errorf("DatabaseURL() = %q", got)
	}
	if got := cfg.DatabaseDSN(); got != "host=db port=5433 dbname=fm user=u password=p sslmode=disable" {
		t.Errorf("DatabaseDSN() = %q", got)
	}
}
