package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// applyConfigFile читает TOML-файл и выставляет FM_* переменные окружения,
// которые ещё не заданы. Ключи файла — имена переменных без префикса
// в нижнем регистре: upload_dir = "/data" → FM_UPLOAD_DIR.
// Непустые переменные окружения всегда имеют приоритет над файлом.
func applyConfigFile(path string) error {
	var values map[string]any
	if _, err := toml.DecodeFile(path, &values); err != nil {
		return fmt.Errorf("чтение %s: %w", path, err)
	}

	for key, raw := range values {
		envKey := "FM_" + strings.ToUpper(key)
		if os.Getenv(envKey) != "" {
			continue
		}
		val, err := tomlValueToEnv(raw)
		if err != nil {
			return fmt.Errorf("ключ %q: %w", key, err)
		}
		if err := os.Setenv(envKey, val); err != nil {
			return fmt.Errorf("установка %s: %w", envKey, err)
		}
	}
	return nil
}

// tomlValueToEnv преобразует значение TOML в строковое представление переменной окружения.
// Массивы склеиваются через запятую; вложенные таблицы не поддерживаются.
func tomlValueToEnv(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case int64, float64, bool:
		return fmt.Sprint(v), nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			s, err := tomlValueToEnv(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", fmt.Errorf("неподдерживаемый тип значения %T", raw)
	}
}
