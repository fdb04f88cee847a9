package service

import (
	"errors"
	"fmt"
)

// Ошибки сервисного слоя. Оборачиваются через fmt.Errorf("%w: ...", ErrX).
var (
	// ErrValidation — входные данные нарушают структурное правило.
	ErrValidation = errors.New("ошибка валидации")
	// ErrFileTooLarge — файл превышает допустимый размер. Является ErrValidation.
	ErrFileTooLarge = fmt.Errorf("%w: файл превышает допустимый размер", ErrValidation)
	// ErrNotFound — файл не существует или скрыт удалением.
	ErrNotFound = errors.New("файл не найден")
	// ErrAccessDenied — у вызывающего нет нужного разрешения на файл.
	ErrAccessDenied = errors.New("доступ запрещён")
	// ErrStorageProvider — бэкенд хранения недоступен, не сконфигурирован или вернул ошибку.
	ErrStorageProvider = errors.New("ошибка хранилища")
	// ErrUpload — непредвиденная ошибка в конвейере загрузки.
	ErrUpload = errors.New("ошибка загрузки файла")
	// ErrCleanupRunning — очистка уже выполняется (в этом или другом процессе).
	ErrCleanupRunning = errors.New("очистка уже выполняется")
)

// IsClientError возвращает true для ошибок, вызванных клиентом (4xx).
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccessDenied)
}
