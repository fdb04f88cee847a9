// Пакет provider — единый контракт физического хранения файлов
// (upload/download/delete/URL) и его реализации: локальный диск и S3.
// GCS и Azure зарезервированы в перечислении model.StorageProvider,
// но реализаций не имеют: реестр вернёт ErrNotConfigured.
package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

var (
	// ErrNotFound — объект с указанным ключом отсутствует.
	ErrNotFound = errors.New("объект не найден в хранилище")
	// ErrNotConfigured — провайдер не сконфигурирован.
	ErrNotConfigured = errors.New("провайдер хранилища не сконфигурирован")
	// ErrInvalidPath — ключ выходит за пределы хранилища или содержит недопустимые символы.
	ErrInvalidPath = errors.New("недопустимый путь в хранилище")
)

// UploadInput — параметры записи объекта.
// FileName должен быть уже уникальным: провайдер не обнаруживает коллизии.
type UploadInput struct {
	// FileID — идентификатор логического файла, которому принадлежит объект
	FileID      string
	Data        []byte
	FileName    string
	Category    string
	ContentType string
}

// UploadResult — расположение записанного объекта.
type UploadResult struct {
	// Path — ключ внутри провайдера, сохраняется в FileRecord.FilePath
	Path   string
	URL    string
	CDNURL *string
}

// Provider — контракт бэкенда хранения. Реализации безопасны
// для конкурентного использования.
type Provider interface {
	// Kind возвращает значение перечисления, под которым провайдер зарегистрирован.
	Kind() model.StorageProvider
	// Upload записывает объект.
	Upload(ctx context.Context, in UploadInput) (*UploadResult, error)
	// Download читает объект целиком. Отсутствующий ключ — ErrNotFound.
	Download(ctx context.Context, path string) ([]byte, error)
	// Delete удаляет объект. Отсутствующий ключ не является ошибкой.
	Delete(ctx context.Context, path string) error
	// URL возвращает URL объекта файла fileID, хранящегося по ключу path.
	// Путь файловой системы наружу не выдаётся.
	URL(fileID, path string) string
}

// CDNProvider — провайдер, умеющий отдавать URL через CDN.
type CDNProvider interface {
	// CDNURL возвращает CDN URL и true, если CDN сконфигурирован.
	CDNURL(path string) (string, bool)
}

// Presigner — провайдер, выдающий временные подписанные ссылки.
type Presigner interface {
	PresignedURL(ctx context.Context, path string, ttl time.Duration) (url string, expiresAt time.Time, err error)
}

// Object — физический объект, найденный при обходе хранилища.
type Object struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Lister — провайдер, умеющий перечислить свои объекты (для сверки orphan-файлов).
type Lister interface {
	List(ctx context.Context) ([]Object, error)
}

// Registry — таблица провайдеров по значению перечисления.
// Строится один раз при старте и далее только читается.
type Registry struct {
	providers   map[model.StorageProvider]Provider
	defaultKind model.StorageProvider
}

// NewRegistry создаёт реестр. Провайдер по умолчанию должен быть среди переданных.
func NewRegistry(defaultKind model.StorageProvider, providers ...Provider) (*Registry, error) {
	r := &Registry{
		providers:   make(map[model.StorageProvider]Provider, len(providers)),
		defaultKind: defaultKind,
	}
	for _, p := range providers {
		r.providers[p.Kind()] = p
	}
	if _, ok := r.providers[defaultKind]; !ok {
		return nil, fmt.Errorf("%w: провайдер по умолчанию %q", ErrNotConfigured, defaultKind)
	}
	return r, nil
}

// Get возвращает провайдер по значению перечисления.
func (r *Registry) Get(kind model.StorageProvider) (Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotConfigured, kind)
	}
	return p, nil
}

// DefaultKind возвращает провайдер по умолчанию.
func (r *Registry) DefaultKind() model.StorageProvider {
	return r.defaultKind
}

// Kinds возвращает сконфигурированные провайдеры в стабильном порядке.
func (r *Registry) Kinds() []model.StorageProvider {
	kinds := make([]model.StorageProvider, 0, len(r.providers))
	for k := range r.providers {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
