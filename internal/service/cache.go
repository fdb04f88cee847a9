// Пакет service — бизнес-логика File Manager: загрузка, скачивание,
// разрешения, аналитика, версии и задание очистки.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей файлов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fm_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей файлов.",
	})
)

// FileCache — LRU-кэш записей файлов с TTL. Per-instance: после изменений
// в другом экземпляре запись может устареть не дольше, чем на TTL.
// Хранит и отдаёт копии, чтобы вызывающий код не мутировал кэш.
type FileCache struct {
	cache *expirable.LRU[string, *model.FileRecord]
}

// NewFileCache создаёт кэш. size <= 0 отключает кэширование.
func NewFileCache(size int, ttl time.Duration) *FileCache {
	if size <= 0 {
		return &FileCache{}
	}
	return &FileCache{cache: expirable.NewLRU[string, *model.FileRecord](size, nil, ttl)}
}

// Get возвращает копию записи и true при hit.
func (c *FileCache) Get(fileID string) (*model.FileRecord, bool) {
	if c.cache == nil {
		return nil, false
	}
	val, ok := c.cache.Get(fileID)
	if ok {
		cacheHitsTotal.Inc()
		return val.Clone(), true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись.
func (c *FileCache) Set(record *model.FileRecord) {
	if c.cache == nil {
		return
	}
	c.cache.Add(record.ID, record.Clone())
}

// Delete удаляет запись (инвалидация при удалении файла).
func (c *FileCache) Delete(fileID string) {
	if c.cache == nil {
		return
	}
	c.cache.Remove(fileID)
}

// Len возвращает количество записей.
func (c *FileCache) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
