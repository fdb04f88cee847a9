package service

import (
	"testing"
	"time"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// TestFileCache_GetSet проверяет базовые операции Get/Set/Delete.
func TestFileCache_GetSet(t *testing.T) {
	cache := NewFileCache(100, 5*time.Minute)

	record := &model.FileRecord{
		ID:           "0b5e7c3a-1111-4c4c-9d9d-000000000001",
		OriginalName: "form16.pdf",
		FileSize:     1024,
		Tags:         []string{"fy2025"},
	}

	if _, ok := cache.Get(record.ID); ok {
		t.Fatal("ожидался cache miss для нового ключа")
	}

	cache.Set(record)
	got, ok := cache.Get(record.ID)
	if !ok {
		t.Fatal("ожидался cache hit после Set")
	}
	if got.OriginalName != "form16.pdf" {
		t.Errorf("OriginalName = %q, ожидался %q", got.OriginalName, "form16.pdf")
	}

	cache.Delete(record.ID)
	if _, ok := cache.Get(record.ID); ok {
		t.Error("ожидался cache miss после Delete")
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, ожидался 0", cache.Len())
	}
}

// TestFileCache_ReturnsCopies проверяет, что мутация результата не меняет кэш.
func TestFileCache_ReturnsCopies(t *testing.T) {
	cache := NewFileCache(10, time.Minute)
	record := &model.FileRecord{ID: "id-1", Tags: []string{"a"}}
	cache.Set(record)

	// Мутация исходной записи после Set
	record.OriginalName = "changed"
	record.Tags[0] = "changed"

	got, _ := cache.Get("id-1")
	if got.OriginalName != "" || got.Tags[0] != "a" {
		t.Errorf("кэш изменён через исходную запись: %+v", got)
	}

	got.IsDeleted = true
	again, _ := cache.Get("id-1")
	if again.IsDeleted {
		t.Error("кэш изменён через полученную копию")
	}
}

// TestFileCache_TTL проверяет вытеснение по времени жизни.
func TestFileCache_TTL(t *testing.T) {
	cache := NewFileCache(10, 50*time.Millisecond)
	cache.Set(&model.FileRecord{ID: "id-1"})

	time.Sleep(120 * time.Millisecond)

	if _, ok := cache.Get("id-1"); ok {
		t.Error("запись должна истечь по TTL")
	}
}

// TestFileCache_Eviction проверяет вытеснение LRU при переполнении.
func TestFileCache_Eviction(t *testing.T) {
	cache := NewFileCache(2, time.Minute)
	cache.Set(&model.FileRecord{ID: "a"})
	cache.Set(&model.FileRecord{ID: "b"})
	cache.Get("a")
	cache.Set(&model.FileRecord{ID: "c"})

	if _, ok := cache.Get("b"); ok {
		t.Error("ожидалось вытеснение наименее используемой записи b")
	}
	if _, ok := cache.Get("a"); !ok {
		t.Error("запись a должна остаться в кэше")
	}
}

// TestFileCache_Disabled проверяет, что size <= 0 отключает кэш.
func TestFileCache_Disabled(t *testing.T) {
	cache := NewFileCache(0, time.Minute)
	cache.Set(&model.FileRecord{ID: "id-1"})

	if _, ok := cache.Get("id-1"); ok {
		t.Error("отключённый кэш не должен возвращать записи")
	}
	cache.Delete("id-1")
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, ожидался 0", cache.Len())
	}
}
