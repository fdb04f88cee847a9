package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// LocalProvider — хранение на локальном диске: <root>/<category>/<storedName>.
type LocalProvider struct {
	// root — корневая директория загрузок (FM_UPLOAD_DIR)
	root string
	// baseURL — префикс API файлов; URL объекта — <baseURL>/<fileID>/download
	baseURL string
}

// NewLocal создаёт локальный провайдер. Создаёт корневую директорию,
// если она не существует (операция идемпотентна).
func NewLocal(root, baseURL string) (*LocalProvider, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию загрузок %s: %w", root, err)
	}
	return &LocalProvider{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Kind возвращает model.ProviderLocal.
func (p *LocalProvider) Kind() model.StorageProvider {
	return model.ProviderLocal
}

// Root возвращает корневую директорию.
func (p *LocalProvider) Root() string {
	return p.root
}

// Upload записывает данные в <root>/<category>/<fileName>.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (p *LocalProvider) Upload(_ context.Context, in UploadInput) (*UploadResult, error) {
	if !isSafeSegment(in.Category) || !isSafeSegment(in.FileName) {
		return nil, fmt.Errorf("%w: %s/%s", ErrInvalidPath, in.Category, in.FileName)
	}

	// MkdirAll безопасен при гонке нескольких загрузок в одну категорию
	dir := filepath.Join(p.root, in.Category)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания директории категории: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+in.FileName+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(in.Data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, in.FileName)); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	key := path.Join(in.Category, in.FileName)
	return &UploadResult{
		Path: key,
		URL:  p.URL(in.FileID, key),
	}, nil
}

// Download читает файл целиком.
func (p *LocalProvider) Download(_ context.Context, key string) ([]byte, error) {
	fullPath, err := p.resolve(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", key, err)
	}
	return data, nil
}

// Delete удаляет файл с диска. Возвращает nil, если файл уже не существует.
func (p *LocalProvider) Delete(_ context.Context, key string) error {
	fullPath, err := p.resolve(key)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %w", key, err)
	}
	return nil
}

// URL возвращает server-relative endpoint скачивания файла. Доступ по нему
// проходит проверку прав; ключ объекта в URL не попадает.
func (p *LocalProvider) URL(fileID, _ string) string {
	return p.baseURL + "/" + url.PathEscape(fileID) + "/download"
}

// List обходит дерево загрузок, включая поддиректории категорий.
// Служебные (.*) и временные (*.tmp) файлы пропускаются.
func (p *LocalProvider) List(ctx context.Context) ([]Object, error) {
	var objects []Object

	err := filepath.WalkDir(p.root, func(fullPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Файл мог исчезнуть во время обхода
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if fullPath != p.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		rel, err := filepath.Rel(p.root, fullPath)
		if err != nil {
			return err
		}
		objects = append(objects, Object{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода директории загрузок: %w", err)
	}
	return objects, nil
}

// CheckReady проверяет, что корневая директория доступна на запись.
func (p *LocalProvider) CheckReady() (status, message string) {
	testFile := filepath.Join(p.root, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return "fail", "директория загрузок недоступна для записи"
	}
	_ = os.Remove(testFile)
	return "ok", "директория загрузок доступна"
}

// resolve преобразует ключ в абсолютный путь, не выходящий за пределы root.
func (p *LocalProvider) resolve(key string) (string, error) {
	native := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(native) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	return filepath.Join(p.root, native), nil
}

// isSafeSegment проверяет, что строка — один безопасный сегмент пути.
func isSafeSegment(s string) bool {
	if s == "" || s == "." || s == ".." || strings.HasPrefix(s, ".") {
		return false
	}
	return !strings.ContainsAny(s, `/\`+"\x00")
}

var (
	_ Provider = (*LocalProvider)(nil)
	_ Lister   = (*LocalProvider)(nil)
)
