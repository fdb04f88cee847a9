// Пакет extract — контрольные суммы и форматно-зависимые метаданные
// содержимого загружаемого файла.
package extract

import (
	"bytes"
	"crypto/md5" //nolint:gosec // MD5 хранится для сверки, не для безопасности
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"regexp"

	// Декодеры для image.DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

// Checksums — контрольные суммы содержимого (hex, нижний регистр).
type Checksums struct {
	MD5    string
	SHA256 string
}

// ComputeChecksums вычисляет MD5 и SHA-256 за один проход.
func ComputeChecksums(data []byte) Checksums {
	md5h := md5.New() //nolint:gosec // см. импорт
	shah := sha256.New()
	w := io.MultiWriter(md5h, shah)
	_, _ = w.Write(data)

	return Checksums{
		MD5:    hex.EncodeToString(md5h.Sum(nil)),
		SHA256: hex.EncodeToString(shah.Sum(nil)),
	}
}

var (
	pdfHeader = regexp.MustCompile(`^%PDF-(\d\.\d)`)
	// Страницы в несжатом дереве объектов; объектные потоки не разбираются.
	pdfPage = regexp.MustCompile(`/Type\s*/Page[^s]`)
)

// Metadata извлекает метаданные по типу файла. attrs — пользовательские
// атрибуты, переносятся как есть. При ошибке разбора возвращаются
// generic-метаданные вместе с ошибкой: вызывающий код решает, критична ли она.
func Metadata(data []byte, fileType model.FileType, attrs map[string]string) (model.FileMetadata, error) {
	meta := model.NewGenericMetadata(attrs)

	switch {
	case fileType.IsImage():
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return meta, fmt.Errorf("чтение заголовка изображения: %w", err)
		}
		meta.Kind = model.MetadataImage
		meta.Image = &model.ImageMetadata{
			Width:  cfg.Width,
			Height: cfg.Height,
			Format: format,
		}

	case fileType == model.FileTypePDF:
		m := pdfHeader.FindSubmatch(data)
		if m == nil {
			return meta, fmt.Errorf("отсутствует заголовок PDF")
		}
		doc := &model.DocumentMetadata{PDFVersion: string(m[1])}
		if n := len(pdfPage.FindAllIndex(data, -1)); n > 0 {
			doc.PageCount = &n
		}
		meta.Kind = model.MetadataDocument
		meta.Document = doc
	}

	return meta, nil
}
