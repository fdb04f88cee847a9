package model

import (
	"encoding/json"
	"maps"
)

// MetadataSchemaVersion — версия формата JSON-колонки metadata.
// Увеличивается при несовместимом изменении структуры FileMetadata.
const MetadataSchemaVersion = 1

// MetadataKind — дискриминатор FileMetadata.
type MetadataKind string

const (
	MetadataGeneric  MetadataKind = "generic"
	MetadataImage    MetadataKind = "image"
	MetadataDocument MetadataKind = "document"
)

// ImageMetadata — атрибуты растрового изображения.
type ImageMetadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// DocumentMetadata — атрибуты документа.
type DocumentMetadata struct {
	// PDFVersion — версия из заголовка %PDF-x.y
	PDFVersion    string `json:"pdf_version,omitempty"`
	PageCount     *int   `json:"page_count,omitempty"`
	ExtractedText string `json:"extracted_text,omitempty"`
}

// FileMetadata — размеченное объединение форматно-зависимых атрибутов.
// Заполняется ровно одно из Image/Document в соответствии с Kind;
// Attributes — произвольные строковые пары, переданные клиентом.
type FileMetadata struct {
	Version    int               `json:"version"`
	Kind       MetadataKind      `json:"kind"`
	Image      *ImageMetadata    `json:"image,omitempty"`
	Document   *DocumentMetadata `json:"document,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewGenericMetadata создаёт метаданные без форматно-зависимой части.
func NewGenericMetadata(attrs map[string]string) FileMetadata {
	return FileMetadata{
		Version:    MetadataSchemaVersion,
		Kind:       MetadataGeneric,
		Attributes: attrs,
	}
}

// Clone возвращает глубокую копию.
func (m FileMetadata) Clone() FileMetadata {
	c := m
	if m.Image != nil {
		img := *m.Image
		c.Image = &img
	}
	if m.Document != nil {
		doc := *m.Document
		if m.Document.PageCount != nil {
			n := *m.Document.PageCount
			doc.PageCount = &n
		}
		c.Document = &doc
	}
	c.Attributes = maps.Clone(m.Attributes)
	return c
}

// MarshalMetadata сериализует метаданные для JSONB-колонки.
func MarshalMetadata(m FileMetadata) ([]byte, error) {
	if m.Version == 0 {
		m.Version = MetadataSchemaVersion
	}
	if m.Kind == "" {
		m.Kind = MetadataGeneric
	}
	return json.Marshal(m)
}

// UnmarshalMetadata разбирает JSONB-колонку. Пустое значение даёт generic-метаданные.
func UnmarshalMetadata(data []byte) (FileMetadata, error) {
	if len(data) == 0 {
		return NewGenericMetadata(nil), nil
	}
	var m FileMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return FileMetadata{}, err
	}
	if m.Kind == "" {
		m.Kind = MetadataGeneric
	}
	return m, nil
}
