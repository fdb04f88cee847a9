// Пакет model — доменные модели File Manager.
package model

import (
	"slices"
	"time"
)

// StorageProvider — бэкенд физического хранения файла.
type StorageProvider string

const (
	// ProviderLocal — локальный диск.
	ProviderLocal StorageProvider = "local"
	// ProviderS3 — S3-совместимое объектное хранилище.
	ProviderS3 StorageProvider = "s3"
	// ProviderGCS — Google Cloud Storage (зарезервировано).
	ProviderGCS StorageProvider = "gcs"
	// ProviderAzure — Azure Blob Storage (зарезервировано).
	ProviderAzure StorageProvider = "azure"
)

// Valid проверяет, что значение входит в перечисление провайдеров.
func (p StorageProvider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderS3, ProviderGCS, ProviderAzure:
		return true
	}
	return false
}

// AccessLevel — уровень доступа к файлу.
type AccessLevel string

const (
	AccessPublic     AccessLevel = "public"
	AccessPrivate    AccessLevel = "private"
	AccessRestricted AccessLevel = "restricted"
)

// Valid проверяет, что значение входит в перечисление уровней доступа.
func (a AccessLevel) Valid() bool {
	switch a {
	case AccessPublic, AccessPrivate, AccessRestricted:
		return true
	}
	return false
}

// Известные бизнес-категории. Список не закрытый: категория — свободная строка
// из букв, цифр, '_' и '-'.
const (
	CategoryTaxDocument      = "TAX_DOCUMENT"
	CategoryForm16           = "FORM_16"
	CategoryInvestmentProof  = "INVESTMENT_PROOF"
	CategoryIdentityDocument = "IDENTITY_DOCUMENT"
	CategoryBankStatement    = "BANK_STATEMENT"
	CategoryOther            = "OTHER"
)

// FileRecord — метаданные одного логического файла.
// StoredName, FilePath и контрольные суммы не меняются после создания.
type FileRecord struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	StoredName   string `json:"stored_name"`
	// FilePath — ключ внутри провайдера (local: category/stored_name)
	FilePath        string          `json:"file_path"`
	StorageProvider StorageProvider `json:"storage_provider"`
	CDNURL          *string         `json:"cdn_url,omitempty"`

	FileType     FileType `json:"file_type"`
	FileCategory string   `json:"file_category"`
	MimeType     string   `json:"mime_type"`
	FileSize     int64    `json:"file_size"`

	ChecksumMD5    string `json:"checksum_md5"`
	ChecksumSHA256 string `json:"checksum_sha256"`

	IsPublic    bool        `json:"is_public"`
	AccessLevel AccessLevel `json:"access_level"`

	UploadedBy       int64   `json:"uploaded_by"`
	OrganizationID   *string `json:"organization_id,omitempty"`
	ParentEntityType *string `json:"parent_entity_type,omitempty"`
	ParentEntityID   *string `json:"parent_entity_id,omitempty"`

	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *int64     `json:"deleted_by,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	Metadata FileMetadata `json:"metadata"`
	Tags     []string     `json:"tags"`
}

// IsOwner возвращает true, если userID загрузил файл.
func (f *FileRecord) IsOwner(userID int64) bool {
	return f.UploadedBy == userID
}

// IsExpired проверяет, истёк ли TTL файла.
func (f *FileRecord) IsExpired(now time.Time) bool {
	return f.ExpiresAt != nil && f.ExpiresAt.Before(now)
}

// Clone возвращает независимую копию записи (для кэша).
func (f *FileRecord) Clone() *FileRecord {
	c := *f
	c.Tags = slices.Clone(f.Tags)
	c.Metadata = f.Metadata.Clone()
	return &c
}
