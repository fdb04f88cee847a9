package model

import "time"

// AccessType — вид обращения к файлу в журнале аудита.
type AccessType string

const (
	AccessTypeUpload   AccessType = "upload"
	AccessTypeDownload AccessType = "download"
	AccessTypePreview  AccessType = "preview"
	AccessTypeDelete   AccessType = "delete"
	AccessTypeShare    AccessType = "share"
	AccessTypeRevoke   AccessType = "revoke"
)

// FileAccessLog — запись журнала аудита. Только добавляется.
// FileID == nil для неудачной загрузки, UserID == nil для системных операций.
type FileAccessLog struct {
	ID           int64      `json:"id"`
	FileID       *string    `json:"file_id,omitempty"`
	UserID       *int64     `json:"user_id,omitempty"`
	AccessType   AccessType `json:"access_type"`
	Success      bool       `json:"success"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	AccessedAt   time.Time  `json:"accessed_at"`
}

// FileVersion — физическая версия содержимого логического файла.
type FileVersion struct {
	ID            int64     `json:"id"`
	FileID        string    `json:"file_id"`
	VersionNumber int       `json:"version_number"`
	StoredName    string    `json:"stored_name"`
	FilePath      string    `json:"file_path"`
	FileSize      int64     `json:"file_size"`
	ChecksumMD5   string    `json:"checksum_md5"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// FileAnalytics — агрегаты по неудалённым файлам.
type FileAnalytics struct {
	TotalFiles   int64            `json:"total_files"`
	TotalSize    int64            `json:"total_size"`
	ByCategory   map[string]int64 `json:"by_category"`
	ByType       map[string]int64 `json:"by_type"`
	UploadTrends []UploadTrend    `json:"upload_trends"`
	TopUploaders []UploaderStat   `json:"top_uploaders"`
}

// UploadTrend — количество загрузок за день.
type UploadTrend struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
	Size  int64  `json:"size"`
}

// UploaderStat — статистика загрузок одного пользователя.
type UploaderStat struct {
	UserID    int64 `json:"user_id"`
	Count     int64 `json:"count"`
	TotalSize int64 `json:"total_size"`
}
