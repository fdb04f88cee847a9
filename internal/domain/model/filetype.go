package model

import (
	"path/filepath"
	"strings"
)

// FileType — тип файла, определяемый по расширению.
type FileType string

const (
	FileTypePDF  FileType = "PDF"
	FileTypeJPEG FileType = "JPEG"
	FileTypePNG  FileType = "PNG"
	FileTypeGIF  FileType = "GIF"
	FileTypeWEBP FileType = "WEBP"
	FileTypeBMP  FileType = "BMP"
	FileTypeTIFF FileType = "TIFF"
	FileTypeDOC  FileType = "DOC"
	FileTypeDOCX FileType = "DOCX"
	FileTypeXLS  FileType = "XLS"
	FileTypeXLSX FileType = "XLSX"
	FileTypeCSV  FileType = "CSV"
	FileTypeXML  FileType = "XML"
	FileTypeJSON FileType = "JSON"
	FileTypeZIP  FileType = "ZIP"
	// FileTypeText — также тип по умолчанию для нераспознанных расширений.
	FileTypeText FileType = "TXT"
)

// fileTypesByExt — фиксированная таблица расширение → тип.
var fileTypesByExt = map[string]FileType{
	"pdf":  FileTypePDF,
	"jpg":  FileTypeJPEG,
	"jpeg": FileTypeJPEG,
	"png":  FileTypePNG,
	"gif":  FileTypeGIF,
	"webp": FileTypeWEBP,
	"bmp":  FileTypeBMP,
	"tif":  FileTypeTIFF,
	"tiff": FileTypeTIFF,
	"doc":  FileTypeDOC,
	"docx": FileTypeDOCX,
	"xls":  FileTypeXLS,
	"xlsx": FileTypeXLSX,
	"csv":  FileTypeCSV,
	"txt":  FileTypeText,
	"xml":  FileTypeXML,
	"json": FileTypeJSON,
	"zip":  FileTypeZIP,
}

// Extension возвращает расширение имени файла в нижнем регистре без точки.
func Extension(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

// FileTypeFromName определяет тип файла по расширению.
// Нераспознанное расширение даёт FileTypeText.
func FileTypeFromName(fileName string) FileType {
	if t, ok := fileTypesByExt[Extension(fileName)]; ok {
		return t
	}
	return FileTypeText
}

// IsImage возвращает true для растровых изображений.
func (t FileType) IsImage() bool {
	switch t {
	case FileTypeJPEG, FileTypePNG, FileTypeGIF, FileTypeWEBP, FileTypeBMP, FileTypeTIFF:
		return true
	}
	return false
}
