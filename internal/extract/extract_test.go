package extract

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
)

func TestComputeChecksums(t *testing.T) {
	// Эталонные значения для "hello"
	got := ComputeChecksums([]byte("hello"))
	if got.MD5 != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("MD5 = %s", got.MD5)
	}
	if got.SHA256 != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("SHA256 = %s", got.SHA256)
	}
}

func TestComputeChecksums_Stable(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 4096)
	a := ComputeChecksums(data)
	b := ComputeChecksums(bytes.Clone(data))
	if a != b {
		t.Errorf("контрольные суммы одинакового содержимого различаются: %+v != %+v", a, b)
	}
}

func TestMetadata_Image(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	meta, err := Metadata(buf.Bytes(), model.FileTypePNG, map[string]string{"source": "scan"})
	if err != nil {
		t.Fatalf("Metadata() ошибка: %v", err)
	}
	if meta.Kind != model.MetadataImage || meta.Image == nil {
		t.Fatalf("Kind = %q, Image = %v, ожидались image-метаданные", meta.Kind, meta.Image)
	}
	if meta.Image.Width != 64 || meta.Image.Height != 32 || meta.Image.Format != "png" {
		t.Errorf("Image = %+v, ожидалось 64x32 png", meta.Image)
	}
	if meta.Attributes["source"] != "scan" {
		t.Errorf("Attributes = %v, ожидался source=scan", meta.Attributes)
	}
}

func TestMetadata_BrokenImage(t *testing.T) {
	meta, err := Metadata([]byte("not an image"), model.FileTypeJPEG, nil)
	if err == nil {
		t.Fatal("Metadata() должна вернуть ошибку для повреждённого изображения")
	}
	if meta.Kind != model.MetadataGeneric {
		t.Errorf("Kind = %q, ожидались generic-метаданные", meta.Kind)
	}
}

func TestMetadata_PDF(t *testing.T) {
	data := []byte("%PDF-1.7\n1 0 obj << /Type /Pages /Count 2 >>\n2 0 obj << /Type /Page >>\n3 0 obj << /Type /Page >>\n%%EOF")

	meta, err := Metadata(data, model.FileTypePDF, nil)
	if err != nil {
		t.Fatalf("Metadata() ошибка: %v", err)
	}
	if meta.Kind != model.MetadataDocument || meta.Document == nil {
		t.Fatalf("Kind = %q, ожидались document-метаданные", meta.Kind)
	}
	if meta.Document.PDFVersion != "1.7" {
		t.Errorf("PDFVersion = %q, ожидалась 1.7", meta.Document.PDFVersion)
	}
	if meta.Document.PageCount == nil || *meta.Document.PageCount != 2 {
		t.Errorf("PageCount = %v, ожидалось 2", meta.Document.PageCount)
	}
}

func TestMetadata_Generic(t *testing.T) {
	meta, err := Metadata([]byte("a,b\n1,2\n"), model.FileTypeCSV, nil)
	if err != nil {
		t.Fatalf("Metadata() ошибка: %v", err)
	}
	if meta.Kind != model.MetadataGeneric {
		t.Errorf("Kind = %q, ожидался generic", meta.Kind)
	}
}
