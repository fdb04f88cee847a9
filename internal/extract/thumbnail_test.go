package extract

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestThumbnail_ScalesDownKeepingAspect(t *testing.T) {
	thumb, err := Thumbnail(encodePNG(t, 800, 400), 200)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("результат не JPEG: %v", err)
	}
	if cfg.Width != 200 || cfg.Height != 100 {
		t.Errorf("размер миниатюры %dx%d, ожидалось 200x100", cfg.Width, cfg.Height)
	}
}

func TestThumbnail_PortraitAndSmall(t *testing.T) {
	thumb, err := Thumbnail(encodePNG(t, 100, 300), 150)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	cfg, _ := jpeg.DecodeConfig(bytes.NewReader(thumb))
	if cfg.Width != 50 || cfg.Height != 150 {
		t.Errorf("размер миниатюры %dx%d, ожидалось 50x150", cfg.Width, cfg.Height)
	}

	// Маленькое изображение не увеличивается
	thumb, err = Thumbnail(encodePNG(t, 40, 20), 150)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	cfg, _ = jpeg.DecodeConfig(bytes.NewReader(thumb))
	if cfg.Width != 40 || cfg.Height != 20 {
		t.Errorf("размер миниатюры %dx%d, ожидалось 40x20", cfg.Width, cfg.Height)
	}
}

func TestThumbnail_Errors(t *testing.T) {
	if _, err := Thumbnail([]byte("not an image"), 100); err == nil {
		t.Error("ожидалась ошибка для не-изображения")
	}
	if _, err := Thumbnail(encodePNG(t, 10, 10), 0); err == nil {
		t.Error("ожидалась ошибка для maxDim = 0")
	}
}
