package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// ThumbnailContentType — MIME-тип результата Thumbnail.
const ThumbnailContentType = "image/jpeg"

// Thumbnail уменьшает изображение так, чтобы большая сторона не превышала maxDim,
// и кодирует результат в JPEG. Изображения меньше maxDim не увеличиваются.
func Thumbnail(data []byte, maxDim int) ([]byte, error) {
	if maxDim <= 0 {
		return nil, fmt.Errorf("некорректный размер миниатюры: %d", maxDim)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("декодирование изображения: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("пустое изображение")
	}
	if w > maxDim || h > maxDim {
		if w >= h {
			h = max(1, h*maxDim/w)
			w = maxDim
		} else {
			w = max(1, w*maxDim/h)
			h = maxDim
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("кодирование миниатюры: %w", err)
	}
	return buf.Bytes(), nil
}
