package graphics

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	xdraw "golang.org/x/image/draw"
)

const (
	collageBase    = 800
	collagePadding = 10
	fallbackSize   = 600
)

const (
	NoticeNoPhotos       = "NO DROP PHOTOS FOUND TODAY"
	NoticeDownloadFailed = "FALLBACK: PHOTO DOWNLOAD FAILED"
)

// Collage tiles the decodable photos into one JPEG. When none decode, the
// result is the fallback card carrying notice.
func (c *Composer) Collage(photos [][]byte, notice string) ([]byte, error) {
	imgs := make([]image.Image, 0, len(photos))
	for i, p := range photos {
		img, _, err := image.Decode(bytes.NewReader(p))
		if err != nil {
			slog.Warn("skipping undecodable collage photo", "index", i, "error", err)
			continue
		}
		imgs = append(imgs, img)
	}
	if len(imgs) == 0 {
		return c.Fallback(notice)
	}

	cols, rows := Layout(len(imgs))
	cell := collageBase / cols
	canvas := image.NewRGBA(image.Rect(0, 0, cols*cell, rows*cell))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	side := cell - collagePadding
	for i, pt := range Positions(len(imgs), cell, collagePadding) {
		tile := cropFill(imgs[i], side, side)
		draw.Draw(canvas, image.Rect(pt.X, pt.Y, pt.X+side, pt.Y+side), tile, image.Point{}, draw.Src)
	}
	return encodeJPEG(canvas, 95)
}

// Fallback is a grey square carrying notice.
func (c *Composer) Fallback(notice string) ([]byte, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, fallbackSize, fallbackSize))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Gray{Y: 128}), image.Point{}, draw.Src)

	size := 40.0
	face := c.fonts.Face(size)
	w, _ := textSize(face, notice)
	for w > fallbackSize-40 && size > 12 {
		size -= 4
		face = c.fonts.Face(size)
		w, _ = textSize(face, notice)
	}
	drawText(canvas, face, notice, (fallbackSize-w)/2, 280, color.White)
	return encodeJPEG(canvas, 90)
}

// cropFill scales src to cover w×h and crops the centre.
func cropFill(src image.Image, w, h int) *image.RGBA {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	crop := b
	if sw*h > sh*w {
		cw := sh * w / h
		x0 := b.Min.X + (sw-cw)/2
		crop = image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	} else if sw*h < sh*w {
		ch := sw * h / w
		y0 := b.Min.Y + (sh-ch)/2
		crop = image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, xdraw.Src, nil)
	return dst
}
