package graphics

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	colorBadge   = color.RGBA{204, 0, 0, 255}
	colorPrice   = color.RGBA{228, 121, 17, 255}
	colorOld     = color.RGBA{120, 120, 120, 255}
	colorSavings = color.RGBA{34, 139, 34, 255}
)

const (
	marginRight  = 80
	photoX       = 80
	photoRadius  = 40
	savingsY     = 75
	badgeY       = 380
	priceY       = 490
	oldPriceY    = 610
	priceMaxSize = 90
	priceMinSize = 40
	strikeWidth  = 8
)

// Card is what gets printed on a post image.
type Card struct {
	Photo       []byte
	SavingsLine string
	Badge       string
	NewPrice    string
	// OldPrice is empty when there is no reference price to strike through.
	OldPrice string
}

// Composer renders cards over a template image.
type Composer struct {
	templatePath string
	fonts        *Fonts
}

func NewComposer(templatePath string, fonts *Fonts) *Composer {
	return &Composer{templatePath: templatePath, fonts: fonts}
}

// Compose renders card and returns it JPEG-encoded. The template is read on
// every call so it can be replaced while the bot runs.
func (c *Composer) Compose(card Card) ([]byte, error) {
	tpl, err := loadImage(c.templatePath)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	photo, _, err := image.Decode(bytes.NewReader(card.Photo))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}

	b := tpl.Bounds()
	W, H := b.Dx(), b.Dy()
	canvas := image.NewRGBA(image.Rect(0, 0, W, H))
	draw.Draw(canvas, canvas.Bounds(), tpl, b.Min, draw.Src)

	pw, ph := fitInside(photo.Bounds().Dx(), photo.Bounds().Dy(), W*45/100, H*70/100)
	py := (H-ph)/2 + 30
	scaled := image.NewRGBA(image.Rect(0, 0, pw, ph))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), photo, photo.Bounds(), xdraw.Src, nil)
	dst := image.Rect(photoX, py, photoX+pw, py+ph)
	draw.DrawMask(canvas, dst, scaled, image.Point{}, &roundedMask{w: pw, h: ph, r: photoRadius}, image.Point{}, draw.Over)

	if card.SavingsLine != "" {
		face := c.fonts.Face(40)
		w, _ := textSize(face, card.SavingsLine)
		drawText(canvas, face, card.SavingsLine, (W-w)/2, savingsY, colorSavings)
	}

	if card.Badge != "" {
		face := c.fonts.Face(85)
		w, _ := textSize(face, card.Badge)
		drawText(canvas, face, card.Badge, W-w-marginRight, badgeY, colorBadge)
	}

	textEnd := W - marginRight
	available := textEnd - (photoX + pw + 30)
	size := float64(priceMaxSize)
	face := c.fonts.Face(size)
	w, _ := textSize(face, card.NewPrice)
	for w >= available && size-5 >= priceMinSize {
		size -= 5
		face = c.fonts.Face(size)
		w, _ = textSize(face, card.NewPrice)
	}
	drawText(canvas, face, card.NewPrice, textEnd-w, priceY, colorPrice)

	if card.OldPrice != "" {
		face := c.fonts.Face(55)
		w, h := textSize(face, card.OldPrice)
		x := W - w - marginRight
		drawText(canvas, face, card.OldPrice, x, oldPriceY, colorOld)
		lineY := oldPriceY + h/2 + 12
		line := image.Rect(x, lineY-strikeWidth/2, x+w, lineY+strikeWidth/2)
		draw.Draw(canvas, line, image.NewUniform(colorOld), image.Point{}, draw.Over)
	}

	return encodeJPEG(canvas, 95)
}

func fitInside(w, h, maxW, maxH int) (int, int) {
	if w == 0 || h == 0 {
		return maxW, maxH
	}
	rw := float64(maxW) / float64(w)
	rh := float64(maxH) / float64(h)
	r := rw
	if rh < r {
		r = rh
	}
	nw, nh := int(float64(w)*r), int(float64(h)*r)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// roundedMask is an alpha mask of a w×h rectangle with corners of radius r.
type roundedMask struct {
	w, h, r int
}

func (m *roundedMask) ColorModel() color.Model { return color.AlphaModel }

func (m *roundedMask) Bounds() image.Rectangle { return image.Rect(0, 0, m.w, m.h) }

func (m *roundedMask) At(x, y int) color.Color {
	r := m.r
	if 2*r > m.w {
		r = m.w / 2
	}
	if 2*r > m.h {
		r = m.h / 2
	}
	cx, cy := x, y
	switch {
	case x < r:
		cx = r
	case x >= m.w-r:
		cx = m.w - r - 1
	}
	switch {
	case y < r:
		cy = r
	case y >= m.h-r:
		cy = m.h - r - 1
	}
	dx, dy := x-cx, y-cy
	if dx*dx+dy*dy > r*r {
		return color.Transparent
	}
	return color.Opaque
}
