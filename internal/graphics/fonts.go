package graphics

import (
	"image"
	"image/color"
	"log/slog"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Fonts produces faces at arbitrary sizes from one TrueType file, falling
// back to a fixed bitmap face when the file is unusable.
type Fonts struct {
	font *opentype.Font
}

func LoadFonts(path string) *Fonts {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("font not available, using fallback face", "path", path, "error", err)
		return &Fonts{}
	}
	f, err := opentype.Parse(data)
	if err != nil {
		slog.Warn("font not parseable, using fallback face", "path", path, "error", err)
		return &Fonts{}
	}
	return &Fonts{font: f}
}

func (f *Fonts) Face(size float64) font.Face {
	if f == nil || f.font == nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// textSize measures s rendered with face.
func textSize(face font.Face, s string) (w, h int) {
	m := face.Metrics()
	return font.MeasureString(face, s).Ceil(), (m.Ascent + m.Descent).Ceil()
}

// drawText draws s with its top-left corner at (x, y).
func drawText(dst *image.RGBA, face font.Face, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}
