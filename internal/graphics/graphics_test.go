package graphics

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	cases := []struct {
		n          int
		cols, rows int
	}{
		{0, 0, 0}, {1, 1, 1}, {2, 2, 1}, {3, 3, 1}, {4, 3, 2}, {5, 3, 2}, {6, 3, 3}, {9, 3, 3},
	}
	for _, tc := range cases {
		cols, rows := Layout(tc.n)
		require.Equal(t, tc.cols, cols, "cols for %d", tc.n)
		require.Equal(t, tc.rows, rows, "rows for %d", tc.n)
	}
}

func TestPositions_CentresShortRow(t *testing.T) {
	cell := 800 / 3
	pts := Positions(4, cell, 10)
	require.Len(t, pts, 4)
	require.Equal(t, image.Pt(cell/2+5, 5), pts[0])
	require.Equal(t, image.Pt(cell+cell/2+5, 5), pts[1])
	require.Equal(t, image.Pt(5, cell+5), pts[2])
	require.Equal(t, image.Pt(cell+5, cell+5), pts[3])

	pts = Positions(3, cell, 10)
	require.Equal(t, image.Pt(2*cell+5, 5), pts[2])
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestCollage_Dimensions(t *testing.T) {
	c := NewComposer("", LoadFonts(""))
	photos := [][]byte{
		solidPNG(t, 300, 200, color.RGBA{255, 0, 0, 255}),
		solidPNG(t, 200, 300, color.RGBA{0, 255, 0, 255}),
		solidPNG(t, 100, 100, color.RGBA{0, 0, 255, 255}),
		[]byte("not an image"),
	}
	out, err := c.Collage(photos, NoticeDownloadFailed)
	require.NoError(t, err)

	img := decodeJPEG(t, out)
	cell := 800 / 3
	require.Equal(t, 3*cell, img.Bounds().Dx())
	require.Equal(t, cell, img.Bounds().Dy())
}

func TestCollage_FallbackWhenNothingDecodes(t *testing.T) {
	c := NewComposer("", LoadFonts(""))
	out, err := c.Collage(nil, NoticeNoPhotos)
	require.NoError(t, err)
	img := decodeJPEG(t, out)
	require.Equal(t, 600, img.Bounds().Dx())
	require.Equal(t, 600, img.Bounds().Dy())
}

func TestCompose(t *testing.T) {
	dir := t.TempDir()
	tpl := filepath.Join(dir, "template.png")
	require.NoError(t, os.WriteFile(tpl, solidPNG(t, 1080, 1080, color.White), 0o644))

	c := NewComposer(tpl, LoadFonts(filepath.Join(dir, "missing.ttf")))
	out, err := c.Compose(Card{
		Photo:       solidPNG(t, 400, 600, color.RGBA{10, 20, 30, 255}),
		SavingsLine: "YOU SAVE: 479,01€",
		Badge:       "-31%",
		NewPrice:    "1.019,99€",
		OldPrice:    "1.499,00€",
	})
	require.NoError(t, err)

	img := decodeJPEG(t, out)
	require.Equal(t, 1080, img.Bounds().Dx())

	// Photo area is dark, the corner of the rounded photo keeps the template.
	r, _, _, _ := img.At(80+100, 540).RGBA()
	require.Less(t, r>>8, uint32(60))
	pw, ph := fitInside(400, 600, 1080*45/100, 1080*70/100)
	py := (1080-ph)/2 + 30
	cr, _, _, _ := img.At(80, py).RGBA()
	require.Greater(t, cr>>8, uint32(200))
	require.Positive(t, pw)
}

func TestCompose_MissingTemplate(t *testing.T) {
	c := NewComposer(filepath.Join(t.TempDir(), "nope.png"), LoadFonts(""))
	_, err := c.Compose(Card{Photo: solidPNG(t, 10, 10, color.Black), NewPrice: "1€"})
	require.Error(t, err)
}

func TestRoundedMask(t *testing.T) {
	m := &roundedMask{w: 100, h: 100, r: 40}
	require.Equal(t, color.Transparent, m.At(0, 0))
	require.Equal(t, color.Opaque, m.At(50, 50))
	require.Equal(t, color.Opaque, m.At(0, 50))
	require.Equal(t, color.Transparent, m.At(99, 99))
}
