// Package graphics composes post cards and digest collages.
package graphics

import "image"

// Layout returns the collage grid for n photos.
func Layout(n int) (cols, rows int) {
	switch {
	case n <= 0:
		return 0, 0
	case n <= 2:
		return n, 1
	case n == 3:
		return 3, 1
	case n <= 5:
		return 3, 2
	default:
		return 3, 3
	}
}

// Positions returns the top-left corner of each photo for a grid of square
// cells. With four or five photos the two photos of the first row are
// shifted by half a cell so they sit centred over the second row.
func Positions(n, cell, padding int) []image.Point {
	cols, _ := Layout(n)
	if cols == 0 {
		return nil
	}
	pts := make([]image.Point, n)
	for i := range pts {
		row, col := i/cols, i%cols
		x := col*cell + padding/2
		y := row*cell + padding/2
		if n == 4 || n == 5 {
			if i < 2 {
				x = col*cell + cell/2 + padding/2
				y = padding / 2
			} else {
				x = (i-2)*cell + padding/2
				y = cell + padding/2
			}
		}
		pts[i] = image.Pt(x, y)
	}
	return pts
}
