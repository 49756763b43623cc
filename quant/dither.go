package quant

import (
	"fmt"

	"github.com/Raimguzhinov/imgquant/octree"
	"github.com/Raimguzhinov/imgquant/pixbuf"
)

// remap writes the palette index of every src pixel into out, row by row.
// With Floyd-Steinberg the quantization error of each pixel is pushed into
// its unvisited neighbours in src before they are read, so the pass must
// stay sequential.
func (q *OctreeQuantizer) remap(src, out *pixbuf.Buffer, tree *octree.Tree, pal []pixbuf.ColorRGB) {
	w, h := src.Width, src.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c, _ := src.RGB(x, y)
			idx := tree.Lookup(c)
			if idx < 0 || idx >= len(pal) {
				panic(fmt.Sprintf("quant: palette index %d for (%d, %d) outside %d entries", idx, x, y, len(pal)))
			}
			out.SetPixel(x, y, uint32(idx))

			if q.opts.Dither != DitherFloydSteinberg {
				continue
			}
			p := pal[idx]
			e := [3]int{
				int(c.R) - int(p.R),
				int(c.G) - int(p.G),
				int(c.B) - int(p.B),
			}
			var acc [3]int
			if x < w-1 {
				diffuse(src, x+1, y, e, 7, &acc)
			}
			if y < h-1 {
				if x > 0 {
					diffuse(src, x-1, y+1, e, 3, &acc)
				}
				diffuse(src, x, y+1, e, 5, &acc)
				if x < w-1 {
					// Whatever the other neighbours did not receive, rounding
					// included, goes below right.
					rest := [3]int{e[0] - acc[0], e[1] - acc[1], e[2] - acc[2]}
					addError(src, x+1, y+1, rest)
				}
			}
		}
	}
}

// diffuse adds weight/16 of e to the pixel at (x, y) and records the share
// actually handed out in acc.
func diffuse(img *pixbuf.Buffer, x, y int, e [3]int, weight int, acc *[3]int) {
	var part [3]int
	for i := range e {
		part[i] = weight * e[i] >> 4
		acc[i] += part[i]
	}
	addError(img, x, y, part)
}

func addError(img *pixbuf.Buffer, x, y int, e [3]int) {
	c, _ := img.RGB(x, y)
	img.SetRGB(x, y, pixbuf.ColorRGB{
		R: clamp(int(c.R) + e[0]),
		G: clamp(int(c.G) + e[1]),
		B: clamp(int(c.B) + e[2]),
	})
}

func clamp(v int) byte {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return byte(v)
}

// widen returns a 24 bpp copy of an indexed img.
func widen(img *pixbuf.Buffer) (*pixbuf.Buffer, error) {
	out, err := pixbuf.New(img.Width, img.Height, 24)
	if err != nil {
		return nil, err
	}
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c, _ := img.RGB(x, y)
			out.SetRGB(x, y, c)
		}
	}
	return out, nil
}
