package pixbuf

import "fmt"

// Blit copies the w×h rectangle at (sx, sy) in src to (dx, dy) in dst. The
// rectangle is clipped against both buffers; a fully clipped rectangle is a
// no-op. Both buffers must share depth and channel count.
func Blit(src *Buffer, sx, sy, w, h int, dst *Buffer, dx, dy int) {
	if src.BPP != dst.BPP || src.NChan != dst.NChan {
		panic(fmt.Sprintf("pixbuf: blit from %dbpp/%dch to %dbpp/%dch", src.BPP, src.NChan, dst.BPP, dst.NChan))
	}

	if sx < 0 {
		w += sx
		dx -= sx
		sx = 0
	}
	if sy < 0 {
		h += sy
		dy -= sy
		sy = 0
	}
	if dx < 0 {
		w += dx
		sx -= dx
		dx = 0
	}
	if dy < 0 {
		h += dy
		sy -= dy
		dy = 0
	}
	if sx+w > src.Width {
		w = src.Width - sx
	}
	if sy+h > src.Height {
		h = src.Height - sy
	}
	if dx+w > dst.Width {
		w = dst.Width - dx
	}
	if dy+h > dst.Height {
		h = dst.Height - dy
	}
	if w <= 0 || h <= 0 {
		return
	}

	// Nibble-packed rows can't be moved with a byte copy unless both sides
	// start on a byte boundary.
	if src.BPP == 4 && (sx|dx|w)&1 != 0 {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.SetPixel(dx+x, dy+y, src.Pixel(sx+x, sy+y))
			}
		}
		return
	}

	bits := storageBits(src.BPP)
	n := w * bits / 8
	soff := sy*src.Stride + sx*bits/8
	doff := dy*dst.Stride + dx*bits/8
	for y := 0; y < h; y++ {
		copy(dst.Pix[doff:doff+n], src.Pix[soff:soff+n])
		soff += src.Stride
		doff += dst.Stride
	}
}

// OverlayKey copies every pixel of src whose raw value differs from key onto
// dst. Pixels equal to key are treated as transparent.
func OverlayKey(src *Buffer, key uint32, dst *Buffer) {
	if src.BPP != dst.BPP || src.Width != dst.Width || src.Height != dst.Height {
		panic(fmt.Sprintf("pixbuf: overlay %dx%d %dbpp onto %dx%d %dbpp",
			src.Width, src.Height, src.BPP, dst.Width, dst.Height, dst.BPP))
	}

	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			if pix := src.Pixel(x, y); pix != key {
				dst.SetPixel(x, y, pix)
			}
		}
	}
}
