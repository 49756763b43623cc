package pixbuf

import (
	"image"
	"image/color"
)

type opaquer interface {
	Opaque() bool
}

// FromImage converts a decoded image into a buffer. Paletted images become
// 8 bpp indexed buffers (4 bpp when the palette fits in 16 entries), opaque
// images 24 bpp, and everything else 32 bpp with alpha in the fourth byte.
func FromImage(img image.Image) (*Buffer, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if p, ok := img.(*image.Paletted); ok && len(p.Palette) <= 256 {
		bpp := 8
		if len(p.Palette) <= 16 {
			bpp = 4
		}
		b, err := New(w, h, bpp)
		if err != nil {
			return nil, err
		}
		pal := make([]ColorRGB, len(p.Palette))
		for i, c := range p.Palette {
			n := color.NRGBAModel.Convert(c).(color.NRGBA)
			pal[i] = ColorRGB{R: n.R, G: n.G, B: n.B}
		}
		b.SetPalette(pal)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				b.SetPixel(x, y, uint32(p.ColorIndexAt(bounds.Min.X+x, bounds.Min.Y+y)))
			}
		}
		return b, nil
	}

	bpp := 32
	if o, ok := img.(opaquer); ok && o.Opaque() {
		bpp = 24
	}
	b, err := New(w, h, bpp)
	if err != nil {
		return nil, err
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			if bpp == 32 {
				b.SetPixel(x, y, uint32(n.R)|uint32(n.G)<<8|uint32(n.B)<<16|uint32(n.A)<<24)
			} else {
				b.SetRGB(x, y, ColorRGB{R: n.R, G: n.G, B: n.B})
			}
		}
	}
	return b, nil
}

// ToImage converts b into an image.Image for encoding or display. Indexed
// buffers become *image.Paletted; direct color buffers *image.NRGBA.
func (b *Buffer) ToImage() image.Image {
	rect := image.Rect(0, 0, b.Width, b.Height)

	if b.Indexed() {
		pal := make(color.Palette, b.NumColors)
		for i, c := range b.Colors() {
			pal[i] = color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
		}
		out := image.NewPaletted(rect, pal)
		for y := 0; y < b.Height; y++ {
			for x := 0; x < b.Width; x++ {
				out.SetColorIndex(x, y, uint8(b.Pixel(x, y)))
			}
		}
		return out
	}

	out := image.NewNRGBA(rect)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			c, pix := b.RGB(x, y)
			a := byte(0xff)
			if b.BPP == 32 {
				a = byte(pix >> 24)
			}
			out.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: a})
		}
	}
	return out
}
