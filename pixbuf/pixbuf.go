// Package pixbuf implements an in-memory pixel buffer with the pixel layouts
// used by retro graphics hardware: 4 and 8 bpp indexed color, and 15, 16, 24
// and 32 bpp direct color.
package pixbuf

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocation is returned when the pixel storage for the requested
	// geometry cannot be obtained.
	ErrAllocation = errors.New("pixbuf: allocation failed")
	// ErrUnsupportedDepth is returned for bit depths outside 4, 8, 15, 16, 24, 32.
	ErrUnsupportedDepth = errors.New("pixbuf: unsupported bit depth")
)

// MaxBytes caps the size of a single pixel buffer.
const MaxBytes = 1 << 30

// ColorRGB is a single color table entry.
type ColorRGB struct {
	R, G, B byte
}

// Buffer is a rectangular grid of pixels stored row-major, Stride bytes per
// scanline. Palette is used only for depths of 8 bpp and below; the first
// NumColors entries are valid.
type Buffer struct {
	Width     int
	Height    int
	BPP       int
	NChan     int
	Stride    int
	NumColors int
	Palette   [256]ColorRGB
	Pix       []byte
}

// ValidDepth reports whether bpp is one of the supported pixel depths.
func ValidDepth(bpp int) bool {
	switch bpp {
	case 4, 8, 15, 16, 24, 32:
		return true
	}
	return false
}

// storageBits returns the number of bits a pixel occupies in memory. 15 bpp
// pixels are stored in 16-bit words.
func storageBits(bpp int) int {
	if bpp == 15 {
		return 16
	}
	return bpp
}

// New allocates a zeroed buffer. Indexed buffers get a color table sized for
// their depth; the caller is expected to fill it in.
func New(width, height, bpp int) (*Buffer, error) {
	if !ValidDepth(bpp) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedDepth, bpp)
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d (%dbpp)", ErrAllocation, width, height, bpp)
	}
	stride := width * storageBits(bpp) / 8
	if bpp == 4 && width&1 != 0 {
		stride++
	}
	if stride <= 0 || height > MaxBytes/stride {
		return nil, fmt.Errorf("%w: %dx%d (%dbpp)", ErrAllocation, width, height, bpp)
	}

	b := &Buffer{
		Width:  width,
		Height: height,
		BPP:    bpp,
		Stride: stride,
		Pix:    make([]byte, stride*height),
	}
	switch {
	case bpp <= 8:
		b.NChan = 1
		b.NumColors = 1 << bpp
	case bpp <= 24:
		b.NChan = 3
	default:
		b.NChan = 4
	}
	return b, nil
}

// Indexed reports whether pixels are color table indices.
func (b *Buffer) Indexed() bool {
	return b.BPP <= 8
}

// SetPalette replaces the color table.
func (b *Buffer) SetPalette(pal []ColorRGB) {
	if len(pal) > len(b.Palette) {
		panic(fmt.Sprintf("pixbuf: palette of %d colors exceeds 256", len(pal)))
	}
	b.NumColors = copy(b.Palette[:], pal)
}

// Colors returns the valid part of the color table.
func (b *Buffer) Colors() []ColorRGB {
	return b.Palette[:b.NumColors]
}

// Clone returns a deep copy of b.
func (b *Buffer) Clone() *Buffer {
	c := *b
	c.Pix = make([]byte, len(b.Pix))
	copy(c.Pix, b.Pix)
	return &c
}

// Equal reports whether a and b have the same geometry, layout and pixel
// bytes. Color tables are not compared.
func Equal(a, b *Buffer) bool {
	if a.Width != b.Width || a.Height != b.Height || a.BPP != b.BPP || a.NChan != b.NChan {
		return false
	}
	rowBytes := a.rowBytes()
	for y := 0; y < a.Height; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+rowBytes]
		rb := b.Pix[y*b.Stride : y*b.Stride+rowBytes]
		if string(ra) != string(rb) {
			return false
		}
	}
	return true
}

func (b *Buffer) rowBytes() int {
	n := b.Width * storageBits(b.BPP) / 8
	if b.BPP == 4 && b.Width&1 != 0 {
		n++
	}
	return n
}
