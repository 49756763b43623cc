// Package quant reduces full color images to indexed images with an
// adaptive palette of at most 256 colors, optionally with Floyd-Steinberg
// error diffusion and per-color shade ramps for hardware with brightness
// registers.
package quant

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Raimguzhinov/imgquant/internal/logging"
	"github.com/Raimguzhinov/imgquant/octree"
	"github.com/Raimguzhinov/imgquant/pixbuf"
)

// ErrInvalidParameter is returned for out of range quantization parameters.
var ErrInvalidParameter = errors.New("quant: invalid parameter")

const (
	MinColors = 2
	MaxColors = 256

	// ImageWeight is the weight of every image pixel added to the tree.
	// Synthetic shade colors use ShadeWeight so they never outweigh real
	// image content.
	ImageWeight = 1024
	ShadeWeight = 1
)

// Dither selects the error diffusion applied while remapping pixels.
type Dither int

const (
	DitherNone Dither = iota
	DitherFloydSteinberg
)

func (d Dither) String() string {
	switch d {
	case DitherNone:
		return "none"
	case DitherFloydSteinberg:
		return "floyd-steinberg"
	}
	return fmt.Sprintf("Dither(%d)", int(d))
}

// ParseDither accepts "none", "fs" and "floyd-steinberg" in any case.
func ParseDither(s string) (Dither, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return DitherNone, nil
	case "fs", "floyd-steinberg", "floydsteinberg":
		return DitherFloydSteinberg, nil
	}
	return DitherNone, fmt.Errorf("%w: unknown dither mode %q", ErrInvalidParameter, s)
}

// Options controls a quantization run.
type Options struct {
	MaxColors int
	Dither    Dither
	// ShadeLevels > 1 adds darkened variants of every learned color to the
	// palette and produces a shade lookup table. Zero disables both.
	ShadeLevels int
	Logger      *slog.Logger
}

func (o Options) validate() error {
	if o.MaxColors < MinColors || o.MaxColors > MaxColors {
		return fmt.Errorf("%w: max colors %d outside [%d, %d]", ErrInvalidParameter, o.MaxColors, MinColors, MaxColors)
	}
	if o.ShadeLevels != 0 && o.ShadeLevels <= 1 {
		return fmt.Errorf("%w: shade levels must be greater than 1, got %d", ErrInvalidParameter, o.ShadeLevels)
	}
	if o.Dither != DitherNone && o.Dither != DitherFloydSteinberg {
		return fmt.Errorf("%w: dither mode %v", ErrInvalidParameter, o.Dither)
	}
	return nil
}

// Result is the outcome of a quantization run.
type Result struct {
	// Image is a 4 bpp (up to 16 colors) or 8 bpp indexed buffer with the
	// learned palette as its color table.
	Image *pixbuf.Buffer
	// ShadeLUT holds MaxColors*ShadeLevels palette indices, row i listing
	// palette entry i from black to full intensity. Nil without shading.
	ShadeLUT []int
}

// Quantizer turns a buffer into an indexed one.
type Quantizer interface {
	Quantize(img *pixbuf.Buffer) (*Result, error)
}

// OctreeQuantizer builds its palette with an octree.
type OctreeQuantizer struct {
	opts Options
	log  *slog.Logger
}

var _ Quantizer = (*OctreeQuantizer)(nil)

// New validates opts and returns a quantizer.
func New(opts Options) (*OctreeQuantizer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &OctreeQuantizer{
		opts: opts,
		log:  logging.WithComponent(opts.Logger, logging.ComponentQuantize),
	}, nil
}

// Quantize reduces img to Result.Image. With dithering enabled,
// corrections are written back into the pixels of img as the pass moves
// along, truncated to the channel precision of its depth. Indexed sources
// cannot hold corrected colors and are dithered on a private 24 bpp copy.
func (q *OctreeQuantizer) Quantize(img *pixbuf.Buffer) (*Result, error) {
	if err := checkSource(img); err != nil {
		return nil, err
	}
	maxColors := q.opts.MaxColors

	bpp := 8
	if maxColors <= 16 {
		bpp = 4
	}
	out, err := pixbuf.New(img.Width, img.Height, bpp)
	if err != nil {
		return nil, fmt.Errorf("quant: output buffer: %w", err)
	}

	src := img
	if q.opts.Dither == DitherFloydSteinberg && img.Indexed() {
		if src, err = widen(img); err != nil {
			return nil, fmt.Errorf("quant: working copy: %w", err)
		}
	}

	b := builder{tree: octree.New(maxColors), log: q.log}
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			c, _ := src.RGB(x, y)
			b.add(c, ImageWeight)
		}
	}

	levels := q.opts.ShadeLevels
	if levels > 0 {
		for _, c := range b.tree.AssignPalette() {
			for j := 0; j < levels-1; j++ {
				b.add(shade(c, j, levels), ShadeWeight)
			}
		}
	}

	pal := b.tree.AssignPalette()
	out.SetPalette(pal)

	q.remap(src, out, b.tree, pal)

	res := &Result{Image: out}
	if levels > 0 {
		res.ShadeLUT = shadeLUT(b.tree, pal, maxColors, levels)
	}

	q.log.Debug("quantized",
		"width", img.Width,
		"height", img.Height,
		"source_bpp", img.BPP,
		"bpp", out.BPP,
		"colors", len(pal),
		"dither", q.opts.Dither,
		"shade_levels", levels)
	return res, nil
}

// Quantize reduces img in place to an indexed image of at most maxColors
// colors. A shadeLevels of zero disables shading; otherwise the shade
// lookup table is returned. On error img is left untouched.
func Quantize(img *pixbuf.Buffer, maxColors int, dither Dither, shadeLevels int) ([]int, error) {
	q, err := New(Options{MaxColors: maxColors, Dither: dither, ShadeLevels: shadeLevels})
	if err != nil {
		return nil, err
	}
	res, err := q.Quantize(img)
	if err != nil {
		return nil, err
	}
	*img = *res.Image
	return res.ShadeLUT, nil
}

func checkSource(img *pixbuf.Buffer) error {
	switch {
	case img == nil:
		return fmt.Errorf("%w: nil image", ErrInvalidParameter)
	case img.Width < 1 || img.Height < 1:
		return fmt.Errorf("%w: empty %dx%d image", ErrInvalidParameter, img.Width, img.Height)
	case !pixbuf.ValidDepth(img.BPP):
		return fmt.Errorf("%w: %d bpp source", ErrInvalidParameter, img.BPP)
	case len(img.Pix) < img.Stride*img.Height:
		return fmt.Errorf("%w: pixel data shorter than %d bytes", ErrInvalidParameter, img.Stride*img.Height)
	}
	return nil
}

// builder feeds colors into the tree and keeps it within the palette size.
type builder struct {
	tree   *octree.Tree
	log    *slog.Logger
	warned bool
}

func (b *builder) add(c pixbuf.ColorRGB, weight int) {
	b.tree.Add(c, weight)
	if !b.tree.ReduceTo(b.tree.MaxColors()) && !b.warned {
		b.log.Warn("no reducible nodes", "leaves", b.tree.Leaves(), "max_colors", b.tree.MaxColors())
		b.warned = true
	}
}

// shade scales c to intensity level of levels-1.
func shade(c pixbuf.ColorRGB, level, levels int) pixbuf.ColorRGB {
	div := levels - 1
	return pixbuf.ColorRGB{
		R: byte(int(c.R) * level / div),
		G: byte(int(c.G) * level / div),
		B: byte(int(c.B) * level / div),
	}
}

// shadeLUT maps every palette entry at every intensity to its closest
// palette index. Rows past the end of the palette point at the last slot.
func shadeLUT(tree *octree.Tree, pal []pixbuf.ColorRGB, maxColors, levels int) []int {
	lut := make([]int, 0, maxColors*levels)
	for _, c := range pal {
		for j := 0; j < levels; j++ {
			lut = append(lut, tree.Lookup(shade(c, j, levels)))
		}
	}
	for len(lut) < maxColors*levels {
		lut = append(lut, maxColors-1)
	}
	return lut
}
