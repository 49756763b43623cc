package pixbuf

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		bpp, width    int
		stride, nchan int
		ncolors       int
	}{
		{bpp: 4, width: 8, stride: 4, nchan: 1, ncolors: 16},
		{bpp: 4, width: 7, stride: 4, nchan: 1, ncolors: 16},
		{bpp: 8, width: 7, stride: 7, nchan: 1, ncolors: 256},
		{bpp: 15, width: 7, stride: 14, nchan: 3},
		{bpp: 16, width: 7, stride: 14, nchan: 3},
		{bpp: 24, width: 7, stride: 21, nchan: 3},
		{bpp: 32, width: 7, stride: 28, nchan: 4},
	} {
		b, err := New(tc.width, 3, tc.bpp)
		if err != nil {
			t.Fatalf("New(%d, 3, %d): %v", tc.width, tc.bpp, err)
		}
		if b.Stride != tc.stride || b.NChan != tc.nchan || b.NumColors != tc.ncolors {
			t.Errorf("%dbpp: stride=%d nchan=%d ncolors=%d, want %d %d %d",
				tc.bpp, b.Stride, b.NChan, b.NumColors, tc.stride, tc.nchan, tc.ncolors)
		}
		if len(b.Pix) != b.Stride*b.Height {
			t.Errorf("%dbpp: len(Pix)=%d, want %d", tc.bpp, len(b.Pix), b.Stride*b.Height)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(4, 4, 12); !errors.Is(err, ErrUnsupportedDepth) {
		t.Errorf("12bpp: got %v, want ErrUnsupportedDepth", err)
	}
	if _, err := New(0, 4, 8); !errors.Is(err, ErrAllocation) {
		t.Errorf("zero width: got %v, want ErrAllocation", err)
	}
	if _, err := New(1<<20, 1<<20, 32); !errors.Is(err, ErrAllocation) {
		t.Errorf("huge buffer: got %v, want ErrAllocation", err)
	}
}

func TestPixel_Layout(t *testing.T) {
	b, _ := New(4, 2, 4)
	b.SetPixel(0, 1, 0xa)
	b.SetPixel(1, 1, 0x5)
	if b.Pix[b.Stride] != 0xa5 {
		t.Fatalf("4bpp byte = %#x, want 0xa5 (even x in high nibble)", b.Pix[b.Stride])
	}
	if b.Pixel(0, 1) != 0xa || b.Pixel(1, 1) != 0x5 {
		t.Fatalf("4bpp read back %#x %#x", b.Pixel(0, 1), b.Pixel(1, 1))
	}
	b.SetPixel(1, 1, 0x13)
	if b.Pixel(0, 1) != 0xa || b.Pixel(1, 1) != 0x3 {
		t.Fatalf("4bpp write leaked into neighbour: %#x %#x", b.Pixel(0, 1), b.Pixel(1, 1))
	}

	b, _ = New(2, 1, 16)
	b.SetPixel(1, 0, 0x1234)
	if b.Pix[2] != 0x34 || b.Pix[3] != 0x12 {
		t.Fatalf("16bpp not little endian: % x", b.Pix)
	}

	b, _ = New(2, 1, 24)
	b.SetRGB(1, 0, ColorRGB{R: 1, G: 2, B: 3})
	if b.Pix[3] != 1 || b.Pix[4] != 2 || b.Pix[5] != 3 {
		t.Fatalf("24bpp byte order: % x", b.Pix)
	}
	if b.Pixel(1, 0) != 0x030201 {
		t.Fatalf("24bpp raw = %#x, want 0x030201", b.Pixel(1, 0))
	}

	b, _ = New(1, 1, 32)
	b.SetPixel(0, 0, 0xff000000)
	b.SetRGB(0, 0, ColorRGB{R: 10, G: 20, B: 30})
	if b.Pixel(0, 0) != 0xff1e140a {
		t.Fatalf("32bpp raw = %#x, want 0xff1e140a", b.Pixel(0, 0))
	}
}

func TestRGB_RoundTrip(t *testing.T) {
	for _, tc := range []struct {
		bpp      int
		maxErr   int
		greenErr int
	}{
		{bpp: 15, maxErr: 7, greenErr: 7},
		{bpp: 16, maxErr: 7, greenErr: 3}, // six bits of green
		{bpp: 24, maxErr: 0, greenErr: 0},
		{bpp: 32, maxErr: 0, greenErr: 0},
	} {
		b, err := New(1, 1, tc.bpp)
		if err != nil {
			t.Fatal(err)
		}
		for v := 0; v < 256; v++ {
			in := ColorRGB{R: byte(v), G: byte(255 - v), B: byte(v * 7)}
			b.SetRGB(0, 0, in)
			out, _ := b.RGB(0, 0)
			for ch, d := range []struct{ diff, max int }{
				{int(out.R) - int(in.R), tc.maxErr},
				{int(out.G) - int(in.G), tc.greenErr},
				{int(out.B) - int(in.B), tc.maxErr},
			} {
				if d.diff < -d.max || d.diff > d.max {
					t.Fatalf("%dbpp channel %d: %v -> %v", tc.bpp, ch, in, out)
				}
			}
		}
	}
}

func TestRGB_Expansion(t *testing.T) {
	b, _ := New(1, 1, 15)
	b.SetPixel(0, 0, 0x7fff)
	if c, _ := b.RGB(0, 0); c != (ColorRGB{255, 255, 255}) {
		t.Errorf("15bpp white = %v", c)
	}
	b.SetPixel(0, 0, 0x0001<<10)
	if c, _ := b.RGB(0, 0); c.R != 0x0f {
		t.Errorf("15bpp red lsb = %#x, want 0x0f", c.R)
	}

	b, _ = New(1, 1, 16)
	b.SetPixel(0, 0, 0x0001<<5)
	if c, _ := b.RGB(0, 0); c.G != 0x07 {
		t.Errorf("16bpp green lsb = %#x, want 0x07", c.G)
	}
	b.SetRGB(0, 0, ColorRGB{R: 0xff, G: 0xff, B: 0xff})
	if b.Pixel(0, 0) != 0xffff {
		t.Errorf("16bpp white raw = %#x", b.Pixel(0, 0))
	}
}

func TestRGB_Indexed(t *testing.T) {
	b, _ := New(2, 1, 8)
	b.SetPalette([]ColorRGB{{1, 2, 3}, {4, 5, 6}})
	b.SetPixel(1, 0, 1)
	c, pix := b.RGB(1, 0)
	if pix != 1 || c != (ColorRGB{4, 5, 6}) {
		t.Fatalf("RGB = %v, %d", c, pix)
	}

	b.SetPixel(0, 0, 2)
	defer func() {
		if recover() == nil {
			t.Fatal("index beyond color table did not panic")
		}
	}()
	b.RGB(0, 0)
}

func TestSetRGB_IndexedPanics(t *testing.T) {
	b, _ := New(1, 1, 8)
	defer func() {
		if recover() == nil {
			t.Fatal("SetRGB on indexed buffer did not panic")
		}
	}()
	b.SetRGB(0, 0, ColorRGB{})
}

func TestBlit(t *testing.T) {
	src, _ := New(4, 4, 8)
	for i := range src.Pix {
		src.Pix[i] = byte(i + 1)
	}

	for _, tc := range []struct {
		name                 string
		sx, sy, w, h, dx, dy int
		want                 []byte
	}{
		{
			name: "inside",
			sx: 1, sy: 1, w: 2, h: 2, dx: 0, dy: 0,
			want: []byte{6, 7, 0, 10, 11, 0, 0, 0, 0},
		},
		{
			name: "negative source",
			sx: -1, sy: -1, w: 2, h: 2, dx: 0, dy: 0,
			want: []byte{0, 0, 0, 0, 1, 0, 0, 0, 0},
		},
		{
			name: "negative dest",
			sx: 0, sy: 0, w: 3, h: 3, dx: -1, dy: -2,
			want: []byte{10, 11, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			name: "clipped right",
			sx: 2, sy: 3, w: 10, h: 10, dx: 1, dy: 2,
			want: []byte{0, 0, 0, 0, 0, 0, 0, 15, 16},
		},
		{
			name: "degenerate",
			sx: 5, sy: 0, w: 2, h: 2, dx: 0, dy: 0,
			want: make([]byte, 9),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dst, _ := New(3, 3, 8)
			Blit(src, tc.sx, tc.sy, tc.w, tc.h, dst, tc.dx, tc.dy)
			if string(dst.Pix) != string(tc.want) {
				t.Fatalf("got %v, want %v", dst.Pix, tc.want)
			}
		})
	}
}

func TestBlit_4bppOddOffset(t *testing.T) {
	src, _ := New(4, 1, 4)
	for x := 0; x < 4; x++ {
		src.SetPixel(x, 0, uint32(x+1))
	}
	dst, _ := New(4, 1, 4)
	Blit(src, 1, 0, 3, 1, dst, 0, 0)
	for x, want := range []uint32{2, 3, 4, 0} {
		if got := dst.Pixel(x, 0); got != want {
			t.Errorf("x=%d: %d, want %d", x, got, want)
		}
	}
}

func TestBlit_DepthMismatchPanics(t *testing.T) {
	a, _ := New(2, 2, 8)
	b, _ := New(2, 2, 24)
	defer func() {
		if recover() == nil {
			t.Fatal("mismatched blit did not panic")
		}
	}()
	Blit(a, 0, 0, 2, 2, b, 0, 0)
}

func TestOverlayKey(t *testing.T) {
	src, _ := New(3, 1, 8)
	dst, _ := New(3, 1, 8)
	copy(src.Pix, []byte{0, 5, 0})
	copy(dst.Pix, []byte{9, 9, 9})
	OverlayKey(src, 0, dst)
	if string(dst.Pix) != string([]byte{9, 5, 9}) {
		t.Fatalf("overlay = %v", dst.Pix)
	}
}

func TestEqualAndClone(t *testing.T) {
	a, _ := New(3, 2, 24)
	a.SetRGB(2, 1, ColorRGB{1, 2, 3})
	b := a.Clone()
	if !Equal(a, b) {
		t.Fatal("clone differs")
	}
	b.SetRGB(0, 0, ColorRGB{9, 9, 9})
	if Equal(a, b) {
		t.Fatal("modified clone compares equal")
	}
	if a.Pixel(0, 0) != 0 {
		t.Fatal("clone shares pixel storage")
	}
	c, _ := New(3, 2, 32)
	if Equal(a, c) {
		t.Fatal("different depths compare equal")
	}
}

func TestImageConversion(t *testing.T) {
	pal := color.Palette{color.RGBA{255, 0, 0, 255}, color.RGBA{0, 0, 255, 255}}
	p := image.NewPaletted(image.Rect(0, 0, 3, 2), pal)
	p.SetColorIndex(2, 1, 1)

	b, err := FromImage(p)
	if err != nil {
		t.Fatal(err)
	}
	if b.BPP != 4 || b.NumColors != 2 || b.Pixel(2, 1) != 1 {
		t.Fatalf("paletted: bpp=%d ncolors=%d pix=%d", b.BPP, b.NumColors, b.Pixel(2, 1))
	}
	back, ok := b.ToImage().(*image.Paletted)
	if !ok || back.ColorIndexAt(2, 1) != 1 || len(back.Palette) != 2 {
		t.Fatal("paletted round trip failed")
	}

	rgba := image.NewRGBA(image.Rect(0, 0, 2, 2))
	rgba.Set(1, 1, color.RGBA{10, 20, 30, 255})
	for i := 3; i < len(rgba.Pix); i += 4 {
		rgba.Pix[i] = 0xff
	}
	b, err = FromImage(rgba)
	if err != nil {
		t.Fatal(err)
	}
	if b.BPP != 24 {
		t.Fatalf("opaque image stored at %dbpp", b.BPP)
	}
	if c, _ := b.RGB(1, 1); c != (ColorRGB{10, 20, 30}) {
		t.Fatalf("RGB = %v", c)
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	nrgba.SetNRGBA(0, 0, color.NRGBA{10, 20, 30, 40})
	b, _ = FromImage(nrgba)
	if b.BPP != 32 {
		t.Fatalf("translucent image stored at %dbpp", b.BPP)
	}
	out := b.ToImage().(*image.NRGBA)
	if out.NRGBAAt(0, 0) != (color.NRGBA{10, 20, 30, 40}) {
		t.Fatalf("alpha lost: %v", out.NRGBAAt(0, 0))
	}
}
