package tiles

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Raimguzhinov/imgquant/pixbuf"
)

// checker builds a 4x4 8 bpp image made of 2x2 blocks: A B / B A.
func checker(t *testing.T) *pixbuf.Buffer {
	t.Helper()
	img, err := pixbuf.New(4, 4, 8)
	if err != nil {
		t.Fatal(err)
	}
	img.SetPalette([]pixbuf.ColorRGB{{}, {R: 255}, {G: 255}})
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			v := uint32(1)
			if (x/2+y/2)&1 != 0 {
				v = 2
			}
			img.SetPixel(x, y, v)
		}
	}
	return img
}

func TestSplit(t *testing.T) {
	for _, tc := range []struct {
		name       string
		dedup      bool
		wantHeight int
		wantIDs    []int
	}{
		{name: "all tiles", dedup: false, wantHeight: 8, wantIDs: []int{0, 1, 2, 3}},
		{name: "dedup", dedup: true, wantHeight: 4, wantIDs: []int{0, 1, 1, 0}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			img := checker(t)
			strip, m, err := Split(img, 2, 2, tc.dedup)
			if err != nil {
				t.Fatal(err)
			}
			if strip.Width != 2 || strip.Height != tc.wantHeight {
				t.Fatalf("strip is %dx%d, want 2x%d", strip.Width, strip.Height, tc.wantHeight)
			}
			if len(strip.Pix) != strip.Stride*strip.Height {
				t.Fatalf("strip holds %d bytes for %d rows", len(strip.Pix), strip.Height)
			}
			if m.Columns != 2 || m.Rows != 2 {
				t.Fatalf("map is %dx%d, want 2x2", m.Columns, m.Rows)
			}
			for i, want := range tc.wantIDs {
				if m.IDs[i] != want {
					t.Fatalf("ids = %v, want %v", m.IDs, tc.wantIDs)
				}
			}
			if strip.NumColors != 3 || strip.Palette[1] != img.Palette[1] {
				t.Fatalf("color table not carried over: %v", strip.Colors())
			}
			if strip.Pixel(0, 0) != 1 || strip.Pixel(1, 3) != 2 {
				t.Fatalf("unexpected strip contents %v", strip.Pix)
			}
			if got, want := m.Unique(), tc.wantHeight/2; got != want {
				t.Fatalf("Unique = %d, want %d", got, want)
			}
		})
	}
}

func TestSplit_PadsPartialTiles(t *testing.T) {
	img, _ := pixbuf.New(3, 1, 24)
	for x := 0; x < 3; x++ {
		img.SetRGB(x, 0, pixbuf.ColorRGB{R: 10, G: 20, B: 30})
	}
	strip, m, err := Split(img, 2, 2, false)
	if err != nil {
		t.Fatal(err)
	}
	if m.Columns != 2 || m.Rows != 1 || strip.Height != 4 {
		t.Fatalf("map %dx%d, strip height %d", m.Columns, m.Rows, strip.Height)
	}
	for _, p := range []struct {
		x, y int
		want uint32
	}{
		{0, 0, 0x1e140a},
		{1, 0, 0x1e140a},
		{0, 1, 0},
		{0, 2, 0x1e140a},
		{1, 2, 0},
		{1, 3, 0},
	} {
		if got := strip.Pixel(p.x, p.y); got != p.want {
			t.Errorf("strip (%d, %d) = %#x, want %#x", p.x, p.y, got, p.want)
		}
	}
}

func TestSplit_4bppOddWidth(t *testing.T) {
	img, _ := pixbuf.New(6, 1, 4)
	for x := 0; x < 6; x++ {
		img.SetPixel(x, 0, uint32(x%3+1))
	}
	strip, m, err := Split(img, 3, 1, true)
	if err != nil {
		t.Fatal(err)
	}
	if strip.Height != 1 || len(m.IDs) != 2 || m.IDs[1] != 0 {
		t.Fatalf("strip height %d, ids %v", strip.Height, m.IDs)
	}
	for x := 0; x < 3; x++ {
		if got := strip.Pixel(x, 0); got != uint32(x+1) {
			t.Fatalf("strip (%d, 0) = %d, want %d", x, got, x+1)
		}
	}
}

func TestSplit_InvalidTileSize(t *testing.T) {
	img := checker(t)
	for _, size := range [][2]int{{0, 8}, {8, 0}, {-1, -1}} {
		if _, _, err := Split(img, size[0], size[1], false); !errors.Is(err, ErrInvalidTileSize) {
			t.Errorf("Split(%dx%d) error = %v", size[0], size[1], err)
		}
	}
}

func TestMap_WriteTo(t *testing.T) {
	m := &Map{Columns: 3, Rows: 1, IDs: []int{1, 0x1234, 0xffff}}
	var buf bytes.Buffer
	n, err := m.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x00, 0x01, 0x12, 0x34, 0xff, 0xff}
	if n != int64(len(want)) || !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("wrote %d bytes % x, want % x", n, buf.Bytes(), want)
	}

	m.IDs = append(m.IDs, 0x10000)
	buf.Reset()
	if _, err := m.WriteTo(&buf); err == nil {
		t.Fatal("oversized id accepted")
	}
	if buf.Len() != 0 {
		t.Fatal("partial map written")
	}
}
