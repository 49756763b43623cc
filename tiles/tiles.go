// Package tiles cuts images into fixed size tiles for tile based video
// hardware.
package tiles

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Raimguzhinov/imgquant/pixbuf"
)

// ErrInvalidTileSize is returned for non-positive tile dimensions.
var ErrInvalidTileSize = errors.New("tiles: invalid tile size")

// Map records which tile of the strip covers each cell of the original
// image, row-major, Columns*Rows entries.
type Map struct {
	Columns int
	Rows    int
	IDs     []int
}

// Split rearranges img into a strip tw pixels wide with one th pixel high
// tile after another, scanning the source left to right, top to bottom.
// Cells extending past the source edges are padded with pixel value 0. With
// dedup set, a tile whose bytes match an earlier one is not repeated in the
// strip and the map points at the earlier tile instead.
func Split(img *pixbuf.Buffer, tw, th int, dedup bool) (*pixbuf.Buffer, *Map, error) {
	if tw < 1 || th < 1 {
		return nil, nil, fmt.Errorf("%w: %dx%d", ErrInvalidTileSize, tw, th)
	}
	cols := (img.Width + tw - 1) / tw
	rows := (img.Height + th - 1) / th
	ntiles := cols * rows

	strip, err := pixbuf.New(tw, ntiles*th, img.BPP)
	if err != nil {
		return nil, nil, fmt.Errorf("tiles: strip of %d tiles: %w", ntiles, err)
	}
	strip.SetPalette(img.Colors())

	m := &Map{Columns: cols, Rows: rows, IDs: make([]int, 0, ntiles)}
	tileBytes := strip.Stride * th
	next := 0
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			// The slot may still hold a duplicate dropped in the previous round.
			clear(strip.Pix[next*tileBytes : (next+1)*tileBytes])
			pixbuf.Blit(img, cx*tw, cy*th, tw, th, strip, 0, next*th)
			if dedup {
				if id := match(strip.Pix, next, tileBytes); id >= 0 {
					m.IDs = append(m.IDs, id)
					continue
				}
			}
			m.IDs = append(m.IDs, next)
			next++
		}
	}

	if next < ntiles {
		strip.Height = next * th
		strip.Pix = strip.Pix[:next*tileBytes]
	}
	return strip, m, nil
}

// Unique returns the number of distinct tiles referenced by the map.
func (m *Map) Unique() int {
	n := 0
	for _, id := range m.IDs {
		if id >= n {
			n = id + 1
		}
	}
	return n
}

// match compares tile n of a strip against the tiles before it.
func match(pix []byte, n, size int) int {
	cand := pix[n*size : (n+1)*size]
	for i := 0; i < n; i++ {
		if bytes.Equal(pix[i*size:(i+1)*size], cand) {
			return i
		}
	}
	return -1
}

// WriteTo writes the tile ids as 16-bit big-endian words, the layout the
// Mega Drive VDP name tables use.
func (m *Map) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, 2*len(m.IDs))
	for i, id := range m.IDs {
		if id < 0 || id > math.MaxUint16 {
			return 0, fmt.Errorf("tiles: tile id %d does not fit in 16 bits", id)
		}
		binary.BigEndian.PutUint16(buf[2*i:], uint16(id))
	}
	n, err := w.Write(buf)
	return int64(n), err
}
