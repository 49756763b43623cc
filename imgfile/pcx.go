package imgfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Raimguzhinov/imgquant/pixbuf"
)

// PCXHeader is the fixed 128 byte header of a ZSoft PCX file.
type PCXHeader struct {
	Manufacturer byte
	Version      byte
	Encoding     byte
	BitsPerPixel byte
	XMin, YMin   uint16
	XMax, YMax   uint16
	HDpi, VDpi   uint16
	Colormap     [48]byte
	Reserved     byte
	NumPlanes    byte
	BytesPerLine uint16
	PaletteInfo  uint16
	HScreenSize  uint16
	VScreenSize  uint16
	Filler       [54]byte
}

const (
	PCXManufacturer  = 0x0A
	PCXPaletteMarker = 0x0C
	RLEThreshold     = 0xC0
	PCXPaletteSize   = 768
	PCXHeaderSize    = 128
	PCXPaletteOffset = PCXPaletteSize + 1
)

// DecodePCX reads an 8 bit PCX image: a single plane becomes an 8 bpp
// indexed buffer, three planes a 24 bpp one.
func DecodePCX(r io.ReadSeeker) (*pixbuf.Buffer, error) {
	var hdr PCXHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: short header", ErrNotPCX)
		}
		return nil, err
	}
	if hdr.Manufacturer != PCXManufacturer || hdr.Encoding != 1 {
		return nil, fmt.Errorf("%w: manufacturer %#x, encoding %d", ErrNotPCX, hdr.Manufacturer, hdr.Encoding)
	}
	if hdr.BitsPerPixel != 8 || (hdr.NumPlanes != 1 && hdr.NumPlanes != 3) {
		return nil, fmt.Errorf("%w: pcx with %d bits and %d planes", ErrUnsupportedFormat, hdr.BitsPerPixel, hdr.NumPlanes)
	}
	if hdr.XMax < hdr.XMin || hdr.YMax < hdr.YMin {
		return nil, fmt.Errorf("%w: pcx window (%d,%d)-(%d,%d)", ErrNotPCX, hdr.XMin, hdr.YMin, hdr.XMax, hdr.YMax)
	}
	w := int(hdr.XMax-hdr.XMin) + 1
	h := int(hdr.YMax-hdr.YMin) + 1
	bytesPerLine := int(hdr.BytesPerLine)
	if bytesPerLine < w {
		return nil, fmt.Errorf("%w: %d bytes per line for %d pixels", ErrNotPCX, bytesPerLine, w)
	}

	bpp := 8
	if hdr.NumPlanes == 3 {
		bpp = 24
	}
	img, err := pixbuf.New(w, h, bpp)
	if err != nil {
		return nil, err
	}

	if bpp == 8 {
		pal, err := readPCXPalette(r, &hdr)
		if err != nil {
			return nil, err
		}
		img.SetPalette(pal)
	}

	if _, err := r.Seek(PCXHeaderSize, io.SeekStart); err != nil {
		return nil, err
	}
	br := bufio.NewReader(r)
	planes := int(hdr.NumPlanes)
	line := make([]byte, planes*bytesPerLine)
	for y := 0; y < h; y++ {
		if err := readRLELine(br, line); err != nil {
			return nil, fmt.Errorf("imgfile: pcx scanline %d: %w", y, err)
		}
		for x := 0; x < w; x++ {
			if planes == 1 {
				img.SetPixel(x, y, uint32(line[x]))
				continue
			}
			img.SetRGB(x, y, pixbuf.ColorRGB{
				R: line[x],
				G: line[bytesPerLine+x],
				B: line[2*bytesPerLine+x],
			})
		}
	}
	return img, nil
}

// readPCXPalette returns the 256 color table at the end of the file, or the
// 16 color header palette of older versions.
func readPCXPalette(r io.ReadSeeker, hdr *PCXHeader) ([]pixbuf.ColorRGB, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	var raw []byte
	if size >= PCXHeaderSize+PCXPaletteOffset {
		if _, err := r.Seek(size-PCXPaletteOffset, io.SeekStart); err != nil {
			return nil, err
		}
		buf := make([]byte, PCXPaletteOffset)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		if buf[0] == PCXPaletteMarker {
			raw = buf[1:]
		}
	}
	if raw == nil {
		raw = hdr.Colormap[:]
	}
	pal := make([]pixbuf.ColorRGB, len(raw)/3)
	for i := range pal {
		pal[i] = pixbuf.ColorRGB{R: raw[i*3], G: raw[i*3+1], B: raw[i*3+2]}
	}
	if len(pal) < 256 {
		// Indices past a 16 color table read as black.
		pal = append(pal, make([]pixbuf.ColorRGB, 256-len(pal))...)
	}
	return pal, nil
}

// readRLELine decodes one scanline. A run that would cross the end of the
// line is cut short.
func readRLELine(br *bufio.Reader, line []byte) error {
	for x := 0; x < len(line); {
		b, err := br.ReadByte()
		if err != nil {
			return unexpected(err)
		}
		if b < RLEThreshold {
			line[x] = b
			x++
			continue
		}
		count := int(b & 0x3F)
		v, err := br.ReadByte()
		if err != nil {
			return unexpected(err)
		}
		for j := 0; j < count && x < len(line); j++ {
			line[x] = v
			x++
		}
	}
	return nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// EncodePCX writes an 8 bpp indexed buffer as a version 5 PCX file with a
// trailing 256 color table. Other depths are written as 24 bit, three
// planes.
func EncodePCX(w io.Writer, img *pixbuf.Buffer) error {
	if img.Width > 0xffff || img.Height > 0xffff {
		return fmt.Errorf("%w: %dx%d too large for pcx", ErrUnsupportedFormat, img.Width, img.Height)
	}
	planes := 3
	if img.Indexed() {
		planes = 1
	}
	bytesPerLine := (img.Width + 1) &^ 1
	hdr := PCXHeader{
		Manufacturer: PCXManufacturer,
		Version:      5,
		Encoding:     1,
		BitsPerPixel: 8,
		XMax:         uint16(img.Width - 1),
		YMax:         uint16(img.Height - 1),
		HDpi:         72,
		VDpi:         72,
		NumPlanes:    byte(planes),
		BytesPerLine: uint16(bytesPerLine),
		PaletteInfo:  1,
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &hdr); err != nil {
		return err
	}

	line := make([]byte, planes*bytesPerLine)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c, pix := img.RGB(x, y)
			if planes == 1 {
				line[x] = byte(pix)
				continue
			}
			line[x] = c.R
			line[bytesPerLine+x] = c.G
			line[2*bytesPerLine+x] = c.B
		}
		if err := writeRLELine(bw, line); err != nil {
			return err
		}
	}

	if planes == 1 {
		if err := bw.WriteByte(PCXPaletteMarker); err != nil {
			return err
		}
		var raw [PCXPaletteSize]byte
		for i, c := range img.Colors() {
			raw[i*3], raw[i*3+1], raw[i*3+2] = c.R, c.G, c.B
		}
		if _, err := bw.Write(raw[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeRLELine(bw *bufio.Writer, line []byte) error {
	for x := 0; x < len(line); {
		v := line[x]
		n := 1
		for x+n < len(line) && line[x+n] == v && n < 0x3F {
			n++
		}
		if n > 1 || v >= RLEThreshold {
			if err := bw.WriteByte(RLEThreshold | byte(n)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte(v); err != nil {
			return err
		}
		x += n
	}
	return nil
}
