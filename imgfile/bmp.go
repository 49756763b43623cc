package imgfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Raimguzhinov/imgquant/pixbuf"
)

const (
	BMPFileHeaderSize = 14
	BMPInfoHeaderSize = 40
	BMPHeaderSize     = BMPFileHeaderSize + BMPInfoHeaderSize
	BiRGB             = 0
)

// EncodeBMP writes img as an uncompressed bottom-up BMP. Indexed buffers
// keep their depth (4 or 8 bits) and color table; direct color buffers are
// written as 24 bit.
func EncodeBMP(w io.Writer, img *pixbuf.Buffer) error {
	bitCount := 24
	palCount := 0
	if img.Indexed() {
		bitCount = img.BPP
		palCount = 1 << img.BPP
	}
	rowSize := (img.Width*bitCount + 31) / 32 * 4
	dataSize := rowSize * img.Height
	offset := BMPHeaderSize + palCount*4
	fileSize := offset + dataSize
	if int64(fileSize) > 0xffffffff {
		return fmt.Errorf("%w: %dx%d too large for bmp", ErrUnsupportedFormat, img.Width, img.Height)
	}

	var hdr [BMPHeaderSize]byte
	hdr[0], hdr[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(hdr[2:], uint32(fileSize))
	binary.LittleEndian.PutUint32(hdr[10:], uint32(offset))

	dib := hdr[BMPFileHeaderSize:]
	binary.LittleEndian.PutUint32(dib[0:], BMPInfoHeaderSize)
	binary.LittleEndian.PutUint32(dib[4:], uint32(img.Width))
	binary.LittleEndian.PutUint32(dib[8:], uint32(img.Height))
	binary.LittleEndian.PutUint16(dib[12:], 1)
	binary.LittleEndian.PutUint16(dib[14:], uint16(bitCount))
	binary.LittleEndian.PutUint32(dib[16:], BiRGB)
	binary.LittleEndian.PutUint32(dib[20:], uint32(dataSize))
	binary.LittleEndian.PutUint32(dib[24:], 2835) // 72 dpi
	binary.LittleEndian.PutUint32(dib[28:], 2835)
	binary.LittleEndian.PutUint32(dib[32:], uint32(palCount))

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}
	for i := 0; i < palCount; i++ {
		c := img.Palette[i]
		if _, err := bw.Write([]byte{c.B, c.G, c.R, 0}); err != nil {
			return err
		}
	}

	line := make([]byte, rowSize)
	for y := img.Height - 1; y >= 0; y-- {
		switch bitCount {
		case 4, 8:
			// Packed indices use the same layout in memory and on disk.
			n := copy(line, img.Pix[y*img.Stride:y*img.Stride+img.Stride])
			clear(line[n:])
		default:
			for x := 0; x < img.Width; x++ {
				c, _ := img.RGB(x, y)
				line[x*3], line[x*3+1], line[x*3+2] = c.B, c.G, c.R
			}
		}
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}
