package pixbuf

import (
	"encoding/binary"
	"fmt"
)

// Pixel returns the raw value of the pixel at (x, y): a color table index
// for indexed depths, a packed 16-bit word for 15/16 bpp, and R | G<<8 | B<<16
// (| A<<24 for 32 bpp) for direct color.
func (b *Buffer) Pixel(x, y int) uint32 {
	row := b.Pix[y*b.Stride:]
	switch b.BPP {
	case 4:
		p := row[x>>1]
		if x&1 != 0 {
			return uint32(p & 0xf)
		}
		return uint32(p >> 4)
	case 8:
		return uint32(row[x])
	case 15, 16:
		return uint32(binary.LittleEndian.Uint16(row[x*2:]))
	case 24:
		p := row[x*3:]
		return uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16
	case 32:
		return binary.LittleEndian.Uint32(row[x*4:])
	}
	panic(fmt.Sprintf("pixbuf: Pixel not implemented for %d bpp", b.BPP))
}

// SetPixel stores a raw pixel value, the inverse of Pixel. For indexed
// depths the value is a color table index.
func (b *Buffer) SetPixel(x, y int, pix uint32) {
	row := b.Pix[y*b.Stride:]
	switch b.BPP {
	case 4:
		p := &row[x>>1]
		if x&1 != 0 {
			*p = *p&0xf0 | byte(pix&0xf)
		} else {
			*p = *p&0x0f | byte(pix&0xf)<<4
		}
	case 8:
		row[x] = byte(pix)
	case 15, 16:
		binary.LittleEndian.PutUint16(row[x*2:], uint16(pix))
	case 24:
		p := row[x*3:]
		p[0] = byte(pix)
		p[1] = byte(pix >> 8)
		p[2] = byte(pix >> 16)
	case 32:
		binary.LittleEndian.PutUint32(row[x*4:], pix)
	default:
		panic(fmt.Sprintf("pixbuf: SetPixel not implemented for %d bpp", b.BPP))
	}
}

// RGB returns the color of the pixel at (x, y) expanded to 8 bits per
// channel, along with its raw value. Reading an index that is not covered by
// the color table panics.
func (b *Buffer) RGB(x, y int) (ColorRGB, uint32) {
	pix := b.Pixel(x, y)

	switch b.BPP {
	case 15:
		return ColorRGB{
			R: expand5(byte(pix >> 7 & 0xf8)),
			G: expand5(byte(pix >> 2 & 0xf8)),
			B: expand5(byte(pix << 3 & 0xf8)),
		}, pix
	case 16:
		return ColorRGB{
			R: expand5(byte(pix >> 8 & 0xf8)),
			G: expand6(byte(pix >> 3 & 0xfc)),
			B: expand5(byte(pix << 3 & 0xf8)),
		}, pix
	case 24, 32:
		return ColorRGB{R: byte(pix), G: byte(pix >> 8), B: byte(pix >> 16)}, pix
	}

	if int(pix) >= b.NumColors {
		panic(fmt.Sprintf("pixbuf: pixel (%d, %d) index %d outside %d-entry color table", x, y, pix, b.NumColors))
	}
	return b.Palette[pix], pix
}

// SetRGB packs c into the pixel at (x, y). Only direct color depths are
// supported; indexed buffers take palette indices through SetPixel. For 32
// bpp the fourth byte is left untouched.
func (b *Buffer) SetRGB(x, y int, c ColorRGB) {
	switch b.BPP {
	case 15:
		b.SetPixel(x, y, uint32(c.R&0xf8)<<7|uint32(c.G&0xf8)<<2|uint32(c.B)>>3)
	case 16:
		b.SetPixel(x, y, uint32(c.R&0xf8)<<8|uint32(c.G&0xfc)<<3|uint32(c.B)>>3)
	case 24:
		p := b.Pix[y*b.Stride+x*3:]
		p[0], p[1], p[2] = c.R, c.G, c.B
	case 32:
		p := b.Pix[y*b.Stride+x*4:]
		p[0], p[1], p[2] = c.R, c.G, c.B
	default:
		panic(fmt.Sprintf("pixbuf: SetRGB not implemented for %d bpp", b.BPP))
	}
}

// expand5 fills the three low bits of a 5-bit channel held in the top of the
// byte with copies of the channel's lowest bit.
func expand5(v byte) byte {
	if v&8 != 0 {
		v |= 7
	}
	return v
}

// expand6 is expand5 for 6-bit channels.
func expand6(v byte) byte {
	if v&4 != 0 {
		v |= 3
	}
	return v
}
