// Package imgfile moves pixel buffers in and out of image files: PNG, JPEG,
// BMP, QOI and PCX, GIF for reading only, plus the raw palette, shade table
// and tilemap dumps consumed by console toolchains.
package imgfile

import (
	"bytes"
	"errors"
	"fmt"
	_ "image/gif" // registers the GIF decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/klauspost/compress/zstd"
	"github.com/xfmoulet/qoi"
	_ "golang.org/x/image/bmp" // registers the BMP decoder

	"github.com/Raimguzhinov/imgquant/pixbuf"
)

var (
	// ErrUnsupportedFormat is returned for file types or layouts that
	// cannot be read or written.
	ErrUnsupportedFormat = errors.New("imgfile: unsupported format")
	// ErrNotPCX is returned when a file does not carry a valid PCX header.
	ErrNotPCX = errors.New("imgfile: not a pcx file")
)

// JPEGQuality is used for .jpg and .jpeg output.
const JPEGQuality = 95

// Load reads an image file into a pixel buffer. PCX files are recognized by
// their first byte; everything else goes through the registered image
// decoders (PNG, JPEG, GIF, BMP, QOI).
func Load(path string) (*pixbuf.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic [1]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, fmt.Errorf("imgfile: %s: %w", path, err)
	}
	if magic[0] == PCXManufacturer {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		img, err := DecodePCX(f)
		if err != nil {
			return nil, fmt.Errorf("imgfile: %s: %w", path, err)
		}
		return img, nil
	}

	src, err := imgio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imgfile: %s: %w", path, err)
	}
	img, err := pixbuf.FromImage(src)
	if err != nil {
		return nil, fmt.Errorf("imgfile: %s: %w", path, err)
	}
	return img, nil
}

// Save writes img in the format named by the file extension.
func Save(path string, img *pixbuf.Buffer) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		return imgio.Save(path, img.ToImage(), imgio.PNGEncoder())
	case ".jpg", ".jpeg":
		return imgio.Save(path, img.ToImage(), imgio.JPEGEncoder(JPEGQuality))
	case ".bmp":
		return writeFile(path, func(w io.Writer) error { return EncodeBMP(w, img) })
	case ".pcx":
		return writeFile(path, func(w io.Writer) error { return EncodePCX(w, img) })
	case ".qoi":
		return writeFile(path, func(w io.Writer) error { return qoi.Encode(w, img.ToImage()) })
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// WritePalette dumps the color table as consecutive R, G, B bytes.
func WritePalette(path string, colors []pixbuf.ColorRGB) error {
	raw := make([]byte, 0, len(colors)*3)
	for _, c := range colors {
		raw = append(raw, c.R, c.G, c.B)
	}
	return WriteRaw(path, raw)
}

// WriteShadeLUT dumps a shade lookup table, one byte per entry.
func WriteShadeLUT(path string, lut []int) error {
	raw := make([]byte, len(lut))
	for i, v := range lut {
		if v < 0 || v > 0xff {
			return fmt.Errorf("imgfile: shade table entry %d is %d", i, v)
		}
		raw[i] = byte(v)
	}
	return WriteRaw(path, raw)
}

// WriteRaw stores data at path, zstd compressed when the name ends in .zst.
func WriteRaw(path string, data []byte) error {
	return writeFile(path, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}

// WriteTo is WriteRaw for anything that serializes itself, such as a
// tilemap.
func WriteTo(path string, src io.WriterTo) error {
	return writeFile(path, func(w io.Writer) error {
		_, err := src.WriteTo(w)
		return err
	})
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.EqualFold(filepath.Ext(path), ".zst") {
		return write(f)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return err
	}
	if err := write(enc); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadRaw returns the contents of path, decompressing .zst files.
func ReadRaw(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(path), ".zst") {
		return data, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
