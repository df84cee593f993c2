package loader

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/andewx/framevk"
)

// ImageDecoder decodes PNG, JPEG, BMP, TIFF, WebP and PPM files into RGBA8.
// An empty path yields a 2x2 checker.
type ImageDecoder struct{}

func (ImageDecoder) Decode(path string) (*framevk.TextureData, error) {
	if path == "" {
		return Checker(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	img, err := decodeImage(f, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return toTexture(img), nil
}

func decodeImage(r io.Reader, ext string) (image.Image, error) {
	switch ext {
	case ".ppm", ".pgm", ".pbm", ".pnm":
		return ppm.Decode(r)
	}
	img, _, err := image.Decode(r)
	return img, err
}

// toTexture copies img into a tightly packed RGBA buffer with its origin at (0, 0).
func toTexture(img image.Image) *framevk.TextureData {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) || rgba.Stride != 4*b.Dx() {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return &framevk.TextureData{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pixels: rgba.Pix,
	}
}

// Checker is a 2x2 white and grey texture.
func Checker() *framevk.TextureData {
	light := []byte{0xff, 0xff, 0xff, 0xff}
	dark := []byte{0x40, 0x40, 0x40, 0xff}
	var pix []byte
	pix = append(pix, light...)
	pix = append(pix, dark...)
	pix = append(pix, dark...)
	pix = append(pix, light...)
	return &framevk.TextureData{Width: 2, Height: 2, Pixels: pix}
}
