package assets

import (
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/gogpu/gputypes"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Texture is a 2D image.
type Texture struct {
	Width, Height uint32
	Format        gputypes.TextureFormat
	Pixels        []byte
}

// DecodeTexture decodes a PNG, JPEG, BMP or WebP image into an RGBA8
// texture.
func DecodeTexture(r io.Reader) (*Texture, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode texture")
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.Errorf("decode texture: empty %s image", format)
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*bounds.Dx() || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	return &Texture{
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Format: gputypes.TextureFormatRGBA8Unorm,
		Pixels: rgba.Pix,
	}, nil
}
