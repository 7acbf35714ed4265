// Package frames turns encoded image payloads into packed RGB frames ready to
// be piped to an encoder.
package frames

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"episodereel/internal/services"
)

// Frame is a packed rgb24 image: Pix holds Height rows of Width*3 bytes.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// Size returns the number of bytes one frame occupies on the wire.
func (f Frame) Size() int {
	return f.Width * f.Height * 3
}

// Decode decodes an encoded image (JPEG in practice) into an RGB frame.
func Decode(payload []byte) (Frame, error) {
	if len(payload) == 0 {
		return Frame{}, services.Wrap(services.ErrDecode, "frames", "decode", "empty payload", nil)
	}
	img, err := imaging.Decode(bytes.NewReader(payload))
	if err != nil {
		return Frame{}, services.Wrap(services.ErrDecode, "frames", "decode", fmt.Sprintf("%d byte payload", len(payload)), err)
	}
	return FromImage(img), nil
}

// FromImage packs any image into an RGB frame, dropping alpha.
func FromImage(img image.Image) Frame {
	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	pix := make([]byte, 0, width*height*3)
	for y := 0; y < height; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+width*4]
		for x := 0; x < len(row); x += 4 {
			pix = append(pix, row[x], row[x+1], row[x+2])
		}
	}
	return Frame{Width: width, Height: height, Pix: pix}
}

// Image expands the frame back into an opaque NRGBA image.
func (f Frame) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i+2 < len(f.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Pix[i]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xFF
	}
	return img
}

// Resize scales the frame to a size x size square. A non-positive size or a
// frame already at that size is returned unchanged.
func Resize(f Frame, size int) Frame {
	if size <= 0 || (f.Width == size && f.Height == size) {
		return f
	}
	return FromImage(imaging.Resize(f.Image(), size, size, imaging.Lanczos))
}
