// Package imaging reads character crops as flat grayscale vectors.
package imaging

import (
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decoder turns an image file into row-major 8-bit intensities.
type Decoder interface {
	Decode(path string) ([]float64, error)
}

// FileDecoder decodes any format registered with the image package.
type FileDecoder struct{}

// Decode opens path, converts it to grayscale and flattens it row by row.
// Values are raw intensities in [0,255].
func (FileDecoder) Decode(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return Flatten(img), nil
}

// Flatten returns the grayscale intensities of img in row-major order.
// Alpha is ignored: a fully transparent white pixel reads as 255.
func Flatten(img image.Image) []float64 {
	rect := img.Bounds()
	out := make([]float64, 0, rect.Dx()*rect.Dy())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			out = append(out, float64(luma(img.At(x, y))))
		}
	}
	return out
}

// luma converts c to gray from its straight (non-premultiplied) RGB.
func luma(c color.Color) uint8 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = 0xff
	return color.GrayModel.Convert(n).(color.Gray).Y
}
