package classifier

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// InputSize is the square edge length the model was trained on.
const InputSize = 64

// Tensor is a batched NHWC float32 tensor with values in [0,1].
type Tensor [][][][]float32

// Preprocess decodes image bytes and produces the exact tensor shape the
// classifier expects: resize to 64x64 with no aspect-ratio preservation,
// drop any alpha channel, scale pixels to [0,1], batch dimension of 1.
func Preprocess(data []byte) (Tensor, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	// Stretch to the fixed input square. ApproxBiLinear matches the
	// quality of the training-time resize closely enough.
	scaled := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	rows := make([][][]float32, InputSize)
	for y := 0; y < InputSize; y++ {
		row := make([][]float32, InputSize)
		for x := 0; x < InputSize; x++ {
			c := scaled.RGBAAt(x, y)
			row[x] = []float32{
				float32(c.R) / 255,
				float32(c.G) / 255,
				float32(c.B) / 255,
			}
		}
		rows[y] = row
	}

	return Tensor{rows}, nil
}

// PreprocessFile reads and preprocesses an image from disk.
func PreprocessFile(path string) (Tensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return Preprocess(data)
}
