package vision

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// InputSize is the square side the expression model was trained on.
const InputSize = 48

// ErrInvalidImageData is returned for payloads that are not a decodable image.
var ErrInvalidImageData = errors.New("invalid image data")

// Tensor is a single-image NHWC batch: shape (1, 48, 48, 1), values in [0,1].
type Tensor struct {
	Shape [4]int64
	Data  []float32
}

// DecodeBase64Image decodes a base64 image payload. A data URL header
// ("data:image/png;base64,") is stripped when present.
func DecodeBase64Image(payload string) ([]byte, error) {
	if _, after, found := strings.Cut(payload, ","); found {
		payload = after
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty base64 payload", ErrInvalidImageData)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some canvas encoders drop the padding.
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidImageData, err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty base64 payload", ErrInvalidImageData)
	}
	return data, nil
}

// Preprocess decodes an image and converts it into the classifier input tensor:
// grayscale, resized to 48x48, intensities scaled to [0,1].
func Preprocess(data []byte) (Tensor, error) {
	if len(data) == 0 {
		return Tensor{}, fmt.Errorf("%w: no bytes", ErrInvalidImageData)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Tensor{}, fmt.Errorf("%w: %v", ErrInvalidImageData, err)
	}

	gray := resizeGray(toGray(img), InputSize, InputSize)

	out := make([]float32, InputSize*InputSize)
	for y := 0; y < InputSize; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+InputSize]
		for x, v := range row {
			out[y*InputSize+x] = float32(v) / 255.0
		}
	}

	return Tensor{
		Shape: [4]int64{1, InputSize, InputSize, 1},
		Data:  out,
	}, nil
}

// toGray converts to 8-bit luma (ITU-R 601 weights).
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(gray, gray.Bounds(), img, b.Min, xdraw.Src)
	return gray
}

// resizeGray performs a deterministic Catmull-Rom (bicubic) resize.
func resizeGray(src *image.Gray, targetW, targetH int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, targetW, targetH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}
