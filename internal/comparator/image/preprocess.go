package image

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// InputSize is the square side the backbone expects.
const InputSize = 224

// Channels is the number of color channels fed to the backbone. Alpha is dropped.
const Channels = 3

// ImageNet normalization constants.
var (
	channelMean = [Channels]float32{0.485, 0.456, 0.406}
	channelStd  = [Channels]float32{0.229, 0.224, 0.225}
)

// Tensor is a CHW float32 image tensor.
type Tensor struct {
	Channels int       `json:"channels"`
	Height   int       `json:"height"`
	Width    int       `json:"width"`
	Data     []float32 `json:"data"`
}

// Preprocess decodes image bytes and produces the normalized input tensor:
// resize to InputSize x InputSize (bilinear), drop alpha, scale to [0, 1],
// then normalize each channel with the ImageNet mean and std.
func Preprocess(data []byte) (Tensor, error) {
	if len(data) == 0 {
		return Tensor{}, fmt.Errorf("empty image: %w", domain.ErrEncoding)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Tensor{}, fmt.Errorf("decode image: %w: %w", domain.ErrEncoding, err)
	}
	if src.Bounds().Empty() {
		return Tensor{}, fmt.Errorf("decoded %s image has no pixels: %w", format, domain.ErrEncoding)
	}

	// NRGBA keeps color channels non-premultiplied, so dropping alpha leaves raw RGB.
	dst := image.NewNRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	plane := InputSize * InputSize
	t := Tensor{
		Channels: Channels,
		Height:   InputSize,
		Width:    InputSize,
		Data:     make([]float32, Channels*plane),
	}
	for y := 0; y < InputSize; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < InputSize; x++ {
			px := row[x*4 : x*4+4]
			idx := y*InputSize + x
			for c := 0; c < Channels; c++ {
				v := float32(px[c]) / 255
				t.Data[c*plane+idx] = (v - channelMean[c]) / channelStd[c]
			}
		}
	}
	return t, nil
}
