package biometric

import (
	"fmt"
	"image"
	"image/color"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"golang.org/x/image/draw"
)

// RawVectorLen is the length of a preprocessed face vector.
const RawVectorLen = constants.CanonicalFaceSize * constants.CanonicalFaceSize

// Preprocess crops the face region, resizes it to the canonical square,
// converts it to grayscale and returns the intensities scaled to [0,1] in
// row-major order.
func Preprocess(img image.Image, region FaceRegion) ([]float64, error) {
	if !region.Within(img.Bounds()) {
		return nil, fmt.Errorf("face region %+v outside image bounds %v", region, img.Bounds())
	}

	size := constants.CanonicalFaceSize
	scaled := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), img, region.Rect(), draw.Src, nil)

	raw := make([]float64, 0, RawVectorLen)
	for y := range size {
		for x := range size {
			g := color.GrayModel.Convert(scaled.At(x, y)).(color.Gray)
			raw = append(raw, float64(g.Y)/255.0)
		}
	}
	return raw, nil
}
