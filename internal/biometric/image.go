package biometric

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// DecodeImage decodes PNG, JPEG, GIF or BMP bytes. Undecodable or empty
// input is reported as ErrCorruptImage.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrCorruptImage)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: zero-sized image", ErrCorruptImage)
	}
	return img, nil
}

// CropFace copies the face region, grown by padding (relative to the face
// size) and clipped to the image, into a new RGBA image.
func CropFace(img image.Image, region FaceRegion, padding float64) image.Image {
	padX := int(float64(region.Width) * padding)
	padY := int(float64(region.Height) * padding)
	r := image.Rect(region.X-padX, region.Y-padY, region.X+region.Width+padX, region.Y+region.Height+padY).
		Intersect(img.Bounds())

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(dst, image.Point{}, img, r, draw.Src, nil)
	return dst
}

// EncodeJPEG encodes an image for the embedding service.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
