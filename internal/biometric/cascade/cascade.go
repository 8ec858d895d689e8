// Package cascade locates frontal faces with an OpenCV Haar cascade.
package cascade

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"gocv.io/x/gocv"
)

// fallbackPaths are tried when no cascade file is configured.
var fallbackPaths = []string{
	"haarcascade_frontalface_default.xml",
	"/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/usr/local/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/usr/share/opencv/haarcascades/haarcascade_frontalface_default.xml",
}

// Locator implements biometric.FaceLocator. The classifier is not safe for
// concurrent use, so detections are serialized.
type Locator struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	params     biometric.LocatorParams
	path       string
}

var _ biometric.FaceLocator = (*Locator)(nil)

// New loads the cascade at path, or the first fallback that exists when
// path is empty.
func New(path string, params biometric.LocatorParams) (*Locator, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(resolved) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load face cascade from %s", resolved)
	}
	return &Locator{classifier: classifier, params: params, path: resolved}, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("face cascade: %w", err)
		}
		return path, nil
	}
	for _, p := range fallbackPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.New("face cascade not found, set FACE_CASCADE_PATH")
}

// Path returns the loaded cascade file.
func (l *Locator) Path() string {
	return l.path
}

// Locate returns every detected face, clipped to the image bounds.
func (l *Locator) Locate(img image.Image) ([]biometric.FaceRegion, error) {
	mat, err := gocv.ImageToMatRGB(zeroOrigin(img))
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, biometric.ErrCorruptImage
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray); err != nil {
		return nil, fmt.Errorf("failed to convert image to grayscale: %w", err)
	}

	equalized := gocv.NewMat()
	defer equalized.Close()
	gocv.EqualizeHist(gray, &equalized)

	minSize := image.Pt(l.params.MinSize, l.params.MinSize)

	l.mu.Lock()
	rects := l.classifier.DetectMultiScaleWithParams(equalized, l.params.ScaleFactor, l.params.MinNeighbors, 0, minSize, image.Point{})
	l.mu.Unlock()

	origin := img.Bounds().Min
	for i := range rects {
		rects[i] = rects[i].Add(origin)
	}
	return biometric.ClipRegions(rects, img.Bounds()), nil
}

// zeroOrigin copies img into an RGBA starting at (0,0) when its bounds are
// offset, as sub-images are. Detections are shifted back by the caller.
func zeroOrigin(img image.Image) image.Image {
	b := img.Bounds()
	if b.Min == (image.Point{}) {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Close releases the classifier.
func (l *Locator) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.classifier.Close()
}
