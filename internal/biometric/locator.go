package biometric

import (
	"image"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// FaceLocator finds face regions in an image. An empty result is not an
// error; callers decide whether zero faces is acceptable.
type FaceLocator interface {
	Locate(img image.Image) ([]FaceRegion, error)
}

// LocatorParams tunes cascade-style detectors.
type LocatorParams struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int // minimum face edge in pixels
}

// DefaultLocatorParams returns scaleFactor=1.1, minNeighbors=5, minSize=30.
func DefaultLocatorParams() LocatorParams {
	return LocatorParams{
		ScaleFactor:  constants.DefaultScaleFactor,
		MinNeighbors: constants.DefaultMinNeighbors,
		MinSize:      constants.DefaultMinFaceSize,
	}
}

// ClipRegions clips rectangles to bounds and drops the ones that end up empty.
func ClipRegions(rects []image.Rectangle, bounds image.Rectangle) []FaceRegion {
	regions := make([]FaceRegion, 0, len(rects))
	for _, r := range rects {
		r = r.Intersect(bounds)
		if r.Empty() {
			continue
		}
		regions = append(regions, RegionFromRect(r))
	}
	return regions
}

// SingleFace enforces the exactly-one-face policy.
func SingleFace(regions []FaceRegion) (FaceRegion, error) {
	switch len(regions) {
	case 0:
		return FaceRegion{}, ErrNoFaceDetected
	case 1:
		return regions[0], nil
	default:
		return FaceRegion{}, ErrMultipleFacesDetected
	}
}

// locateSingle runs the locator and applies SingleFace.
func locateSingle(l FaceLocator, img image.Image) (FaceRegion, error) {
	regions, err := l.Locate(img)
	if err != nil {
		return FaceRegion{}, err
	}
	return SingleFace(regions)
}
