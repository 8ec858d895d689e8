package biometric

import (
	"fmt"
	"image"
	"math"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Strategy identifies a feature extraction variant.
type Strategy string

const (
	StrategySubspace  Strategy = "subspace"
	StrategyEmbedding Strategy = "embedding"
)

// FaceRegion is a detected face rectangle in image coordinates.
type FaceRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RegionFromRect converts an image rectangle.
func RegionFromRect(r image.Rectangle) FaceRegion {
	return FaceRegion{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the region as an image rectangle.
func (r FaceRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Within reports whether the region is non-empty and inside bounds.
func (r FaceRegion) Within(bounds image.Rectangle) bool {
	return r.Width > 0 && r.Height > 0 && r.Rect().In(bounds)
}

// Area returns width times height.
func (r FaceRegion) Area() int {
	return r.Width * r.Height
}

// FeatureVector is a fixed-length signature produced by an extractor.
type FeatureVector []float64

// Validate rejects empty vectors and vectors holding NaN or Inf.
func (v FeatureVector) Validate() error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidFeatureVector)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: non-finite value at %d", ErrInvalidFeatureVector, i)
		}
	}
	return nil
}

// EnrollmentResult reports the outcome of an enrollment batch.
type EnrollmentResult struct {
	OK      bool
	Reason  error
	UserID  int64
	Records []database.BiometricRecord
}

// VerificationResult reports the outcome of one verification.
type VerificationResult struct {
	Accept   bool
	Distance float64 // best distance to the claimed user's signatures
	RecordID int64   // record that produced Distance
	Reason   error

	// MatchedUserID is set on ErrImpostorMatch to the user whose signature was closer.
	MatchedUserID int64
	CrossDistance float64

	Matches  int // claimed user's signatures below the threshold
	Compared int // claimed user's signatures compared
}

// reject builds a result for a verification that never compared signatures.
func reject(reason error) VerificationResult {
	return VerificationResult{Reason: reason}
}
