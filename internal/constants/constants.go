// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face locator defaults
const (
	// DefaultScaleFactor is how much the cascade window grows between scales
	DefaultScaleFactor = 1.1

	// DefaultMinNeighbors is the number of overlapping detections required to keep a face
	DefaultMinNeighbors = 5

	// DefaultMinFaceSize is the smallest face edge (pixels) the cascade reports
	DefaultMinFaceSize = 30

	// FaceCropPadding is the relative margin added around a face before embedding
	FaceCropPadding = 0.15
)

// Subspace model constants
const (
	// CanonicalFaceSize is the edge length faces are resized to before flattening
	CanonicalFaceSize = 100

	// DefaultComponents is the maximum number of principal directions kept
	DefaultComponents = 20

	// DefaultMinSamples is the minimum number of usable images before a model is activated
	DefaultMinSamples = 5

	// SingularValueTolerance is the relative cutoff below which singular values
	// are treated as zero when computing the rank
	SingularValueTolerance = 1e-9

	// MinZScoreComponents is the smallest K a z-scored model may have. Below it
	// normalized projections collapse onto a few points and every face matches.
	MinZScoreComponents = 3

	// RebuildWorkers is the number of images loaded and preprocessed in parallel during rebuild
	RebuildWorkers = 8
)

// Enrollment constants
const (
	// DefaultRequiredPhotos is the exact number of images an enrollment batch must contain
	DefaultRequiredPhotos = 5

	// DefaultEmbeddingDim is the length of a learned face embedding
	DefaultEmbeddingDim = 128

	// MaxUploadBytes caps a single multipart request
	MaxUploadBytes = 64 << 20
)

// Token constants
const (
	// PendingTokenTTLMinutes is how long a password-only login may wait for face verification
	PendingTokenTTLMinutes = 5

	// SessionTokenTTLHours is the lifetime of a fully verified session
	SessionTokenTTLHours = 12
)

// Image sweeper constants
const (
	// DefaultSweepIntervalMinutes is how often orphaned image files are collected
	DefaultSweepIntervalMinutes = 60

	// DefaultSweepGraceMinutes protects files of enrollments that are still in flight
	DefaultSweepGraceMinutes = 60
)

// Rate limiting constants
const (
	// AuthRequestsPerSecond bounds login and verification attempts per client IP
	AuthRequestsPerSecond = 2
)
