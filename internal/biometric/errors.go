package biometric

import "errors"

// Rejection reasons. They are returned as values and never abort the process.
var (
	ErrNoFaceDetected        = errors.New("no face detected")
	ErrMultipleFacesDetected = errors.New("multiple faces detected")
	ErrModelNotInitialized   = errors.New("subspace model not initialized")
	ErrNoEnrollmentData      = errors.New("no enrollment data for user")
	ErrImpostorMatch         = errors.New("closer match belongs to another user")
	ErrInvalidPhotoCount     = errors.New("invalid photo count")
	ErrCorruptImage          = errors.New("corrupt image")
	ErrNoMatch               = errors.New("face does not match")
	ErrInvalidFeatureVector  = errors.New("invalid feature vector")
	ErrEmailTaken            = errors.New("email already registered")
)

var reasonCodes = []struct {
	err  error
	code string
}{
	{ErrNoFaceDetected, "no_face_detected"},
	{ErrMultipleFacesDetected, "multiple_faces_detected"},
	{ErrModelNotInitialized, "model_not_initialized"},
	{ErrNoEnrollmentData, "no_enrollment_data"},
	{ErrImpostorMatch, "impostor_match"},
	{ErrInvalidPhotoCount, "invalid_photo_count"},
	{ErrCorruptImage, "corrupt_image"},
	{ErrNoMatch, "no_match"},
	{ErrInvalidFeatureVector, "invalid_feature_vector"},
	{ErrEmailTaken, "email_taken"},
}

// Reason maps an error to a stable machine-readable code.
// Returns "" for nil and "internal_error" for anything that is not a rejection.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, rc := range reasonCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return "internal_error"
}

// IsRejection reports whether err is a domain rejection rather than an infrastructure failure.
func IsRejection(err error) bool {
	r := Reason(err)
	return r != "" && r != "internal_error"
}
