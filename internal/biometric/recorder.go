package biometric

import "time"

// Recorder receives engine outcomes for observability.
type Recorder interface {
	RecordVerification(result VerificationResult, duration time.Duration)
	RecordEnrollment(result EnrollmentResult, duration time.Duration)
	RecordRebuild(stats RebuildStats)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordVerification(VerificationResult, time.Duration) {}
func (NopRecorder) RecordEnrollment(EnrollmentResult, time.Duration)     {}
func (NopRecorder) RecordRebuild(RebuildStats)                           {}
