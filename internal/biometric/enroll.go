package biometric

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/imagestore"
	"go.uber.org/zap"
)

// EnrollmentImage is one photo of an enrollment batch.
type EnrollmentImage struct {
	Source imagestore.Source
	Data   []byte
}

// EnrollmentRequest creates an identity from a batch of photos.
type EnrollmentRequest struct {
	User   database.NewUser
	Images []EnrollmentImage
}

// Enroll validates every photo, stores them and creates the user with one
// biometric record per photo. Nothing is persisted unless the whole batch
// is accepted. Rejections are reported in the result with a nil error.
//
// For the subspace strategy the model is rebuilt before Enroll returns. If
// that rebuild fails the user is already committed: the result has OK set
// and the error describes the rebuild failure.
func (e *Engine) Enroll(ctx context.Context, req EnrollmentRequest) (EnrollmentResult, error) {
	start := time.Now()
	res, err := e.enroll(ctx, req)
	if err == nil || res.OK {
		e.recorder.RecordEnrollment(res, time.Since(start))
	}
	if res.Reason != nil {
		e.logger.Info("enrollment rejected",
			zap.String("email", req.User.Email), zap.String("reason", Reason(res.Reason)), zap.Error(res.Reason))
	}
	return res, err
}

func (e *Engine) enroll(ctx context.Context, req EnrollmentRequest) (EnrollmentResult, error) {
	if len(req.Images) != e.cfg.RequiredPhotos {
		return enrollmentRejected(fmt.Errorf("%w: got %d, need %d",
			ErrInvalidPhotoCount, len(req.Images), e.cfg.RequiredPhotos)), nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	features := make([]FeatureVector, len(req.Images))
	for i, in := range req.Images {
		vec, err := e.checkEnrollmentImage(ctx, in.Data)
		if err != nil {
			if IsRejection(err) {
				return enrollmentRejected(fmt.Errorf("photo %d: %w", i+1, err)), nil
			}
			return EnrollmentResult{}, fmt.Errorf("photo %d: %w", i+1, err)
		}
		features[i] = vec
	}

	refs := make([]string, 0, len(req.Images))
	for _, in := range req.Images {
		ref, err := e.images.Save(in.Source, in.Data)
		if err != nil {
			e.discardImages(refs)
			if errors.Is(err, imagestore.ErrUnsupportedFormat) {
				return enrollmentRejected(fmt.Errorf("%w: %w", ErrCorruptImage, err)), nil
			}
			return EnrollmentResult{}, fmt.Errorf("saving enrollment image: %w", err)
		}
		refs = append(refs, ref)
	}

	records := make([]database.NewBiometric, len(refs))
	for i, ref := range refs {
		records[i] = database.NewBiometric{Feature: features[i], ImageRef: ref}
	}

	user, stored, err := e.store.CreateUserWithBiometrics(ctx, req.User, records)
	if err != nil {
		e.discardImages(refs)
		if errors.Is(err, database.ErrDuplicate) {
			return enrollmentRejected(ErrEmailTaken), nil
		}
		return EnrollmentResult{}, fmt.Errorf("creating user: %w", err)
	}

	res := EnrollmentResult{OK: true, UserID: user.ID, Records: stored}
	e.logger.Info("user enrolled", zap.Int64("user_id", user.ID), zap.Int("records", len(stored)))

	if e.builder == nil {
		if e.index != nil {
			e.index.Add(stored...)
		}
		return res, nil
	}

	if _, err := e.rebuildLocked(ctx); err != nil {
		return res, fmt.Errorf("rebuilding model after enrolling user %d: %w", user.ID, err)
	}
	fresh, err := e.store.ListUserBiometrics(ctx, user.ID)
	if err != nil {
		return res, fmt.Errorf("reloading records of user %d: %w", user.ID, err)
	}
	res.Records = fresh
	return res, nil
}

// checkEnrollmentImage decodes data and requires exactly one face. The
// embedding strategy also returns the extracted vector; the subspace
// strategy extracts during the rebuild that follows.
func (e *Engine) checkEnrollmentImage(ctx context.Context, data []byte) (FeatureVector, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	if e.builder == nil {
		return e.extractor.Extract(ctx, img)
	}
	region, err := locateSingle(e.locator, img)
	if err != nil {
		return nil, err
	}
	if !region.Within(img.Bounds()) {
		return nil, fmt.Errorf("%w: face region outside image", ErrNoFaceDetected)
	}
	return nil, nil
}

func enrollmentRejected(reason error) EnrollmentResult {
	return EnrollmentResult{Reason: reason}
}
