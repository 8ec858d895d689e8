package biometric

import (
	"context"
	"fmt"
	"math"

	"github.com/kozaktomas/face-attendance/internal/database"
	"go.uber.org/zap"
)

// VerifierOptions configures the accept/reject policy.
type VerifierOptions struct {
	Threshold      float64 // accept when the best distance is strictly below
	MajorityVote   bool    // additionally require half of the signatures to match
	CrossUserCheck bool    // reject when another user holds a closer signature
}

// Verifier compares a live vector against stored signatures.
type Verifier struct {
	signatures database.SignatureReader
	index      *database.SignatureIndex // optional, replaces the cross-user scan
	opts       VerifierOptions
	logger     *zap.Logger
}

// NewVerifier creates a verifier. index may be nil.
func NewVerifier(signatures database.SignatureReader, index *database.SignatureIndex, opts VerifierOptions, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{signatures: signatures, index: index, opts: opts, logger: logger}
}

// Verify decides whether live belongs to claimedUserID. The error return is
// reserved for storage failures; rejections are reported in the result.
func (v *Verifier) Verify(ctx context.Context, live FeatureVector, claimedUserID int64) (VerificationResult, error) {
	if err := live.Validate(); err != nil {
		return reject(err), nil
	}

	own, err := v.signatures.ListUserSignatures(ctx, claimedUserID)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("loading signatures of user %d: %w", claimedUserID, err)
	}

	res := VerificationResult{Distance: math.Inf(1)}
	for i := range own {
		rec := &own[i]
		if len(rec.Feature) != len(live) {
			v.logger.Warn("skipping signature with mismatched dimension",
				zap.Int64("record_id", rec.ID), zap.Int("dim", len(rec.Feature)), zap.Int("expected", len(live)))
			continue
		}
		d := database.EuclideanDistance(live, rec.Feature)
		res.Compared++
		if d < v.opts.Threshold {
			res.Matches++
		}
		// Records arrive in ascending ID order, so ties keep the lowest ID.
		if d < res.Distance {
			res.Distance = d
			res.RecordID = rec.ID
		}
	}
	if res.Compared == 0 {
		return reject(ErrNoEnrollmentData), nil
	}

	if v.opts.CrossUserCheck {
		other, found, err := v.nearestOtherUser(ctx, live, claimedUserID)
		if err != nil {
			return VerificationResult{}, err
		}
		if found && other.Distance < res.Distance {
			res.Reason = ErrImpostorMatch
			res.MatchedUserID = other.UserID
			res.CrossDistance = other.Distance
			v.logger.Warn("closer signature belongs to another user",
				zap.Int64("claimed_user_id", claimedUserID),
				zap.Int64("matched_user_id", other.UserID),
				zap.Float64("claimed_distance", res.Distance),
				zap.Float64("cross_distance", other.Distance))
			return res, nil
		}
	}

	if res.Distance >= v.opts.Threshold {
		res.Reason = ErrNoMatch
		return res, nil
	}
	if v.opts.MajorityVote && res.Matches*2 < res.Compared {
		res.Reason = fmt.Errorf("%w: only %d of %d signatures below threshold", ErrNoMatch, res.Matches, res.Compared)
		return res, nil
	}

	res.Accept = true
	return res, nil
}

// nearestOtherUser finds the closest signature owned by anyone but excludeUserID.
func (v *Verifier) nearestOtherUser(ctx context.Context, live FeatureVector, excludeUserID int64) (database.SignatureMatch, bool, error) {
	if v.index != nil {
		m, ok := v.index.NearestOtherUser(live, excludeUserID)
		return m, ok, nil
	}

	all, err := v.signatures.ListSignatures(ctx)
	if err != nil {
		return database.SignatureMatch{}, false, fmt.Errorf("loading signatures: %w", err)
	}
	best := database.SignatureMatch{Distance: math.Inf(1)}
	found := false
	for i := range all {
		rec := &all[i]
		if rec.UserID == excludeUserID || len(rec.Feature) != len(live) {
			continue
		}
		if d := database.EuclideanDistance(live, rec.Feature); d < best.Distance {
			best = database.SignatureMatch{RecordID: rec.ID, UserID: rec.UserID, Distance: d}
			found = true
		}
	}
	return best, found, nil
}
