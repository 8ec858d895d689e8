package biometric

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

func nan() float64 { return math.NaN() }
func inf() float64 { return math.Inf(1) }

type verifierFixture struct {
	store *mock.Store
	alice int64
	bob   int64
}

// newVerifierFixture stores two users with 2-D signatures: alice around
// the origin and bob around (1, 0).
func newVerifierFixture() verifierFixture {
	s := mock.NewStore()
	alice := s.AddUser(newUser("alice@example.com")).ID
	bob := s.AddUser(newUser("bob@example.com")).ID
	s.AddBiometric(alice, []float64{0, 0}, "a1")
	s.AddBiometric(alice, []float64{0.1, 0}, "a2")
	s.AddBiometric(alice, []float64{0, 0.1}, "a3")
	s.AddBiometric(bob, []float64{1, 0}, "b1")
	s.AddBiometric(bob, []float64{1.1, 0}, "b2")
	return verifierFixture{store: s, alice: alice, bob: bob}
}

func TestVerifier_AcceptsOwnSignature(t *testing.T) {
	f := newVerifierFixture()
	v := NewVerifier(f.store, nil, VerifierOptions{Threshold: 0.5, CrossUserCheck: true}, nil)

	res, err := v.Verify(context.Background(), FeatureVector{0, 0}, f.alice)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Accept || res.Reason != nil {
		t.Fatalf("expected accept, got %+v", res)
	}
	if res.Distance != 0 {
		t.Errorf("distance = %v, want 0", res.Distance)
	}
	if res.Compared != 3 || res.Matches != 3 {
		t.Errorf("compared/matches = %d/%d, want 3/3", res.Compared, res.Matches)
	}
}

func TestVerifier_ThresholdIsStrict(t *testing.T) {
	f := newVerifierFixture()
	v := NewVerifier(f.store, nil, VerifierOptions{Threshold: 0.5}, nil)

	// Exactly 0.5 from the nearest alice signature.
	res, err := v.Verify(context.Background(), FeatureVector{-0.5, 0}, f.alice)
	if err != nil {
		t.Fatal(err)
	}
	if res.Accept || !errors.Is(res.Reason, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch at the threshold, got %+v", res)
	}
	if res.Distance != 0.5 {
		t.Errorf("distance = %v, want 0.5", res.Distance)
	}
}

func TestVerifier_ImpostorMatch(t *testing.T) {
	f := newVerifierFixture()
	for _, withIndex := range []bool{false, true} {
		var index *database.SignatureIndex
		if withIndex {
			sigs, _ := f.store.ListSignatures(context.Background())
			index = database.NewSignatureIndex()
			index.Build(sigs)
		}
		v := NewVerifier(f.store, index, VerifierOptions{Threshold: 5, CrossUserCheck: true}, nil)

		// Bob's face claiming to be alice: within threshold of alice, but bob is closer.
		res, err := v.Verify(context.Background(), FeatureVector{1, 0}, f.alice)
		if err != nil {
			t.Fatal(err)
		}
		if res.Accept || !errors.Is(res.Reason, ErrImpostorMatch) {
			t.Fatalf("index=%v: expected ErrImpostorMatch, got %+v", withIndex, res)
		}
		if res.MatchedUserID != f.bob || res.CrossDistance != 0 {
			t.Errorf("index=%v: matched %d at %v, want user %d at 0", withIndex, res.MatchedUserID, res.CrossDistance, f.bob)
		}
	}
}

func TestVerifier_CrossUserCheckDisabled(t *testing.T) {
	f := newVerifierFixture()
	v := NewVerifier(f.store, nil, VerifierOptions{Threshold: 5}, nil)

	res, err := v.Verify(context.Background(), FeatureVector{1, 0}, f.alice)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Accept {
		t.Errorf("without the cross-user check the claim passes the threshold, got %+v", res)
	}
}

func TestVerifier_NoEnrollmentData(t *testing.T) {
	f := newVerifierFixture()
	carol := f.store.AddUser(newUser("carol@example.com")).ID
	f.store.AddBiometric(carol, nil, "c1")
	v := NewVerifier(f.store, nil, VerifierOptions{Threshold: 0.5}, nil)

	for _, uid := range []int64{carol, 9999} {
		res, err := v.Verify(context.Background(), FeatureVector{0, 0}, uid)
		if err != nil {
			t.Fatal(err)
		}
		if res.Accept || !errors.Is(res.Reason, ErrNoEnrollmentData) {
			t.Errorf("user %d: expected ErrNoEnrollmentData, got %+v", uid, res)
		}
	}
}

func TestVerifier_TieKeepsLowestRecordID(t *testing.T) {
	s := mock.NewStore()
	uid := s.AddUser(newUser("tie@example.com")).ID
	first := s.AddBiometric(uid, []float64{1, 0}, "t1")
	s.AddBiometric(uid, []float64{-1, 0}, "t2")
	v := NewVerifier(s, nil, VerifierOptions{Threshold: 2}, nil)

	res, err := v.Verify(context.Background(), FeatureVector{0, 0}, uid)
	if err != nil {
		t.Fatal(err)
	}
	if res.RecordID != first.ID {
		t.Errorf("record = %d, want lowest id %d", res.RecordID, first.ID)
	}
}

func TestVerifier_MajorityVote(t *testing.T) {
	s := mock.NewStore()
	uid := s.AddUser(newUser("vote@example.com")).ID
	s.AddBiometric(uid, []float64{0, 0}, "v1")
	s.AddBiometric(uid, []float64{3, 0}, "v2")
	s.AddBiometric(uid, []float64{0, 3}, "v3")

	live := FeatureVector{0.1, 0}
	plain := NewVerifier(s, nil, VerifierOptions{Threshold: 1}, nil)
	res, _ := plain.Verify(context.Background(), live, uid)
	if !res.Accept {
		t.Fatalf("without majority vote the best match decides, got %+v", res)
	}

	majority := NewVerifier(s, nil, VerifierOptions{Threshold: 1, MajorityVote: true}, nil)
	res, _ = majority.Verify(context.Background(), live, uid)
	if res.Accept || !errors.Is(res.Reason, ErrNoMatch) {
		t.Errorf("1 of 3 matches should fail the vote, got %+v", res)
	}
	if res.Matches != 1 || res.Compared != 3 {
		t.Errorf("matches/compared = %d/%d, want 1/3", res.Matches, res.Compared)
	}
}

func TestVerifier_InvalidLiveVector(t *testing.T) {
	f := newVerifierFixture()
	v := NewVerifier(f.store, nil, VerifierOptions{Threshold: 1}, nil)
	for _, live := range []FeatureVector{nil, {nan(), 0}} {
		res, err := v.Verify(context.Background(), live, f.alice)
		if err != nil {
			t.Fatal(err)
		}
		if !errors.Is(res.Reason, ErrInvalidFeatureVector) {
			t.Errorf("expected ErrInvalidFeatureVector, got %+v", res)
		}
	}
}

func TestVerifier_SkipsMismatchedDimensions(t *testing.T) {
	f := newVerifierFixture()
	v := NewVerifier(f.store, nil, VerifierOptions{Threshold: 1}, nil)
	res, err := v.Verify(context.Background(), FeatureVector{0, 0, 0}, f.alice)
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(res.Reason, ErrNoEnrollmentData) {
		t.Errorf("expected ErrNoEnrollmentData, got %+v", res)
	}
}

func TestVerifier_StorageError(t *testing.T) {
	f := newVerifierFixture()
	f.store.ListSignaturesError = errors.New("db down")
	v := NewVerifier(f.store, nil, VerifierOptions{Threshold: 1}, nil)
	if _, err := v.Verify(context.Background(), FeatureVector{0, 0}, f.alice); err == nil {
		t.Error("expected storage error")
	}
}
