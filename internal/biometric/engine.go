package biometric

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/imagestore"
	"go.uber.org/zap"
)

// ImageStore persists enrollment images.
type ImageStore interface {
	ImageOpener
	Save(source imagestore.Source, data []byte) (string, error)
	Delete(ref string) error
}

// EngineConfig selects the strategy and its policy.
type EngineConfig struct {
	Strategy       Strategy
	RequiredPhotos int
	Verifier       VerifierOptions
	Builder        BuilderOptions // subspace only
	UseIndex       bool           // HNSW index for the cross-user check
	EmbeddingDim   int            // embedding only
}

// EngineDeps are the collaborators of an Engine.
type EngineDeps struct {
	Store    database.Store
	Images   ImageStore
	Locator  FaceLocator
	Embedder *EmbeddingClient // required for StrategyEmbedding
	Recorder Recorder
	Logger   *zap.Logger
}

// Engine ties enrollment, rebuild and verification together. Enrollment,
// rebuild and user removal take the write lock; verifications share the
// read lock so they never observe a half-finished rebuild.
type Engine struct {
	mu sync.RWMutex

	cfg       EngineConfig
	store     database.Store
	images    ImageStore
	locator   FaceLocator
	extractor FeatureExtractor
	models    *ModelStore
	builder   *Builder
	verifier  *Verifier
	index     *database.SignatureIndex
	recorder  Recorder
	logger    *zap.Logger
}

// NewEngine wires an engine for cfg.Strategy.
func NewEngine(cfg EngineConfig, deps EngineDeps) (*Engine, error) {
	if deps.Store == nil || deps.Images == nil || deps.Locator == nil {
		return nil, errors.New("engine needs a store, an image store and a face locator")
	}
	if cfg.RequiredPhotos < 1 {
		return nil, fmt.Errorf("required photos must be positive, got %d", cfg.RequiredPhotos)
	}
	if deps.Recorder == nil {
		deps.Recorder = NopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	e := &Engine{
		cfg:      cfg,
		store:    deps.Store,
		images:   deps.Images,
		locator:  deps.Locator,
		models:   &ModelStore{},
		recorder: deps.Recorder,
		logger:   deps.Logger.With(zap.String("strategy", string(cfg.Strategy))),
	}

	switch cfg.Strategy {
	case StrategySubspace:
		e.extractor = NewSubspaceExtractor(deps.Locator, e.models)
		e.builder = NewBuilder(deps.Locator, deps.Images, deps.Store, e.models, cfg.Builder, e.logger)
	case StrategyEmbedding:
		if deps.Embedder == nil {
			return nil, errors.New("embedding strategy needs an embedding client")
		}
		e.extractor = NewEmbeddingExtractor(deps.Locator, deps.Embedder, cfg.EmbeddingDim)
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}

	if cfg.UseIndex {
		e.index = database.NewSignatureIndex()
	}
	e.verifier = NewVerifier(deps.Store, e.index, cfg.Verifier, e.logger)
	return e, nil
}

// Strategy returns the configured strategy.
func (e *Engine) Strategy() Strategy {
	return e.cfg.Strategy
}

// RequiredPhotos returns the enrollment batch size.
func (e *Engine) RequiredPhotos() int {
	return e.cfg.RequiredPhotos
}

// SetProgress installs a rebuild progress callback.
func (e *Engine) SetProgress(fn func(done, total int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.builder != nil {
		e.builder.OnProgress = fn
	}
}

// Initialize prepares the engine after startup: the subspace strategy
// rebuilds its model, the embedding strategy loads its index.
func (e *Engine) Initialize(ctx context.Context) (RebuildStats, error) {
	return e.Rebuild(ctx)
}

// Rebuild retrains the subspace model and re-extracts all signatures. For
// the embedding strategy it only reloads the cross-user index.
func (e *Engine) Rebuild(ctx context.Context) (RebuildStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebuildLocked(ctx)
}

func (e *Engine) rebuildLocked(ctx context.Context) (RebuildStats, error) {
	if e.builder == nil {
		start := time.Now()
		sigs, err := e.store.ListSignatures(ctx)
		if err != nil {
			return RebuildStats{}, fmt.Errorf("listing signatures: %w", err)
		}
		if e.index != nil {
			e.index.Build(sigs)
		}
		stats := RebuildStats{
			Records:     len(sigs),
			Samples:     len(sigs),
			Components:  e.cfg.EmbeddingDim,
			Initialized: true,
			Duration:    time.Since(start),
		}
		e.recorder.RecordRebuild(stats)
		return stats, nil
	}

	stats, sigs, err := e.builder.Rebuild(ctx)
	if err != nil {
		return stats, err
	}
	if e.index != nil {
		e.index.Build(sigs)
	}
	e.recorder.RecordRebuild(stats)
	return stats, nil
}

// Verify checks a precomputed live vector against claimedUserID.
func (e *Engine) Verify(ctx context.Context, live FeatureVector, claimedUserID int64) (VerificationResult, error) {
	start := time.Now()
	e.mu.RLock()
	res, err := e.verifier.Verify(ctx, live, claimedUserID)
	e.mu.RUnlock()
	e.observe(res, err, claimedUserID, start)
	return res, err
}

// VerifyImage extracts the live vector from img and verifies it.
func (e *Engine) VerifyImage(ctx context.Context, img image.Image, claimedUserID int64) (VerificationResult, error) {
	start := time.Now()
	e.mu.RLock()
	res, err := e.verifyImageLocked(ctx, img, claimedUserID)
	e.mu.RUnlock()
	e.observe(res, err, claimedUserID, start)
	return res, err
}

// VerifyBytes decodes an encoded image and verifies it.
func (e *Engine) VerifyBytes(ctx context.Context, data []byte, claimedUserID int64) (VerificationResult, error) {
	img, err := DecodeImage(data)
	if err != nil {
		res := reject(err)
		e.observe(res, nil, claimedUserID, time.Now())
		return res, nil
	}
	return e.VerifyImage(ctx, img, claimedUserID)
}

func (e *Engine) verifyImageLocked(ctx context.Context, img image.Image, claimedUserID int64) (VerificationResult, error) {
	live, err := e.extractor.Extract(ctx, img)
	if err != nil {
		if IsRejection(err) {
			return reject(err), nil
		}
		return VerificationResult{}, fmt.Errorf("extracting features: %w", err)
	}
	return e.verifier.Verify(ctx, live, claimedUserID)
}

func (e *Engine) observe(res VerificationResult, err error, claimedUserID int64, start time.Time) {
	elapsed := time.Since(start)
	if err != nil {
		e.logger.Error("verification failed", zap.Int64("user_id", claimedUserID), zap.Error(err))
		return
	}
	e.recorder.RecordVerification(res, elapsed)
	e.logger.Debug("verification",
		zap.Int64("user_id", claimedUserID),
		zap.Bool("accept", res.Accept),
		zap.String("reason", Reason(res.Reason)),
		zap.Float64("distance", res.Distance),
		zap.Duration("duration", elapsed))
}

// RemoveUser deletes a user with all of their records and images, then
// retrains or reindexes so no signature of theirs remains usable.
func (e *Engine) RemoveUser(ctx context.Context, userID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	refs, err := e.store.DeleteUser(ctx, userID)
	if err != nil {
		return err
	}
	e.discardImages(refs)

	if e.builder != nil {
		if _, err := e.rebuildLocked(ctx); err != nil {
			return fmt.Errorf("rebuilding model after removing user %d: %w", userID, err)
		}
		return nil
	}
	if e.index != nil {
		e.index.RemoveUser(userID)
	}
	return nil
}

func (e *Engine) discardImages(refs []string) {
	for _, ref := range refs {
		if err := e.images.Delete(ref); err != nil {
			e.logger.Warn("failed to remove image", zap.String("ref", ref), zap.Error(err))
		}
	}
}

// ModelStatus describes the active model.
type ModelStatus struct {
	Strategy          Strategy  `json:"strategy"`
	Initialized       bool      `json:"initialized"`
	Version           uint64    `json:"version"`
	Components        int       `json:"components"`
	Samples           int       `json:"samples"`
	ZScore            bool      `json:"zscore"`
	BuiltAt           time.Time `json:"built_at,omitzero"`
	IndexedSignatures int       `json:"indexed_signatures"`
}

// Status reports the active model and index size.
func (e *Engine) Status() ModelStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := ModelStatus{Strategy: e.cfg.Strategy}
	if e.index != nil {
		st.IndexedSignatures = e.index.Count()
	}
	if e.cfg.Strategy == StrategyEmbedding {
		st.Initialized = true
		st.Components = e.cfg.EmbeddingDim
		return st
	}
	if m := e.models.Load(); m != nil {
		st.Initialized = true
		st.Version = m.Version
		st.Components = m.K
		st.Samples = m.Samples
		st.ZScore = m.ZScore
		st.BuiltAt = m.BuiltAt
	}
	return st
}
