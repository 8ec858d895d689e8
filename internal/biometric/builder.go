package biometric

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ImageOpener returns the stored bytes of an enrollment image.
type ImageOpener interface {
	Open(ref string) ([]byte, error)
}

// BuilderOptions configures subspace rebuilds.
type BuilderOptions struct {
	Components int  // upper bound on K
	MinSamples int  // below this the model stays uninitialized
	ZScore     bool // z-score normalize projections
	Workers    int  // parallel image loaders
}

// RebuildStats summarizes one rebuild.
type RebuildStats struct {
	Records     int // biometric records considered
	Samples     int // records that produced a usable face
	Skipped     int
	Components  int
	Version     uint64
	Initialized bool
	Duration    time.Duration
}

// Builder retrains the subspace model from every stored enrollment image
// and re-extracts all stored signatures with it.
type Builder struct {
	locator FaceLocator
	images  ImageOpener
	store   database.BiometricWriter
	models  *ModelStore
	opts    BuilderOptions
	logger  *zap.Logger

	// OnProgress, when set, is called after each image is loaded.
	OnProgress func(done, total int)
}

// NewBuilder creates a builder publishing into models.
func NewBuilder(locator FaceLocator, images ImageOpener, store database.BiometricWriter, models *ModelStore, opts BuilderOptions, logger *zap.Logger) *Builder {
	if opts.Workers < 1 {
		opts.Workers = constants.RebuildWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		locator: locator,
		images:  images,
		store:   store,
		models:  models,
		opts:    opts,
		logger:  logger,
	}
}

// Rebuild recomputes the model and every stored feature. Signatures are
// replaced in one transaction before the new model is published, so readers
// never see a model paired with signatures from another one. The returned
// records carry the new features and are suitable for rebuilding an index.
func (b *Builder) Rebuild(ctx context.Context) (RebuildStats, []database.BiometricRecord, error) {
	start := time.Now()

	records, err := b.store.ListBiometrics(ctx)
	if err != nil {
		return RebuildStats{}, nil, fmt.Errorf("listing biometric records: %w", err)
	}
	stats := RebuildStats{Records: len(records)}

	raws, err := b.loadSamples(ctx, records)
	if err != nil {
		return stats, nil, err
	}

	samples := make([][]float64, 0, len(records))
	for _, raw := range raws {
		if raw != nil {
			samples = append(samples, raw)
		}
	}
	stats.Samples = len(samples)
	stats.Skipped = len(records) - len(samples)

	if len(samples) < b.opts.MinSamples {
		b.logger.Info("not enough samples for a model",
			zap.Int("samples", len(samples)), zap.Int("min_samples", b.opts.MinSamples))
		return b.reset(ctx, records, stats, start)
	}

	model, err := BuildSubspace(samples, b.opts.Components)
	if err != nil {
		b.logger.Warn("subspace build failed", zap.Error(err), zap.Int("samples", len(samples)))
		return b.reset(ctx, records, stats, start)
	}
	if b.opts.ZScore && model.K < constants.MinZScoreComponents {
		b.logger.Warn("too few components for z-score normalization",
			zap.Int("components", model.K), zap.Int("min_components", constants.MinZScoreComponents))
		return b.reset(ctx, records, stats, start)
	}
	model.ZScore = b.opts.ZScore

	updates := make([]database.FeatureUpdate, len(records))
	signatures := make([]database.BiometricRecord, 0, len(samples))
	for i := range records {
		updates[i].RecordID = records[i].ID
		if raws[i] == nil {
			continue
		}
		vec, err := model.Project(raws[i])
		if err != nil {
			return stats, nil, fmt.Errorf("projecting record %d: %w", records[i].ID, err)
		}
		updates[i].Feature = vec
		rec := records[i]
		rec.Feature = vec
		signatures = append(signatures, rec)
	}

	if err := b.store.ReplaceFeatures(ctx, updates); err != nil {
		return stats, nil, fmt.Errorf("storing features: %w", err)
	}

	stats.Version = b.models.Publish(model)
	stats.Components = model.K
	stats.Initialized = true
	stats.Duration = time.Since(start)

	b.logger.Info("subspace model rebuilt",
		zap.Uint64("version", stats.Version),
		zap.Int("components", stats.Components),
		zap.Int("samples", stats.Samples),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("duration", stats.Duration))
	return stats, signatures, nil
}

// reset clears every stored feature and marks the model uninitialized.
func (b *Builder) reset(ctx context.Context, records []database.BiometricRecord, stats RebuildStats, start time.Time) (RebuildStats, []database.BiometricRecord, error) {
	var updates []database.FeatureUpdate
	for i := range records {
		if records[i].HasFeature() {
			updates = append(updates, database.FeatureUpdate{RecordID: records[i].ID})
		}
	}
	if len(updates) > 0 {
		if err := b.store.ReplaceFeatures(ctx, updates); err != nil {
			return stats, nil, fmt.Errorf("clearing features: %w", err)
		}
	}
	b.models.Reset()
	stats.Duration = time.Since(start)
	return stats, nil, nil
}

// loadSamples preprocesses every record image in parallel. Entry i is nil
// when record i could not produce a single face.
func (b *Builder) loadSamples(ctx context.Context, records []database.BiometricRecord) ([][]float64, error) {
	raws := make([][]float64, len(records))
	total := len(records)
	var done atomic.Int64
	var progressMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := b.loadSample(records[i].ImageRef)
			if err != nil {
				b.logger.Warn("skipping enrollment image",
					zap.Int64("record_id", records[i].ID),
					zap.String("image_ref", records[i].ImageRef),
					zap.Error(err))
			} else {
				raws[i] = raw
			}

			n := int(done.Add(1))
			if b.OnProgress != nil {
				progressMu.Lock()
				b.OnProgress(n, total)
				progressMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading enrollment images: %w", err)
	}
	return raws, nil
}

func (b *Builder) loadSample(ref string) ([]float64, error) {
	data, err := b.images.Open(ref)
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	region, err := locateSingle(b.locator, img)
	if err != nil {
		return nil, err
	}
	return Preprocess(img, region)
}
