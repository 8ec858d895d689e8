package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/biometric/cascade"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database/sqlstore"
	"github.com/kozaktomas/face-attendance/internal/imagestore"
	"github.com/kozaktomas/face-attendance/internal/logger"
	"go.uber.org/zap"
)

// loadConfig reads and validates the environment and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// openStore connects to the database and applies pending migrations.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}
	applied, err := store.Migrate(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	for _, name := range applied {
		log.Info("applied migration", zap.String("version", name))
	}
	log.Info("database ready", zap.String("dialect", string(store.Dialect())))
	return store, nil
}

// engineParts are the resources behind an engine that need closing.
type engineParts struct {
	engine  *biometric.Engine
	images  *imagestore.Store
	locator *cascade.Locator
}

func (p *engineParts) Close() error {
	return p.locator.Close()
}

// buildEngine wires the face locator, image store and chosen strategy.
func buildEngine(cfg *config.Config, store *sqlstore.Store, recorder biometric.Recorder, log *zap.Logger) (*engineParts, error) {
	images, err := imagestore.New(cfg.Storage.UploadDir, cfg.Storage.CaptureDir)
	if err != nil {
		return nil, fmt.Errorf("preparing image directories: %w", err)
	}

	locator, err := cascade.New(cfg.Locator.CascadePath, biometric.LocatorParams{
		ScaleFactor:  cfg.Locator.ScaleFactor,
		MinNeighbors: cfg.Locator.MinNeighbors,
		MinSize:      cfg.Locator.MinSize,
	})
	if err != nil {
		return nil, fmt.Errorf("loading face cascade: %w", err)
	}
	log.Info("face cascade loaded", zap.String("path", locator.Path()))

	b := cfg.Biometric
	engineCfg := biometric.EngineConfig{
		Strategy:       biometric.Strategy(b.Strategy),
		RequiredPhotos: b.RequiredPhotos,
		Verifier: biometric.VerifierOptions{
			Threshold:      b.Threshold,
			MajorityVote:   b.MajorityVote,
			CrossUserCheck: b.CrossUserCheck,
		},
		Builder: biometric.BuilderOptions{
			Components: b.Components,
			MinSamples: b.MinSamples,
			ZScore:     b.ZScore,
			Workers:    constants.RebuildWorkers,
		},
		UseIndex:     b.CrossUserCheck && b.CrossUserIndex == config.CrossUserHNSW,
		EmbeddingDim: cfg.Embedding.Dim,
	}
	deps := biometric.EngineDeps{
		Store:    store,
		Images:   images,
		Locator:  locator,
		Recorder: recorder,
		Logger:   log.Named("biometric"),
	}
	if engineCfg.Strategy == biometric.StrategyEmbedding {
		deps.Embedder = biometric.NewEmbeddingClient(cfg.Embedding.URL)
	}

	engine, err := biometric.NewEngine(engineCfg, deps)
	if err != nil {
		_ = locator.Close()
		return nil, err
	}
	return &engineParts{engine: engine, images: images, locator: locator}, nil
}
