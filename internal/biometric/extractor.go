package biometric

import (
	"context"
	"image"
)

// FeatureExtractor maps a face image to a feature vector. One implementation
// is chosen per deployment.
type FeatureExtractor interface {
	Extract(ctx context.Context, img image.Image) (FeatureVector, error)
	Strategy() Strategy
}

// SubspaceExtractor projects preprocessed faces onto the active eigenface model.
type SubspaceExtractor struct {
	locator FaceLocator
	models  *ModelStore
}

// NewSubspaceExtractor creates an extractor reading the model from models.
func NewSubspaceExtractor(locator FaceLocator, models *ModelStore) *SubspaceExtractor {
	return &SubspaceExtractor{locator: locator, models: models}
}

// Strategy returns StrategySubspace.
func (e *SubspaceExtractor) Strategy() Strategy {
	return StrategySubspace
}

// Extract projects img with the currently active model.
func (e *SubspaceExtractor) Extract(ctx context.Context, img image.Image) (FeatureVector, error) {
	return e.ExtractWith(ctx, e.models.Load(), img)
}

// ExtractWith projects img with the given model.
func (e *SubspaceExtractor) ExtractWith(ctx context.Context, model *SubspaceModel, img image.Image) (FeatureVector, error) {
	region, err := locateSingle(e.locator, img)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, ErrModelNotInitialized
	}
	raw, err := Preprocess(img, region)
	if err != nil {
		return nil, err
	}
	return model.Project(raw)
}
