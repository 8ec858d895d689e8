package database

// HNSW index parameters for signature vectors (k-dim projections or 128-dim embeddings)
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor the candidate count grows by when every
	// returned neighbor belongs to the excluded user.
	HNSWSearchMultiplier = 3
)
