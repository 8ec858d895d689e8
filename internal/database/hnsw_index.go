package database

import (
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// SignatureMatch is a stored signature found near a query vector.
type SignatureMatch struct {
	RecordID int64
	UserID   int64
	Distance float64
}

type indexedSignature struct {
	userID int64
	vector []float64
}

// SignatureIndex wraps an HNSW graph over stored signatures so the cross-user
// check does not scan every record on each verification.
type SignatureIndex struct {
	graph    *hnsw.Graph[int64]
	byRecord map[int64]indexedSignature // Maps HNSW node ID to owner and exact vector
	dim      int
	mu       sync.RWMutex
}

// NewSignatureIndex creates a new empty index.
func NewSignatureIndex() *SignatureIndex {
	return &SignatureIndex{
		byRecord: make(map[int64]indexedSignature),
	}
}

func newSignatureGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index content with the given records.
// Records without a feature, or whose length differs from the first one, are skipped.
func (x *SignatureIndex) Build(records []BiometricRecord) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.graph = nil
	x.dim = 0
	x.byRecord = make(map[int64]indexedSignature, len(records))
	x.addLocked(records)
}

// Add inserts records into the existing index.
func (x *SignatureIndex) Add(records ...BiometricRecord) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.addLocked(records)
}

func (x *SignatureIndex) addLocked(records []BiometricRecord) {
	for i := range records {
		rec := &records[i]
		if !rec.HasFeature() {
			continue
		}
		if x.dim == 0 {
			x.dim = len(rec.Feature)
		}
		if len(rec.Feature) != x.dim {
			continue
		}
		if x.graph == nil {
			x.graph = newSignatureGraph()
		}
		x.graph.Add(hnsw.MakeNode(rec.ID, ToFloat32(rec.Feature)))
		x.byRecord[rec.ID] = indexedSignature{userID: rec.UserID, vector: rec.Feature}
	}
}

// RemoveUser drops a user's signatures from search results.
// The graph nodes stay until the next Build; lookups filter them out.
func (x *SignatureIndex) RemoveUser(userID int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, sig := range x.byRecord {
		if sig.userID == userID {
			delete(x.byRecord, id)
		}
	}
}

// NearestOtherUser returns the closest signature that does not belong to
// excludeUserID. The candidate pool grows until such a signature appears or
// the whole graph has been searched. Distances are recomputed exactly.
func (x *SignatureIndex) NearestOtherUser(query []float64, excludeUserID int64) (SignatureMatch, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || len(query) != x.dim {
		return SignatureMatch{}, false
	}
	total := x.graph.Len()
	if total == 0 {
		return SignatureMatch{}, false
	}

	q := ToFloat32(query)
	k := min(HNSWEfSearch/HNSWSearchMultiplier, total)
	for {
		best := SignatureMatch{Distance: math.Inf(1)}
		found := false
		for _, n := range x.graph.Search(q, k) {
			sig, ok := x.byRecord[n.Key]
			if !ok || sig.userID == excludeUserID {
				continue
			}
			d := EuclideanDistance(query, sig.vector)
			if d < best.Distance || (d == best.Distance && n.Key < best.RecordID) {
				best = SignatureMatch{RecordID: n.Key, UserID: sig.userID, Distance: d}
				found = true
			}
		}
		if found || k >= total {
			return best, found
		}
		k = min(k*HNSWSearchMultiplier, total)
	}
}

// Count returns the number of searchable signatures.
func (x *SignatureIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byRecord)
}
