package biometric

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"gonum.org/v1/gonum/mat"
)

// SubspaceModel is an eigenface basis. A published model is never mutated;
// rebuilds publish a new one.
type SubspaceModel struct {
	Version uint64
	Mean    []float64   // raw-pixel mean of the training samples
	Basis   [][]float64 // K orthonormal directions, each of raw-pixel length
	K       int
	Samples int
	ZScore  bool // z-score normalize projections
	BuiltAt time.Time
}

// BuildSubspace computes the mean and the first min(maxComponents, rank)
// principal directions of the samples via a thin SVD of the centered data.
// Each direction's sign is chosen so its largest-magnitude entry is positive,
// which makes the result deterministic for a given input.
func BuildSubspace(samples [][]float64, maxComponents int) (*SubspaceModel, error) {
	n := len(samples)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 samples, got %d", n)
	}
	if maxComponents < 1 {
		return nil, errors.New("maxComponents must be positive")
	}
	d := len(samples[0])
	if d == 0 {
		return nil, errors.New("empty sample vectors")
	}

	mean := make([]float64, d)
	for i, s := range samples {
		if len(s) != d {
			return nil, fmt.Errorf("sample %d has length %d, expected %d", i, len(s), d)
		}
		for j, v := range s {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}

	centered := mat.NewDense(n, d, nil)
	for i, s := range samples {
		for j, v := range s {
			centered.Set(i, j, v-mean[j])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, errors.New("SVD factorization failed")
	}
	values := svd.Values(nil)
	rank := numericalRank(values)
	if rank == 0 {
		return nil, errors.New("samples are identical, no principal directions")
	}
	k := min(maxComponents, rank)

	var v mat.Dense
	svd.VTo(&v)

	basis := make([][]float64, k)
	for c := range k {
		dir := make([]float64, d)
		mat.Col(dir, c, &v)
		fixSign(dir)
		basis[c] = dir
	}

	return &SubspaceModel{
		Mean:    mean,
		Basis:   basis,
		K:       k,
		Samples: n,
		BuiltAt: time.Now(),
	}, nil
}

// numericalRank counts singular values above a tolerance relative to the largest.
func numericalRank(values []float64) int {
	if len(values) == 0 || values[0] == 0 {
		return 0
	}
	tol := values[0] * constants.SingularValueTolerance
	rank := 0
	for _, s := range values {
		if s > tol {
			rank++
		}
	}
	return rank
}

func fixSign(v []float64) {
	maxIdx := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[maxIdx]) {
			maxIdx = i
		}
	}
	if v[maxIdx] < 0 {
		for i := range v {
			v[i] = -v[i]
		}
	}
}

// Project maps a preprocessed raw vector onto the basis.
func (m *SubspaceModel) Project(raw []float64) (FeatureVector, error) {
	if len(raw) != len(m.Mean) {
		return nil, fmt.Errorf("raw vector has length %d, model expects %d", len(raw), len(m.Mean))
	}

	out := make(FeatureVector, m.K)
	for c, dir := range m.Basis {
		var dot float64
		for j, v := range raw {
			dot += (v - m.Mean[j]) * dir[j]
		}
		out[c] = dot
	}
	if m.ZScore {
		zscore(out)
	}
	return out, nil
}

// zscore normalizes v in place. A constant vector is only centered.
func zscore(v []float64) {
	if len(v) == 0 {
		return
	}
	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))

	var variance float64
	for _, x := range v {
		variance += (x - mean) * (x - mean)
	}
	std := math.Sqrt(variance / float64(len(v)))

	for i := range v {
		v[i] -= mean
		if std > 0 {
			v[i] /= std
		}
	}
}
