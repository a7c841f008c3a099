package registration

import (
	"math"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

// pointPairs is the uniform pair sequence every estimation entry point is
// reduced to: two accessors of equal length where index i of one corresponds
// to index i of the other. dist optionally carries precomputed pair
// distances (zero or negative: unknown).
type pointPairs struct {
	src, tgt pc.Vec3RandomAccessor
	dist     []float32
}

func newPointPairs(src, tgt pc.Vec3RandomAccessor) (*pointPairs, error) {
	if src.Len() != tgt.Len() {
		return nil, ErrSizeMismatch
	}
	return &pointPairs{src: src, tgt: tgt}, nil
}

func newPointPairsSourceIndice(src pc.Vec3RandomAccessor, indice []int, tgt pc.Vec3RandomAccessor) (*pointPairs, error) {
	if len(indice) != tgt.Len() {
		return nil, ErrSizeMismatch
	}
	if err := validateIndice(indice, src.Len()); err != nil {
		return nil, err
	}
	return &pointPairs{
		src: pc.NewIndiceVec3RandomAccessor(src, indice),
		tgt: tgt,
	}, nil
}

func newPointPairsIndice(src pc.Vec3RandomAccessor, srcIndice []int, tgt pc.Vec3RandomAccessor, tgtIndice []int) (*pointPairs, error) {
	if len(srcIndice) != len(tgtIndice) {
		return nil, ErrSizeMismatch
	}
	if err := validateIndice(srcIndice, src.Len()); err != nil {
		return nil, err
	}
	if err := validateIndice(tgtIndice, tgt.Len()); err != nil {
		return nil, err
	}
	return &pointPairs{
		src: pc.NewIndiceVec3RandomAccessor(src, srcIndice),
		tgt: pc.NewIndiceVec3RandomAccessor(tgt, tgtIndice),
	}, nil
}

func newPointPairsCorrespondences(src, tgt pc.Vec3RandomAccessor, corrs Correspondences) (*pointPairs, error) {
	srcIndice := make([]int, len(corrs))
	tgtIndice := make([]int, len(corrs))
	dist := make([]float32, len(corrs))
	for i, c := range corrs {
		if c.Source < 0 || c.Source >= src.Len() ||
			c.Target < 0 || c.Target >= tgt.Len() {
			return nil, ErrIndexOutOfRange
		}
		srcIndice[i] = c.Source
		tgtIndice[i] = c.Target
		dist[i] = c.Distance
	}
	return &pointPairs{
		src:  pc.NewIndiceVec3RandomAccessor(src, srcIndice),
		tgt:  pc.NewIndiceVec3RandomAccessor(tgt, tgtIndice),
		dist: dist,
	}, nil
}

func validateIndice(indice []int, n int) error {
	for _, i := range indice {
		if i < 0 || i >= n {
			return ErrIndexOutOfRange
		}
	}
	return nil
}

func (p *pointPairs) len() int {
	return p.tgt.Len()
}

// distance returns the Euclidean distance of pair i, trusting the
// precomputed value when present.
func (p *pointPairs) distance(i int) float32 {
	if p.dist != nil && p.dist[i] > 0 {
		return p.dist[i]
	}
	return p.tgt.Vec3At(i).Sub(p.src.Vec3At(i)).Norm()
}

// Finite reports whether all components of v are finite.
// Non-finite points mark invalid measurements and are skipped by the
// estimators.
func Finite(v mat.Vec3) bool {
	for _, e := range v {
		f := float64(e)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
