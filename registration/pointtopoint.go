package registration

import (
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

var (
	_ Estimator = &PointToPointRobust{}
	_ Estimator = PointToPointSVD{}
)

// PointToPointRobust estimates rigid transformations minimizing
// Welsch-weighted point-to-point distances. Pairs with larger distances get
// exponentially smaller influence, so outlier correspondences barely disturb
// the result.
//
// The kernel width sigma is per-instance state. It starts disabled and may
// be changed by SetSigma between estimations, e.g. to anneal it across the
// iterations of an outer registration loop. Instances are not safe for
// concurrent use.
type PointToPointRobust struct {
	sigma float32
}

// NewPointToPointRobust returns an estimator with the kernel disabled
// (uniform weighting) until SetSigma sets a positive width.
func NewPointToPointRobust() *PointToPointRobust {
	return &PointToPointRobust{sigma: -1}
}

// SetSigma sets the Welsch kernel width used by the following estimations.
// sigma <= 0 disables weighting.
func (e *PointToPointRobust) SetSigma(sigma float32) {
	e.sigma = sigma
}

func (e *PointToPointRobust) weight(d float32) float32 {
	return WelschWeight(d, e.sigma)
}

func (e *PointToPointRobust) Estimate(source, target pc.Vec3RandomAccessor) (mat.Mat4, error) {
	pairs, err := newPointPairs(source, target)
	if err != nil {
		return mat.Mat4{}, err
	}
	return estimatePairs(pairs, e.weight)
}

func (e *PointToPointRobust) EstimateSourceIndice(source pc.Vec3RandomAccessor, indice []int, target pc.Vec3RandomAccessor) (mat.Mat4, error) {
	pairs, err := newPointPairsSourceIndice(source, indice, target)
	if err != nil {
		return mat.Mat4{}, err
	}
	return estimatePairs(pairs, e.weight)
}

func (e *PointToPointRobust) EstimateIndice(source pc.Vec3RandomAccessor, srcIndice []int, target pc.Vec3RandomAccessor, tgtIndice []int) (mat.Mat4, error) {
	pairs, err := newPointPairsIndice(source, srcIndice, target, tgtIndice)
	if err != nil {
		return mat.Mat4{}, err
	}
	return estimatePairs(pairs, e.weight)
}

func (e *PointToPointRobust) EstimateCorrespondences(source, target pc.Vec3RandomAccessor, corrs Correspondences) (mat.Mat4, error) {
	pairs, err := newPointPairsCorrespondences(source, target, corrs)
	if err != nil {
		return mat.Mat4{}, err
	}
	return estimatePairs(pairs, e.weight)
}

// PointToPointSVD estimates rigid transformations minimizing plain
// unweighted point-to-point distances. It is the baseline PointToPointRobust
// falls back to when its kernel is disabled.
type PointToPointSVD struct{}

func (PointToPointSVD) Estimate(source, target pc.Vec3RandomAccessor) (mat.Mat4, error) {
	pairs, err := newPointPairs(source, target)
	if err != nil {
		return mat.Mat4{}, err
	}
	return estimatePairs(pairs, nil)
}

func (PointToPointSVD) EstimateSourceIndice(source pc.Vec3RandomAccessor, indice []int, target pc.Vec3RandomAccessor) (mat.Mat4, error) {
	pairs, err := newPointPairsSourceIndice(source, indice, target)
	if err != nil {
		return mat.Mat4{}, err
	}
	return estimatePairs(pairs, nil)
}

func (PointToPointSVD) EstimateIndice(source pc.Vec3RandomAccessor, srcIndice []int, target pc.Vec3RandomAccessor, tgtIndice []int) (mat.Mat4, error) {
	pairs, err := newPointPairsIndice(source, srcIndice, target, tgtIndice)
	if err != nil {
		return mat.Mat4{}, err
	}
	return estimatePairs(pairs, nil)
}

func (PointToPointSVD) EstimateCorrespondences(source, target pc.Vec3RandomAccessor, corrs Correspondences) (mat.Mat4, error) {
	pairs, err := newPointPairsCorrespondences(source, target, corrs)
	if err != nil {
		return mat.Mat4{}, err
	}
	return estimatePairs(pairs, nil)
}
