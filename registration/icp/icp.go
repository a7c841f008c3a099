package icp

import (
	"errors"
	"fmt"
	"math"

	"github.com/seqsense/pcalign/registration"
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

// ErrFewCorrespondences is returned when an iteration finds fewer point
// pairs than MinPairs.
var ErrFewCorrespondences = errors.New("not enough correspondences")

const (
	defaultMaxIteration      = 20
	defaultConvergenceThresh = 1e-4
	defaultMinPairs          = 6
)

// SigmaSchedule returns the robust kernel width for the given iteration.
// meanDist is the mean distance of the correspondences found in this
// iteration.
type SigmaSchedule func(iter int, meanDist float32) float32

// DecaySigmaSchedule geometrically shrinks the kernel width every iteration:
// sigma(i) = max(min, initial*decay^i). Starting wide and annealing toward
// min lets far-off pairs guide the first iterations while the final ones are
// driven by the close matches only.
func DecaySigmaSchedule(initial, decay, min float32) SigmaSchedule {
	return func(iter int, _ float32) float32 {
		s := initial * float32(math.Pow(float64(decay), float64(iter)))
		if s < min {
			return min
		}
		return s
	}
}

// sigmaSetter is the optional kernel width control of an estimator.
type sigmaSetter interface {
	SetSigma(sigma float32)
}

// Stat reports the progress of the ICP iterations.
type Stat struct {
	Iteration int
	Pairs     int
	MeanDist  float32
	Converged bool
}

// ICP aligns a source cloud onto the target cloud of the Corresponder.
//
//	align := &icp.ICP{
//		Corresponder: icp.NewNearestPointCorresponder(target, 2),
//		Estimator:    registration.NewPointToPointRobust(),
//		Sigma:        icp.DecaySigmaSchedule(1, 0.9, 0.05),
//	}
//	trans, stat, err := align.Fit(source)
type ICP struct {
	// Corresponder supplies the point pairs of each iteration.
	Corresponder Corresponder
	// Estimator solves one rigid transformation per iteration.
	Estimator registration.Estimator
	// MaxIteration bounds the outer loop. Default: 20.
	MaxIteration int
	// ConvergenceThresh stops the loop once the mean correspondence
	// distance improves less than this between iterations. Default: 1e-4.
	ConvergenceThresh float32
	// MinPairs fails the iteration finding fewer pairs. Default: 6.
	MinPairs int
	// Sigma optionally schedules the kernel width per iteration.
	// It is applied when Estimator has a SetSigma method.
	Sigma SigmaSchedule
	// OnIteration is called with the Stat of every finished iteration.
	OnIteration func(Stat)
}

// Fit estimates the transformation aligning source onto the corresponder's
// target. The returned matrix maps source coordinates into target
// coordinates.
func (r *ICP) Fit(source pc.Vec3RandomAccessor) (mat.Mat4, Stat, error) {
	maxIteration := r.MaxIteration
	if maxIteration <= 0 {
		maxIteration = defaultMaxIteration
	}
	convergenceThresh := r.ConvergenceThresh
	if convergenceThresh <= 0 {
		convergenceThresh = defaultConvergenceThresh
	}
	minPairs := r.MinPairs
	if minPairs <= 0 {
		minPairs = defaultMinPairs
	}
	target := r.Corresponder.Target()

	trans := mat.Translate(0, 0, 0)
	var stat Stat
	prevMean := float32(math.MaxFloat32)
	for iter := 0; iter < maxIteration; iter++ {
		moved := &transformedVec3RandomAccessor{
			Vec3RandomAccessor: source,
			trans:              trans,
		}
		corrs := r.Corresponder.Correspondences(moved)
		if len(corrs) < minPairs {
			return trans, stat, fmt.Errorf("%w: %d pairs at iteration %d", ErrFewCorrespondences, len(corrs), iter)
		}
		mean := meanDistance(moved, target, corrs)

		if r.Sigma != nil {
			if s, ok := r.Estimator.(sigmaSetter); ok {
				s.SetSigma(r.Sigma(iter, mean))
			}
		}
		delta, err := r.Estimator.EstimateCorrespondences(moved, target, corrs)
		if err != nil {
			return trans, stat, fmt.Errorf("estimation failed at iteration %d: %w", iter, err)
		}
		trans = delta.Mul(trans)

		stat = Stat{
			Iteration: iter,
			Pairs:     len(corrs),
			MeanDist:  mean,
			Converged: prevMean-mean < convergenceThresh,
		}
		if r.OnIteration != nil {
			r.OnIteration(stat)
		}
		if stat.Converged {
			break
		}
		prevMean = mean
	}
	return trans, stat, nil
}

// meanDistance averages the distances of the resolvable pairs. Pairs the
// estimator would reject or skip are left out.
func meanDistance(src, tgt pc.Vec3RandomAccessor, corrs registration.Correspondences) float32 {
	var sum float32
	n := 0
	for _, c := range corrs {
		d := c.Distance
		if d <= 0 {
			if c.Source < 0 || c.Source >= src.Len() || c.Target < 0 || c.Target >= tgt.Len() {
				continue
			}
			s, t := src.Vec3At(c.Source), tgt.Vec3At(c.Target)
			if !registration.Finite(s) || !registration.Finite(t) {
				continue
			}
			d = t.Sub(s).Norm()
		}
		sum += d
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float32(n)
}
