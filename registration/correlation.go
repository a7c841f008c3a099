package registration

import (
	"errors"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	gmat "gonum.org/v1/gonum/mat"
)

// estimatePairs runs the shared estimation pipeline: per-pair robust weights,
// weighted centroids, weighted correlation matrix, then the SVD solve.
// weightFn maps a pair distance to its weight. nil means uniform weighting.
func estimatePairs(pairs *pointPairs, weightFn func(d float32) float32) (mat.Mat4, error) {
	n := pairs.len()
	w := make([]float64, n)
	valid := 0
	for i := 0; i < n; i++ {
		if !Finite(pairs.src.Vec3At(i)) || !Finite(pairs.tgt.Vec3At(i)) {
			continue
		}
		valid++
		if weightFn != nil {
			w[i] = float64(weightFn(pairs.distance(i)))
		} else {
			w[i] = 1
		}
	}
	if valid == 0 {
		return mat.Mat4{}, ErrNoValidPoints
	}

	cSrc, ns := weightedCentroid(pairs.src, w)
	cTgt, nt := weightedCentroid(pairs.tgt, w)
	if ns == 0 || nt == 0 {
		return mat.Mat4{}, ErrNoValidPoints
	}

	h := correlationMatrix(pairs.src, pairs.tgt, cSrc, cTgt, w)
	return transformFromCorrelation(h, cSrc, cTgt)
}

// weightedCentroid computes the weighted centroid of the finite points of ra
// as a homogeneous [x y z 1] vector, and the number of points that
// contributed. Count 0 (no finite point, or zero total weight) means the
// centroid could not be computed and the returned value must not be used.
func weightedCentroid(ra pc.Vec3RandomAccessor, w []float64) ([4]float64, int) {
	var sum [3]float64
	var wsum float64
	n := 0
	for i := 0; i < ra.Len(); i++ {
		p := ra.Vec3At(i)
		if !Finite(p) {
			continue
		}
		wi := w[i]
		sum[0] += wi * float64(p[0])
		sum[1] += wi * float64(p[1])
		sum[2] += wi * float64(p[2])
		wsum += wi
		n++
	}
	if n == 0 || wsum <= 0 {
		return [4]float64{}, 0
	}
	return [4]float64{sum[0] / wsum, sum[1] / wsum, sum[2] / wsum, 1}, n
}

// correlationMatrix assembles the weighted correlation matrix
// H = demeanSrc * diag(w) * demeanTgt^T. Pairs containing a non-finite point
// keep all-zero columns, so H stays a dense 3x3 matrix whatever the number
// of dropped pairs.
func correlationMatrix(src, tgt pc.Vec3RandomAccessor, cSrc, cTgt [4]float64, w []float64) *gmat.Dense {
	n := src.Len()
	demeanSrc := gmat.NewDense(3, n, nil)
	demeanTgt := gmat.NewDense(3, n, nil)
	for i := 0; i < n; i++ {
		s, t := src.Vec3At(i), tgt.Vec3At(i)
		if !Finite(s) || !Finite(t) {
			continue
		}
		for row := 0; row < 3; row++ {
			demeanSrc.Set(row, i, float64(s[row])-cSrc[row])
			demeanTgt.Set(row, i, float64(t[row])-cTgt[row])
		}
	}
	var wt, h gmat.Dense
	wt.Mul(gmat.NewDiagDense(n, w), demeanTgt.T())
	h.Mul(demeanSrc, &wt)
	return &h
}

// transformFromCorrelation solves the rotation R = V*U^T from the SVD of the
// correlation matrix and recovers the translation t = cTgt - R*cSrc.
// A reflection (det(R) < 0) is corrected by negating the last column of V,
// so the rotation block of the result always has determinant +1.
// A rank deficient correlation matrix still yields a proper rotation, but
// one that is not uniquely determined by the input points.
func transformFromCorrelation(h *gmat.Dense, cSrc, cTgt [4]float64) (mat.Mat4, error) {
	var svd gmat.SVD
	if !svd.Factorize(h, gmat.SVDFull) {
		return mat.Mat4{}, errors.New("failed to factorize correlation matrix")
	}
	var u, v gmat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r gmat.Dense
	r.Mul(&v, u.T())
	if gmat.Det(&r) < 0 {
		for i := 0; i < 3; i++ {
			v.Set(i, 2, -v.At(i, 2))
		}
		r.Mul(&v, u.T())
	}

	var out mat.Mat4
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			out[4*col+row] = float32(r.At(row, col))
		}
	}
	for row := 0; row < 3; row++ {
		t := cTgt[row]
		for k := 0; k < 3; k++ {
			t -= r.At(row, k) * cSrc[k]
		}
		out[12+row] = float32(t)
	}
	out[15] = 1
	return out, nil
}
