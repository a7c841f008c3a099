// Package registration estimates rigid transformations aligning 3-D point
// clouds.
package registration

import (
	"errors"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

var (
	// ErrSizeMismatch is returned when the numbers of source and target
	// points to be paired don't match.
	ErrSizeMismatch = errors.New("number of source and target points mismatch")
	// ErrIndexOutOfRange is returned when an index selection or a
	// correspondence points outside its cloud.
	ErrIndexOutOfRange = errors.New("point index out of range")
	// ErrNoValidPoints is returned when no finite point pair is left to
	// estimate from.
	ErrNoValidPoints = errors.New("no valid point pairs")
)

// Estimator estimates the rigid transformation aligning a source point cloud
// onto a target point cloud. The returned matrix maps source coordinates
// into target coordinates. Point pairs containing a non-finite point are
// skipped, but an estimation without any remaining pair fails with
// ErrNoValidPoints.
type Estimator interface {
	// Estimate pairs source and target points of the same index.
	// Both clouds must have the same number of points.
	Estimate(source, target pc.Vec3RandomAccessor) (mat.Mat4, error)
	// EstimateSourceIndice pairs the selected source points with the full
	// target cloud in order. len(indice) must equal target.Len().
	EstimateSourceIndice(source pc.Vec3RandomAccessor, indice []int, target pc.Vec3RandomAccessor) (mat.Mat4, error)
	// EstimateIndice pairs source point srcIndice[i] with target point
	// tgtIndice[i]. Both selections must have the same length.
	EstimateIndice(source pc.Vec3RandomAccessor, srcIndice []int, target pc.Vec3RandomAccessor, tgtIndice []int) (mat.Mat4, error)
	// EstimateCorrespondences pairs the points listed in corrs.
	EstimateCorrespondences(source, target pc.Vec3RandomAccessor, corrs Correspondences) (mat.Mat4, error)
}

// Correspondence pairs a source point index with a target point index.
// Distance optionally carries the Euclidean distance between the two points.
// Zero or negative means unknown, and the estimator measures the distance
// from the point positions instead.
type Correspondence struct {
	Source   int
	Target   int
	Distance float32
}

// Correspondences is a list of point pairs between two clouds.
type Correspondences []Correspondence
