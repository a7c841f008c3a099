// Package icp iteratively aligns a source point cloud onto a target point
// cloud by alternating nearest point correspondence search and rigid
// transformation estimation.
package icp

import (
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

// transformedVec3RandomAccessor presents the points of the base accessor
// moved by trans, without copying the cloud. Non-finite points stay
// non-finite.
type transformedVec3RandomAccessor struct {
	pc.Vec3RandomAccessor
	trans mat.Mat4
}

func (a *transformedVec3RandomAccessor) Vec3At(i int) mat.Vec3 {
	return a.trans.TransformAffine(a.Vec3RandomAccessor.Vec3At(i))
}
