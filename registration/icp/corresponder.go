package icp

import (
	"github.com/seqsense/pcalign/registration"
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	"github.com/seqsense/pcgol/pc/storage"
	"github.com/seqsense/pcgol/pc/storage/kdtree"
)

// Corresponder finds the point pairs tying a source cloud to the target
// cloud it was built for.
type Corresponder interface {
	Correspondences(source pc.Vec3RandomAccessor) registration.Correspondences
	Target() pc.Vec3RandomAccessor
}

// searcher is the nearest point lookup of pc/storage/kdtree.
type searcher interface {
	Nearest(p mat.Vec3, maxRange float32) storage.Neighbor
}

// NearestPointCorresponder pairs each source point with its nearest target
// point within maxDist. Source points without a target point in range and
// non-finite source points are left unpaired.
type NearestPointCorresponder struct {
	target  pc.Vec3RandomAccessor
	kdt     searcher
	maxDist float32
}

// NewNearestPointCorresponder builds a kd-tree over target for the nearest
// point lookups.
func NewNearestPointCorresponder(target pc.Vec3RandomAccessor, maxDist float32) *NearestPointCorresponder {
	return &NearestPointCorresponder{
		target:  target,
		kdt:     kdtree.New(target),
		maxDist: maxDist,
	}
}

// Target returns the cloud the correspondences point into.
func (c *NearestPointCorresponder) Target() pc.Vec3RandomAccessor {
	return c.target
}

// Correspondences pairs the points of source with their nearest target
// points. The distance of each pair is measured from the point positions.
func (c *NearestPointCorresponder) Correspondences(source pc.Vec3RandomAccessor) registration.Correspondences {
	corrs := make(registration.Correspondences, 0, source.Len())
	for i := 0; i < source.Len(); i++ {
		p := source.Vec3At(i)
		if !registration.Finite(p) {
			continue
		}
		n := c.kdt.Nearest(p, c.maxDist)
		if n.ID < 0 {
			continue
		}
		corrs = append(corrs, registration.Correspondence{
			Source:   i,
			Target:   n.ID,
			Distance: c.target.Vec3At(n.ID).Sub(p).Norm(),
		})
	}
	return corrs
}
