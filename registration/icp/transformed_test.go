package icp

import (
	"math"
	"testing"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

func TestTransformedVec3RandomAccessor(t *testing.T) {
	in := pc.Vec3Slice{
		{0.5, 1, -2},
		{2, -3, 4},
		{-1, 0, 2.5},
	}

	testCases := map[string]struct {
		trans    mat.Mat4
		expected pc.Vec3Slice
	}{
		"Translate": {
			trans: mat.Translate(2, -1, 3),
			expected: pc.Vec3Slice{
				{2.5, 0, 1},
				{4, -4, 7},
				{1, -1, 5.5},
			},
		},
		"RotateZ": {
			trans: mat.Rotate(0, 0, 1, math.Pi/2),
			expected: pc.Vec3Slice{
				{-1, 0.5, -2},
				{3, 2, 4},
				{0, -1, 2.5},
			},
		},
	}

	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			ra := &transformedVec3RandomAccessor{
				Vec3RandomAccessor: in,
				trans:              tt.trans,
			}
			if ra.Len() != in.Len() {
				t.Fatalf("Input and output length must be same, in: %d, out: %d", in.Len(), ra.Len())
			}
			for i, e := range tt.expected {
				v := ra.Vec3At(i)
				d := e.Sub(v).Norm()
				if d > 1e-6 {
					t.Errorf("Expected Vec3At(%d): %v, got: %v", i, e, v)
				}
			}
		})
	}

	t.Run("NonFinitePropagated", func(t *testing.T) {
		nan := float32(math.NaN())
		ra := &transformedVec3RandomAccessor{
			Vec3RandomAccessor: pc.Vec3Slice{{nan, 0, 0}},
			trans:              mat.Translate(1, 2, 3),
		}
		v := ra.Vec3At(0)
		if !math.IsNaN(float64(v[0])) {
			t.Errorf("Expected non-finite point to stay non-finite, got: %v", v)
		}
	})
}
