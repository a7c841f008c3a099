package icp

import (
	"errors"
	"testing"

	"github.com/seqsense/pcalign/registration"
	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

// stubCorresponder pairs source and target points of the same index.
type stubCorresponder struct {
	target pc.Vec3RandomAccessor
}

func (c *stubCorresponder) Target() pc.Vec3RandomAccessor { return c.target }

func (c *stubCorresponder) Correspondences(source pc.Vec3RandomAccessor) registration.Correspondences {
	corrs := make(registration.Correspondences, 0, source.Len())
	for i := 0; i < source.Len(); i++ {
		corrs = append(corrs, registration.Correspondence{Source: i, Target: i})
	}
	return corrs
}

// emptyCorresponder finds nothing.
type emptyCorresponder struct {
	target pc.Vec3RandomAccessor
}

func (c *emptyCorresponder) Target() pc.Vec3RandomAccessor { return c.target }

func (c *emptyCorresponder) Correspondences(pc.Vec3RandomAccessor) registration.Correspondences {
	return nil
}

// brokenCorresponder pairs out of the target bounds.
type brokenCorresponder struct {
	target pc.Vec3RandomAccessor
}

func (c *brokenCorresponder) Target() pc.Vec3RandomAccessor { return c.target }

func (c *brokenCorresponder) Correspondences(pc.Vec3RandomAccessor) registration.Correspondences {
	return registration.Correspondences{{Source: 0, Target: 1 << 30}}
}

// recordingEstimator captures the kernel widths set by the sigma schedule.
type recordingEstimator struct {
	registration.PointToPointSVD
	sigmas []float32
}

func (e *recordingEstimator) SetSigma(sigma float32) {
	e.sigmas = append(e.sigmas, sigma)
}

func gridCloud() pc.Vec3Slice {
	var out pc.Vec3Slice
	for x := -2; x <= 2; x++ {
		for y := -2; y <= 2; y++ {
			for z := 0; z < 3; z++ {
				out = append(out, mat.Vec3{float32(x), float32(y), float32(z)})
			}
		}
	}
	return out
}

func applyToCloud(src pc.Vec3Slice, trans mat.Mat4) pc.Vec3Slice {
	out := make(pc.Vec3Slice, len(src))
	for i, p := range src {
		out[i] = trans.TransformAffine(p)
	}
	return out
}

func mat4Diff(a, b mat.Mat4) float32 {
	var max float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		if d > max {
			max = d
		}
	}
	return max
}

func TestICPFit(t *testing.T) {
	source := gridCloud()
	trans := mat.Translate(0.12, -0.08, 0.1).Mul(mat.Rotate(0, 0, 1, 0.05))
	target := applyToCloud(source, trans)

	t.Run("KnownPairs", func(t *testing.T) {
		var stats []Stat
		align := &ICP{
			Corresponder: &stubCorresponder{target: target},
			Estimator:    registration.PointToPointSVD{},
			OnIteration:  func(s Stat) { stats = append(stats, s) },
		}
		out, stat, err := align.Fit(source)
		if err != nil {
			t.Fatal(err)
		}
		if !stat.Converged {
			t.Error("Expected convergence")
		}
		if d := mat4Diff(out, trans); d > 1e-4 {
			t.Errorf("Expected transform: %v, got: %v (diff: %f)", trans, out, d)
		}
		if stat.Pairs != len(source) {
			t.Errorf("Expected %d pairs, got: %d", len(source), stat.Pairs)
		}
		if len(stats) == 0 {
			t.Fatal("Expected iteration stats")
		}
		if last := stats[len(stats)-1]; last != stat {
			t.Errorf("Expected last stat: %v, got: %v", stat, last)
		}
	})

	t.Run("NearestPoint", func(t *testing.T) {
		align := &ICP{
			Corresponder: NewNearestPointCorresponder(target, 2),
			Estimator:    registration.NewPointToPointRobust(),
			MaxIteration: 30,
			Sigma:        DecaySigmaSchedule(1, 0.9, 0.05),
		}
		out, stat, err := align.Fit(source)
		if err != nil {
			t.Fatal(err)
		}
		if d := mat4Diff(out, trans); d > 0.02 {
			t.Errorf("Expected transform: %v, got: %v (diff: %f)", trans, out, d)
		}
		if stat.Pairs == 0 {
			t.Error("Expected pairs in the final iteration")
		}
	})

	t.Run("FewCorrespondences", func(t *testing.T) {
		align := &ICP{
			Corresponder: &emptyCorresponder{target: target},
			Estimator:    registration.PointToPointSVD{},
		}
		_, _, err := align.Fit(source)
		if !errors.Is(err, ErrFewCorrespondences) {
			t.Errorf("Expected error: %v, got: %v", ErrFewCorrespondences, err)
		}
	})

	t.Run("EstimationError", func(t *testing.T) {
		align := &ICP{
			Corresponder: &brokenCorresponder{target: target},
			Estimator:    registration.PointToPointSVD{},
			MinPairs:     1,
		}
		_, _, err := align.Fit(source)
		if !errors.Is(err, registration.ErrIndexOutOfRange) {
			t.Errorf("Expected error: %v, got: %v", registration.ErrIndexOutOfRange, err)
		}
	})

	t.Run("SigmaSchedule", func(t *testing.T) {
		e := &recordingEstimator{}
		align := &ICP{
			Corresponder: &stubCorresponder{target: target},
			Estimator:    e,
			Sigma:        DecaySigmaSchedule(2, 0.5, 0.3),
		}
		if _, _, err := align.Fit(source); err != nil {
			t.Fatal(err)
		}
		if len(e.sigmas) == 0 {
			t.Fatal("Expected SetSigma calls")
		}
		schedule := DecaySigmaSchedule(2, 0.5, 0.3)
		for i, s := range e.sigmas {
			if want := schedule(i, 0); s != want {
				t.Errorf("Expected sigma at iteration %d: %f, got: %f", i, want, s)
			}
		}
	})
}

func TestDecaySigmaSchedule(t *testing.T) {
	s := DecaySigmaSchedule(2, 0.5, 0.3)
	testCases := []struct {
		iter     int
		expected float32
	}{
		{0, 2},
		{1, 1},
		{2, 0.5},
		{3, 0.3},
		{10, 0.3},
	}
	for _, tt := range testCases {
		if out := s(tt.iter, 0); out != tt.expected {
			t.Errorf("Expected sigma(%d): %f, got: %f", tt.iter, tt.expected, out)
		}
	}
}
