package acoustic

import (
	"math"
	"testing"
)

func TestNewGaussianFromInvVars(t *testing.T) {
	// mean = [1, -2], var = [0.5, 4]
	g, err := NewGaussianFromInvVars(0.25, []float64{2, -0.5}, []float64{2, 0.25})
	if err != nil {
		t.Fatalf("NewGaussianFromInvVars: %v", err)
	}
	wantMean := []float64{1, -2}
	wantVar := []float64{0.5, 4}
	for i := range wantMean {
		if math.Abs(g.Mean[i]-wantMean[i]) > 1e-12 {
			t.Errorf("Mean[%d] = %f, want %f", i, g.Mean[i], wantMean[i])
		}
		if math.Abs(g.Variance[i]-wantVar[i]) > 1e-12 {
			t.Errorf("Variance[%d] = %f, want %f", i, g.Variance[i], wantVar[i])
		}
	}
	wantGConst := 2*math.Log(2*math.Pi) + math.Log(0.5) + math.Log(4)
	if math.Abs(g.GConst-wantGConst) > 1e-12 {
		t.Errorf("GConst = %f, want %f", g.GConst, wantGConst)
	}
	if g.Weight != 0.25 {
		t.Errorf("Weight = %f, want 0.25", g.Weight)
	}
}

func TestNewGaussianFromInvVars_Invalid(t *testing.T) {
	tests := []struct {
		name string
		miv  []float64
		iv   []float64
	}{
		{"zero inverse variance", []float64{1}, []float64{0}},
		{"negative inverse variance", []float64{1}, []float64{-1}},
		{"infinite inverse variance", []float64{1}, []float64{math.Inf(1)}},
		{"NaN inverse variance", []float64{1}, []float64{math.NaN()}},
		{"dimension mismatch", []float64{1, 2}, []float64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGaussianFromInvVars(1, tt.miv, tt.iv); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGaussianLogProb(t *testing.T) {
	g := Gaussian{
		Mean:     []float64{0.0},
		Variance: []float64{1.0},
		Weight:   1.0,
	}
	g.Precompute()

	// Standard normal at x=0: log(1/sqrt(2π)) ≈ -0.9189
	lp := g.LogProb([]float64{0.0})
	expected := -0.5 * math.Log(2*math.Pi)
	if math.Abs(lp-expected) > 1e-9 {
		t.Errorf("LogProb(0) = %f, want %f", lp, expected)
	}

	lp5 := g.LogProb([]float64{5.0})
	if lp5 >= lp {
		t.Errorf("LogProb(5) = %f >= LogProb(0) = %f", lp5, lp)
	}
}

func TestGMMLogProb(t *testing.T) {
	a, _ := NewGaussianFromInvVars(0.5, []float64{0}, []float64{1})
	b, _ := NewGaussianFromInvVars(0.5, []float64{5}, []float64{1})
	gmm := &GMM{Components: []Gaussian{a, b}, Dim: 1}

	lp0 := gmm.LogProb([]float64{0.0})
	lp5 := gmm.LogProb([]float64{5.0})
	lp25 := gmm.LogProb([]float64{2.5})

	if math.IsNaN(lp0) || math.IsInf(lp0, 0) {
		t.Errorf("LogProb(0) = %f (not finite)", lp0)
	}
	// symmetric mixture
	if math.Abs(lp0-lp5) > 1e-9 {
		t.Errorf("LogProb(0)=%f and LogProb(5)=%f should be equal", lp0, lp5)
	}
	if lp25 > lp0 {
		t.Errorf("LogProb(2.5)=%f > LogProb(0)=%f", lp25, lp0)
	}
}

func TestDummyGMM(t *testing.T) {
	g := DummyGMM(3)
	if g.Dim != 3 || len(g.Components) != 1 {
		t.Fatalf("Dim=%d components=%d, want 3 and 1", g.Dim, len(g.Components))
	}
	c := g.Components[0]
	if c.Weight != 1 || c.GConst != 1 {
		t.Errorf("Weight=%f GConst=%f, want 1 and 1", c.Weight, c.GConst)
	}
	for i := 0; i < 3; i++ {
		if c.Mean[i] != 0 || c.Variance[i] != 1 {
			t.Errorf("dim %d: mean=%f var=%f", i, c.Mean[i], c.Variance[i])
		}
	}
}
