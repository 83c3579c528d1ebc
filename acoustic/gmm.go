package acoustic

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

var log2Pi = math.Log(2 * math.Pi)

// Gaussian is a single diagonal-covariance mixture component in HTK form.
type Gaussian struct {
	Mean     []float64 // [dim]
	Variance []float64 // [dim] diagonal covariance
	Weight   float64   // mixture weight
	GConst   float64   // d*log(2π) + Σ log(var)
}

// Precompute recalculates GConst from Variance.
// Must be called after updating Variance.
func (g *Gaussian) Precompute() {
	g.GConst = float64(len(g.Variance))*log2Pi + sumLog(g.Variance)
}

// LogProb computes the log density of x under this component, without the weight.
func (g *Gaussian) LogProb(x []float64) float64 {
	maha := 0.0
	for i, v := range g.Variance {
		d := x[i] - g.Mean[i]
		maha += d * d / v
	}
	return -0.5 * (g.GConst + maha)
}

func sumLog(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += math.Log(x)
	}
	return s
}

// NewGaussianFromInvVars converts a Kaldi component, stored as
// (mean*inverse-variance, inverse-variance), to mean/variance form.
func NewGaussianFromInvVars(weight float64, meansInvVars, invVars []float64) (Gaussian, error) {
	if len(meansInvVars) != len(invVars) {
		return Gaussian{}, errors.Errorf("dimension mismatch: %d means, %d inverse variances", len(meansInvVars), len(invVars))
	}
	for i, iv := range invVars {
		if !(iv > 0) || math.IsInf(iv, 0) {
			return Gaussian{}, errors.Errorf("invalid inverse variance %g at dim %d", iv, i)
		}
	}
	dim := len(invVars)
	g := Gaussian{
		Mean:     make([]float64, dim),
		Variance: make([]float64, dim),
		Weight:   weight,
	}
	floats.DivTo(g.Mean, meansInvVars, invVars)
	for i, iv := range invVars {
		g.Variance[i] = 1.0 / iv
	}
	g.Precompute()
	return g, nil
}

// GMM is a Gaussian Mixture Model with diagonal covariance.
type GMM struct {
	Components []Gaussian
	Dim        int
}

// DummyGMM returns the placeholder state written when no GMM parameters are
// available: one component with zero mean, unit variance and GCONST 1.
func DummyGMM(dim int) *GMM {
	variance := make([]float64, dim)
	for i := range variance {
		variance[i] = 1.0
	}
	return &GMM{
		Components: []Gaussian{{
			Mean:     make([]float64, dim),
			Variance: variance,
			Weight:   1.0,
			GConst:   1.0,
		}},
		Dim: dim,
	}
}

// LogProb computes log P(x | this GMM) = log sum_k w_k * N(x; μ_k, σ_k).
func (g *GMM) LogProb(x []float64) float64 {
	terms := make([]float64, len(g.Components))
	for i := range g.Components {
		terms[i] = math.Log(g.Components[i].Weight) + g.Components[i].LogProb(x)
	}
	return floats.LogSumExp(terms)
}
