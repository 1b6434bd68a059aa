// Package sampling supplies the correlated (extraversion, conformity)
// trait pairs that diffusion runs assign to nodes. Samplers sit behind
// the PairSampler interface; the default is a Gaussian copula over Beta
// marginals.
package sampling

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Pair is one drawn (extraversion, conformity) sample.
type Pair struct {
	Extraversion float64
	Conformity   float64
}

// PairSampler produces n correlated trait pairs.
type PairSampler interface {
	SamplePairs(n int, rng *rand.Rand) ([]Pair, error)
}

// BetaParams are the shape parameters of a Beta marginal.
type BetaParams struct {
	Alpha float64
	Beta  float64
}

// Skew presets used across the experiments: -1 selects a negative skew,
// 0 an approximately normal shape, +1 a positive skew.
var skewPresets = map[int]BetaParams{
	0:  {Alpha: 4, Beta: 4},
	-1: {Alpha: 2.5, Beta: 3.5},
	1:  {Alpha: 3.5, Beta: 2.5},
}

// PresetFor returns the Beta parameters for a skew setting in {-1, 0, 1}.
func PresetFor(skew int) (BetaParams, error) {
	p, ok := skewPresets[skew]
	if !ok {
		return BetaParams{}, fmt.Errorf("sampling: skew must be -1, 0 or 1, got %d", skew)
	}
	return p, nil
}

// DefaultCorrelation is the extraversion/conformity correlation the
// experiments were run with.
const DefaultCorrelation = -0.3

// CorrelatedBeta draws pairs with Beta marginals and the given Pearson
// correlation via a Gaussian copula: correlated standard normals are
// mapped through the normal CDF to uniforms and then through the Beta
// quantile function.
type CorrelatedBeta struct {
	Extraversion BetaParams
	Conformity   BetaParams
	Rho          float64
}

// SamplePairs draws n correlated pairs.
func (c *CorrelatedBeta) SamplePairs(n int, rng *rand.Rand) ([]Pair, error) {
	if c.Rho <= -1 || c.Rho >= 1 {
		return nil, fmt.Errorf("sampling: correlation %v outside (-1, 1)", c.Rho)
	}
	mix := math.Sqrt(1 - c.Rho*c.Rho)
	pairs := make([]Pair, n)
	for i := range pairs {
		z1 := rng.NormFloat64()
		z2 := c.Rho*z1 + mix*rng.NormFloat64()
		ext, err := betaQuantile(normCDF(z1), c.Extraversion)
		if err != nil {
			return nil, err
		}
		conf, err := betaQuantile(normCDF(z2), c.Conformity)
		if err != nil {
			return nil, err
		}
		pairs[i] = Pair{Extraversion: ext, Conformity: conf}
	}
	return pairs, nil
}

// normCDF is the standard normal CDF.
func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// betaQuantile inverts the regularized incomplete beta function by
// bisection. u is clamped away from the endpoints so extreme copula draws
// stay inside (0, 1).
func betaQuantile(u float64, p BetaParams) (float64, error) {
	if p.Alpha <= 0 || p.Beta <= 0 {
		return 0, fmt.Errorf("sampling: beta shape parameters must be positive, got (%v, %v)", p.Alpha, p.Beta)
	}
	const eps = 1e-12
	u = math.Min(math.Max(u, eps), 1-eps)
	lo, hi := 0.0, 1.0
	for i := 0; i < 200; i++ {
		mid := (lo + hi) / 2
		if regIncBeta(p.Alpha, p.Beta, mid) < u {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, nil
}

// regIncBeta is the regularized incomplete beta function I_x(a, b),
// evaluated with the continued-fraction expansion.
func regIncBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	lbeta := lgamma(a+b) - lgamma(a) - lgamma(b)
	front := math.Exp(lbeta + a*math.Log(x) + b*math.Log(1-x))
	if x < (a+1)/(a+b+2) {
		return front * betaCF(a, b, x) / a
	}
	return 1 - front*betaCF(b, a, 1-x)/b
}

// betaCF evaluates the continued fraction for the incomplete beta function
// by the modified Lentz method.
func betaCF(a, b, x float64) float64 {
	const (
		maxIter = 300
		epsilon = 1e-15
		tiny    = 1e-30
	)
	qab, qap, qam := a+b, a+1, a-1
	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d
	for m := 1; m <= maxIter; m++ {
		fm := float64(m)
		m2 := 2 * fm
		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c
		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < epsilon {
			break
		}
	}
	return h
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
