package hmm

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// EmissionModel scores observations under each macro-state. Substates of a
// duration-expanded model share their macro-state's emission parameters.
type EmissionModel interface {
	NumStates() int
	ObsDim() int
	// LogLikelihoods returns a T x K matrix of log p(obs_t | state k).
	LogLikelihoods(obs mat.Matrix) *mat.Dense
}

// Sampler is implemented by emission models that can draw observations.
type Sampler interface {
	Sample(k int, rng *rand.Rand) []float64
}

// Gaussian is a full-covariance multivariate normal per state.
type Gaussian struct {
	means   *mat.Dense
	normals []*distmv.Normal
	lower   []*mat.TriDense
}

func NewGaussian(means *mat.Dense, covariances []*mat.SymDense) (*Gaussian, error) {
	if means == nil {
		return nil, fmt.Errorf("hmm: gaussian means are nil")
	}
	k, d := means.Dims()
	if len(covariances) != k {
		return nil, fmt.Errorf("hmm: %d covariances for %d states", len(covariances), k)
	}

	g := &Gaussian{
		normals: make([]*distmv.Normal, k),
		lower:   make([]*mat.TriDense, k),
	}
	var m mat.Dense
	m.CloneFrom(means)
	g.means = &m

	for i, cov := range covariances {
		if cov == nil || cov.SymmetricDim() != d {
			return nil, fmt.Errorf("hmm: covariance %d does not match obs dim %d", i, d)
		}
		mu := make([]float64, d)
		mat.Row(mu, i, means)
		normal, ok := distmv.NewNormal(mu, cov, nil)
		if !ok {
			return nil, fmt.Errorf("hmm: covariance %d is not positive definite", i)
		}
		g.normals[i] = normal

		var chol mat.Cholesky
		if ok := chol.Factorize(cov); !ok {
			return nil, fmt.Errorf("hmm: covariance %d is not positive definite", i)
		}
		var l mat.TriDense
		chol.LTo(&l)
		g.lower[i] = &l
	}
	return g, nil
}

func (g *Gaussian) NumStates() int { return len(g.normals) }

func (g *Gaussian) ObsDim() int {
	_, d := g.means.Dims()
	return d
}

func (g *Gaussian) LogLikelihoods(obs mat.Matrix) *mat.Dense {
	t, d := obs.Dims()
	ll := mat.NewDense(t, len(g.normals), nil)
	x := make([]float64, d)
	for i := range t {
		mat.Row(x, i, obs)
		for k, normal := range g.normals {
			ll.Set(i, k, normal.LogProb(x))
		}
	}
	return ll
}

// Sample draws mu_k + L_k z with z standard normal.
func (g *Gaussian) Sample(k int, rng *rand.Rand) []float64 {
	d := g.ObsDim()
	z := make([]float64, d)
	for i := range z {
		z[i] = rng.NormFloat64()
	}
	var x mat.VecDense
	x.MulVec(g.lower[k], mat.NewVecDense(d, z))
	x.AddVec(&x, g.means.RowView(k))
	out := make([]float64, d)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out
}
