package prior

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// UniformPrior is a uniform(a,b) prior.
type UniformPrior struct {
	dist distuv.Uniform
}

// NewUniform creates a uniform prior over [a, b].
func NewUniform(a, b float64) *UniformPrior {
	return &UniformPrior{dist: distuv.Uniform{Min: a, Max: b}}
}

func (p *UniformPrior) Family() Family { return Uniform }

func (p *UniformPrior) Params() (float64, float64) { return p.dist.Min, p.dist.Max }

func (p *UniformPrior) Sample(src rand.Source) float64 {
	d := p.dist
	d.Src = src
	return d.Rand()
}

func (p *UniformPrior) PDF(x float64) float64 { return p.dist.Prob(x) }

func (p *UniformPrior) LogPDF(x float64) float64 { return p.dist.LogProb(x) }

func (p *UniformPrior) InverseCDF(q float64) (float64, bool) {
	return p.dist.Quantile(q), true
}

func (p *UniformPrior) Support(x float64) bool {
	return x >= p.dist.Min && x <= p.dist.Max
}
