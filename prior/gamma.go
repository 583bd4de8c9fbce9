package prior

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// GammaPrior is a gamma(alpha, beta) prior, using gonum's shape/rate
// parameterization (p1=alpha shape, p2=beta rate).
type GammaPrior struct {
	dist distuv.Gamma
}

// NewGamma creates a gamma prior with shape alpha and rate beta.
func NewGamma(alpha, beta float64) *GammaPrior {
	return &GammaPrior{dist: distuv.Gamma{Alpha: alpha, Beta: beta}}
}

func (p *GammaPrior) Family() Family { return Gamma }

func (p *GammaPrior) Params() (float64, float64) { return p.dist.Alpha, p.dist.Beta }

func (p *GammaPrior) Sample(src rand.Source) float64 {
	d := p.dist
	d.Src = src
	return d.Rand()
}

func (p *GammaPrior) PDF(x float64) float64 { return p.dist.Prob(x) }

func (p *GammaPrior) LogPDF(x float64) float64 { return p.dist.LogProb(x) }

func (p *GammaPrior) InverseCDF(q float64) (float64, bool) { return 0, false }

func (p *GammaPrior) Support(x float64) bool { return x > 0 }
