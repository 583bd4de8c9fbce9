package prior

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// NormalPrior is a normal(mu, sigma) prior.
type NormalPrior struct {
	dist distuv.Normal
}

// NewNormal creates a normal prior with mean mu and standard deviation sigma.
func NewNormal(mu, sigma float64) *NormalPrior {
	return &NormalPrior{dist: distuv.Normal{Mu: mu, Sigma: sigma}}
}

func (p *NormalPrior) Family() Family { return Normal }

func (p *NormalPrior) Params() (float64, float64) { return p.dist.Mu, p.dist.Sigma }

func (p *NormalPrior) Sample(src rand.Source) float64 {
	d := p.dist
	d.Src = src
	return d.Rand()
}

func (p *NormalPrior) PDF(x float64) float64 { return p.dist.Prob(x) }

func (p *NormalPrior) LogPDF(x float64) float64 { return p.dist.LogProb(x) }

func (p *NormalPrior) InverseCDF(q float64) (float64, bool) { return 0, false }

func (p *NormalPrior) Support(x float64) bool { return true }
