package prior

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// LogNormalPrior is a lognormal(mu, sigma) prior over the log of the value.
type LogNormalPrior struct {
	dist distuv.LogNormal
}

// NewLogNormal creates a lognormal prior with underlying-normal mean mu and
// standard deviation sigma.
func NewLogNormal(mu, sigma float64) *LogNormalPrior {
	return &LogNormalPrior{dist: distuv.LogNormal{Mu: mu, Sigma: sigma}}
}

func (p *LogNormalPrior) Family() Family { return LogNormal }

func (p *LogNormalPrior) Params() (float64, float64) { return p.dist.Mu, p.dist.Sigma }

func (p *LogNormalPrior) Sample(src rand.Source) float64 {
	d := p.dist
	d.Src = src
	return d.Rand()
}

func (p *LogNormalPrior) PDF(x float64) float64 { return p.dist.Prob(x) }

func (p *LogNormalPrior) LogPDF(x float64) float64 { return p.dist.LogProb(x) }

func (p *LogNormalPrior) InverseCDF(q float64) (float64, bool) { return 0, false }

func (p *LogNormalPrior) Support(x float64) bool { return x > 0 }
