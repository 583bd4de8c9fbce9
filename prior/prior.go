// Package prior implements PriorSet: a parsed collection of independent
// univariate priors (uniform, normal, lognormal, gamma), each bound to a
// named parameter in either the simulator's global (gdata) or per-node
// (ldata) parameter space.
package prior

import "golang.org/x/exp/rand"

// Family enumerates the four supported prior distribution families.
type Family int

const (
	Uniform Family = iota
	Normal
	LogNormal
	Gamma
)

func (f Family) String() string {
	switch f {
	case Uniform:
		return "uniform"
	case Normal:
		return "normal"
	case LogNormal:
		return "lognormal"
	case Gamma:
		return "gamma"
	default:
		return "unknown"
	}
}

// Prior is the uniform interface over the four prior families: sample,
// evaluate density, and test support membership.
type Prior interface {
	// Family reports which distribution family this prior belongs to.
	Family() Family
	// Params returns the two standard parameters (p1, p2) of the family.
	Params() (p1, p2 float64)
	// Sample draws a value from the prior using src (nil uses the package
	// default source).
	Sample(src rand.Source) float64
	// PDF evaluates the prior density at x.
	PDF(x float64) float64
	// LogPDF evaluates the log prior density at x.
	LogPDF(x float64) float64
	// InverseCDF evaluates the inverse CDF at p in [0,1]. Only Uniform
	// priors support this; the second return value is false otherwise.
	InverseCDF(p float64) (float64, bool)
	// Support reports whether x lies in the prior's support.
	Support(x float64) bool
}
