package prior

import (
	"fmt"
	"strconv"
	"strings"

	abcsmc "github.com/abcsmc/engine"
	"golang.org/x/exp/rand"
)

// Target identifies which simulator parameter space a PriorSet is bound to.
type Target int

const (
	GData Target = iota
	LData
)

func (t Target) String() string {
	if t == LData {
		return "ldata"
	}
	return "gdata"
}

// Named pairs a parameter name with its prior.
type Named struct {
	Name  string
	Prior Prior
}

// Set is a PriorSet: a named collection of independent univariate priors,
// all bound to the same parameter space (gdata or ldata).
type Set struct {
	named  []Named
	target Target
}

// NewSet builds a PriorSet bound to target from already-constructed priors.
// It returns a ConstructionError if named is empty or contains duplicate
// names.
func NewSet(target Target, named ...Named) (*Set, error) {
	if len(named) == 0 {
		return nil, abcsmc.NewConstructionError("priors", "prior set must contain at least one parameter")
	}
	seen := make(map[string]bool, len(named))
	for _, nm := range named {
		if seen[nm.Name] {
			return nil, abcsmc.NewConstructionError("priors", fmt.Sprintf("duplicate parameter name %q", nm.Name))
		}
		seen[nm.Name] = true
	}
	out := make([]Named, len(named))
	copy(out, named)
	return &Set{named: out, target: target}, nil
}

// Parse parses a single "name ~ family(p1, p2)" expression and returns the
// parsed Named entry.
func Parse(expr string) (Named, error) {
	parts := strings.SplitN(expr, "~", 2)
	if len(parts) != 2 {
		return Named{}, abcsmc.NewConstructionError("prior", fmt.Sprintf("malformed prior expression %q: expected 'name ~ family(p1, p2)'", expr))
	}
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return Named{}, abcsmc.NewConstructionError("prior", fmt.Sprintf("malformed prior expression %q: missing parameter name", expr))
	}

	rhs := strings.TrimSpace(parts[1])
	open := strings.Index(rhs, "(")
	if open < 0 || !strings.HasSuffix(rhs, ")") {
		return Named{}, abcsmc.NewConstructionError("prior", fmt.Sprintf("malformed prior expression %q: expected family(p1, p2)", expr))
	}
	family := strings.TrimSpace(rhs[:open])
	argsStr := rhs[open+1 : len(rhs)-1]
	args := strings.Split(argsStr, ",")
	if len(args) != 2 {
		return Named{}, abcsmc.NewConstructionError("prior", fmt.Sprintf("malformed prior expression %q: family takes exactly two parameters", expr))
	}
	p1, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
	if err != nil {
		return Named{}, abcsmc.NewConstructionError("prior", fmt.Sprintf("malformed prior expression %q: p1 is not numeric: %v", expr, err))
	}
	p2, err := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
	if err != nil {
		return Named{}, abcsmc.NewConstructionError("prior", fmt.Sprintf("malformed prior expression %q: p2 is not numeric: %v", expr, err))
	}

	var p Prior
	switch strings.ToLower(family) {
	case "uniform":
		p = NewUniform(p1, p2)
	case "normal":
		p = NewNormal(p1, p2)
	case "lognormal":
		p = NewLogNormal(p1, p2)
	case "gamma":
		p = NewGamma(p1, p2)
	default:
		return Named{}, abcsmc.NewConstructionError("prior", fmt.Sprintf("unknown prior family %q", family))
	}

	return Named{Name: name, Prior: p}, nil
}

// ParseSet parses a sequence of "name ~ family(p1, p2)" expressions into a
// single PriorSet bound to target.
func ParseSet(target Target, exprs ...string) (*Set, error) {
	named := make([]Named, 0, len(exprs))
	for _, expr := range exprs {
		n, err := Parse(expr)
		if err != nil {
			return nil, err
		}
		named = append(named, n)
	}
	return NewSet(target, named...)
}

// Len returns k, the number of parameters in the set.
func (s *Set) Len() int { return len(s.named) }

// Target returns the parameter space this set is bound to.
func (s *Set) Target() Target { return s.target }

// Names returns the parameter names in set order.
func (s *Set) Names() []string {
	names := make([]string, len(s.named))
	for i, nm := range s.named {
		names[i] = nm.Name
	}
	return names
}

// Priors returns the priors in set order.
func (s *Set) Priors() []Prior {
	priors := make([]Prior, len(s.named))
	for i, nm := range s.named {
		priors[i] = nm.Prior
	}
	return priors
}

// Sample draws one particle (length k) from the independent priors.
func (s *Set) Sample(src rand.Source) []float64 {
	x := make([]float64, len(s.named))
	for i, nm := range s.named {
		x[i] = nm.Prior.Sample(src)
	}
	return x
}

// JointLogPDF evaluates the joint (product) log density at x, which must
// have length Len().
func (s *Set) JointLogPDF(x []float64) float64 {
	total := 0.0
	for i, nm := range s.named {
		total += nm.Prior.LogPDF(x[i])
	}
	return total
}

// JointPDF evaluates the joint (product) density at x.
func (s *Set) JointPDF(x []float64) float64 {
	total := 1.0
	for i, nm := range s.named {
		total *= nm.Prior.PDF(x[i])
	}
	return total
}

// InSupport reports whether every coordinate of x lies in its prior's
// support.
func (s *Set) InSupport(x []float64) bool {
	for i, nm := range s.named {
		if !nm.Prior.Support(x[i]) {
			return false
		}
	}
	return true
}
