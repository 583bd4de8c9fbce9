// Package simulator implements SimulatorHandle: the opaque reference to a
// compiled model that the ABC-SMC engine drives through one trajectory per
// proposal. The simulator kernel itself (the SSA/AEM run loop) is an
// external collaborator, injected as a RunFunc; this package owns only the
// parameter slots (gdata/ldata), the scheduled-event table, and the
// per-node replication used to parallelize ldata-targeted fits.
package simulator

import (
	"context"
	"fmt"

	abcsmc "github.com/abcsmc/engine"
	"github.com/abcsmc/engine/event"
	"github.com/abcsmc/engine/prior"
	"gonum.org/v1/gonum/mat"
)

// RunFunc executes one stochastic trajectory of model, given the handle's
// current gdata/ldata/event configuration, and returns its result. This is
// the bridge to the external simulator kernel (SSA, multi-scale SSA, AEM).
type RunFunc func(ctx context.Context, h *Handle, model abcsmc.Model) (abcsmc.Trajectory, error)

// Handle is the concrete SimulatorHandle: it owns the global parameter
// vector (gdata), the per-node parameter matrix (ldata), the initial
// condition matrices (u0, v0) and the scheduled-event table, and dispatches
// Run calls to an injected RunFunc.
type Handle struct {
	gdataNames []string
	gdata      []float64

	ldataNames []string
	ldata      *mat.Dense // rows: parameters, cols: nodes

	u0, v0 *mat.Dense // rows: compartments, cols: nodes
	events *event.EventTable

	run RunFunc
}

// New builds a Handle. gdataNames/ldataNames name the rows/slots that
// ApplyParticle is allowed to write; u0 and v0 are the per-compartment
// initial conditions (one column per node), replicated by
// ReplicateFirstNode.
func New(gdataNames []string, gdata []float64, ldataNames []string, ldata, u0, v0 *mat.Dense, events *event.EventTable, run RunFunc) (*Handle, error) {
	if len(gdataNames) != len(gdata) {
		return nil, abcsmc.NewConstructionError("gdata", "name count does not match gdata length")
	}
	if ldata != nil {
		rows, _ := ldata.Dims()
		if rows != len(ldataNames) {
			return nil, abcsmc.NewConstructionError("ldata", "name count does not match ldata row count")
		}
	}
	if run == nil {
		return nil, abcsmc.NewConstructionError("run", "a RunFunc bridging the external simulator kernel is required")
	}
	return &Handle{
		gdataNames: gdataNames,
		gdata:      gdata,
		ldataNames: ldataNames,
		ldata:      ldata,
		u0:         u0,
		v0:         v0,
		events:     events,
		run:        run,
	}, nil
}

// Run executes one trajectory with the handle's current parameter values.
func (h *Handle) Run(ctx context.Context, model abcsmc.Model) (abcsmc.Trajectory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.run(ctx, h, model)
}

// SetGdata writes v into slot i of the global parameter vector.
func (h *Handle) SetGdata(i int, v float64) error {
	if i < 0 || i >= len(h.gdata) {
		return fmt.Errorf("gdata index %d out of range [0,%d)", i, len(h.gdata))
	}
	h.gdata[i] = v
	return nil
}

// SetLdata writes v into row i, column col of the per-node parameter matrix.
func (h *Handle) SetLdata(i, col int, v float64) error {
	if h.ldata == nil {
		return fmt.Errorf("handle has no ldata matrix")
	}
	rows, cols := h.ldata.Dims()
	if i < 0 || i >= rows || col < 0 || col >= cols {
		return fmt.Errorf("ldata index (%d,%d) out of range for %dx%d matrix", i, col, rows, cols)
	}
	h.ldata.Set(i, col, v)
	return nil
}

// Gdata returns a copy of the current global parameter vector.
func (h *Handle) Gdata() []float64 {
	out := make([]float64, len(h.gdata))
	copy(out, h.gdata)
	return out
}

// Ldata returns the current per-node parameter matrix.
func (h *Handle) Ldata() *mat.Dense { return h.ldata }

// Events returns the handle's current scheduled-event table.
func (h *Handle) Events() *event.EventTable { return h.events }

// NodeCount returns the number of nodes currently configured (the column
// count of u0), or 0 if no initial condition matrix is set.
func (h *Handle) NodeCount() int {
	if h.u0 == nil {
		return 0
	}
	_, cols := h.u0.Dims()
	return cols
}

// ApplyParticle writes x (length set.Len()) into the parameter slots named
// by set, resolved against gdataNames or ldataNames according to
// set.Target(). When set.Target() is LData, col selects the node column to
// write. It writes exactly the parameters named by set and no others,
// satisfying the round-trip invariant of spec.md §8.
func (h *Handle) ApplyParticle(set *prior.Set, x []float64, col int) error {
	if len(x) != set.Len() {
		return fmt.Errorf("particle length %d does not match prior set length %d", len(x), set.Len())
	}
	names := set.Names()
	switch set.Target() {
	case prior.GData:
		for i, name := range names {
			idx := indexOf(h.gdataNames, name)
			if idx < 0 {
				return fmt.Errorf("gdata parameter %q not found in handle", name)
			}
			if err := h.SetGdata(idx, x[i]); err != nil {
				return err
			}
		}
	case prior.LData:
		for i, name := range names {
			idx := indexOf(h.ldataNames, name)
			if idx < 0 {
				return fmt.Errorf("ldata parameter %q not found in handle", name)
			}
			if err := h.SetLdata(idx, col, x[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the handle's mutable parameter state (gdata,
// ldata, u0, v0) sharing the same event table and RunFunc. Independent
// trajectories running concurrently each get their own clone so that
// SetGdata/SetLdata/ApplyParticle calls from one worker never race with
// another's.
func (h *Handle) Clone() *Handle {
	gdata := make([]float64, len(h.gdata))
	copy(gdata, h.gdata)

	clone := &Handle{
		gdataNames: h.gdataNames,
		gdata:      gdata,
		ldataNames: h.ldataNames,
		events:     h.events,
		run:        h.run,
	}
	if h.ldata != nil {
		clone.ldata = mat.DenseCopyOf(h.ldata)
	}
	if h.u0 != nil {
		clone.u0 = mat.DenseCopyOf(h.u0)
	}
	if h.v0 != nil {
		clone.v0 = mat.DenseCopyOf(h.v0)
	}
	return clone
}

// ReplicateFirstNode clones node 0's columns of u0, v0 and ldata n times,
// and replicates the subset of events whose Node == 1, n times, offsetting
// the replicated Node field by 0..n-1 while leaving Dest, N, Proportion,
// Select, Shift and Time untouched (external transfers are disallowed
// under this replication mode, so Dest never needs the offset). It returns
// an error if n is non-positive or if any first-node event is an
// ExtTransfer.
func (h *Handle) ReplicateFirstNode(n int) error {
	if n <= 0 {
		return fmt.Errorf("invalid replication count: %d", n)
	}

	if h.u0 != nil {
		h.u0 = replicateCol0(h.u0, n)
	}
	if h.v0 != nil {
		h.v0 = replicateCol0(h.v0, n)
	}
	if h.ldata != nil {
		h.ldata = replicateCol0(h.ldata, n)
	}

	if h.events == nil {
		return nil
	}

	firstNode := make([]event.Event, 0)
	rest := make([]event.Event, 0)
	for _, ev := range h.events.Events() {
		if ev.Node == 1 {
			firstNode = append(firstNode, ev)
		} else {
			rest = append(rest, ev)
		}
	}
	for _, ev := range firstNode {
		if ev.Kind == event.ExtTransfer {
			return fmt.Errorf("replicate_first_node: external transfer events are not supported under node replication")
		}
	}

	replicated := make([]event.Event, 0, len(firstNode)*n)
	for i := 0; i < n; i++ {
		for _, ev := range firstNode {
			copyEv := ev
			copyEv.Node = ev.Node + i
			replicated = append(replicated, copyEv)
		}
	}

	tbl := eventsToTable(append(rest, replicated...))
	et, err := event.New(tbl, h.events.E(), h.events.N(), false, 0, false, nil)
	if err != nil {
		return fmt.Errorf("replicate_first_node: failed to rebuild event table: %w", err)
	}
	h.events = et
	return nil
}

func replicateCol0(m *mat.Dense, n int) *mat.Dense {
	rows, _ := m.Dims()
	out := mat.NewDense(rows, n, nil)
	for c := 0; c < n; c++ {
		out.SetCol(c, mat.Col(nil, 0, m))
	}
	return out
}

func eventsToTable(events []event.Event) *event.Table {
	n := len(events)
	tbl := &event.Table{
		Event:      make([]float64, n),
		Time:       make([]float64, n),
		Node:       make([]float64, n),
		Dest:       make([]float64, n),
		N:          make([]float64, n),
		Proportion: make([]float64, n),
		Select:     make([]float64, n),
		Shift:      make([]float64, n),
	}
	for i, ev := range events {
		tbl.Event[i] = float64(ev.Kind)
		tbl.Time[i] = float64(ev.Time)
		tbl.Node[i] = float64(ev.Node)
		tbl.Dest[i] = float64(ev.Dest)
		tbl.N[i] = float64(ev.N)
		tbl.Proportion[i] = ev.Proportion
		tbl.Select[i] = float64(ev.Select)
		tbl.Shift[i] = float64(ev.Shift)
	}
	return tbl
}
