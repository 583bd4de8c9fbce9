package simulator

import (
	"context"
	"testing"

	abcsmc "github.com/abcsmc/engine"
	"github.com/abcsmc/engine/event"
	"github.com/abcsmc/engine/prior"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func noopRun(ctx context.Context, h *Handle, model abcsmc.Model) (abcsmc.Trajectory, error) {
	return struct{}{}, nil
}

func singleFirstNodeEventTable(t *testing.T) *event.EventTable {
	tbl := &event.Table{
		Event:      []float64{1},
		Time:       []float64{5},
		Node:       []float64{1},
		Dest:       []float64{0},
		N:          []float64{2},
		Proportion: []float64{0},
		Select:     []float64{1},
		Shift:      []float64{0},
	}
	et, err := event.New(tbl, nil, nil, false, 0, false, nil)
	assert.NoError(t, err)
	return et
}

func TestNewValidatesNames(t *testing.T) {
	assert := assert.New(t)

	_, err := New([]string{"a", "b"}, []float64{1}, nil, nil, nil, nil, nil, noopRun)
	assert.Error(err)

	_, err = New(nil, nil, nil, nil, nil, nil, nil, nil)
	assert.Error(err)
}

func TestApplyParticleGdata(t *testing.T) {
	assert := assert.New(t)

	h, err := New([]string{"beta", "gamma"}, []float64{0, 0}, nil, nil, nil, nil, nil, noopRun)
	assert.NoError(err)

	set, err := prior.ParseSet(prior.GData, "beta ~ uniform(0,1)", "gamma ~ uniform(0,1)")
	assert.NoError(err)

	err = h.ApplyParticle(set, []float64{0.3, 0.7}, 0)
	assert.NoError(err)
	assert.Equal([]float64{0.3, 0.7}, h.Gdata())
}

func TestApplyParticleLdata(t *testing.T) {
	assert := assert.New(t)

	ldata := mat.NewDense(1, 3, []float64{0, 0, 0})
	h, err := New(nil, nil, []string{"beta"}, ldata, nil, nil, nil, noopRun)
	assert.NoError(err)

	set, err := prior.ParseSet(prior.LData, "beta ~ uniform(0,1)")
	assert.NoError(err)

	assert.NoError(h.ApplyParticle(set, []float64{0.42}, 1))
	assert.Equal(0.42, h.Ldata().At(0, 1))
}

func TestReplicateFirstNode(t *testing.T) {
	assert := assert.New(t)

	u0 := mat.NewDense(2, 1, []float64{100, 1})
	et := singleFirstNodeEventTable(t)

	h, err := New(nil, nil, nil, nil, u0, nil, et, noopRun)
	assert.NoError(err)

	assert.NoError(h.ReplicateFirstNode(3))
	assert.Equal(3, h.NodeCount())

	events := h.Events().Events()
	assert.Len(events, 3)

	nodes := map[int]bool{}
	for _, ev := range events {
		nodes[ev.Node] = true
		assert.Equal(5, ev.Time)
		assert.Equal(event.Enter, ev.Kind)
		assert.Equal(0, ev.Dest)
		assert.Equal(2, ev.N)
		assert.Equal(1, ev.Select)
		assert.Equal(0, ev.Shift)
	}
	assert.Equal(map[int]bool{1: true, 2: true, 3: true}, nodes)

	for c := 0; c < 3; c++ {
		assert.Equal(100.0, h.u0.At(0, c))
		assert.Equal(1.0, h.u0.At(1, c))
	}
}

func TestReplicateFirstNodeRejectsNonPositive(t *testing.T) {
	assert := assert.New(t)

	h, err := New(nil, nil, nil, nil, nil, nil, nil, noopRun)
	assert.NoError(err)
	assert.Error(h.ReplicateFirstNode(0))
}

func TestReplicateFirstNodeRejectsExtTransfer(t *testing.T) {
	assert := assert.New(t)

	tbl := &event.Table{
		Event:      []float64{3},
		Time:       []float64{1},
		Node:       []float64{1},
		Dest:       []float64{2},
		N:          []float64{0},
		Proportion: []float64{0.5},
		Select:     []float64{1},
		Shift:      []float64{0},
	}
	et, err := event.New(tbl, nil, nil, false, 0, false, nil)
	assert.NoError(err)

	h, err := New(nil, nil, nil, nil, mat.NewDense(1, 1, []float64{1}), nil, et, noopRun)
	assert.NoError(err)
	assert.Error(h.ReplicateFirstNode(2))
}
