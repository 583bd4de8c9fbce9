package event

import (
	"testing"

	"github.com/abcsmc/engine/matrix"
	"github.com/stretchr/testify/assert"
)

func baseTable(kinds []float64, times []float64, selects []float64) *Table {
	n := len(kinds)
	node := make([]float64, n)
	dest := make([]float64, n)
	cnt := make([]float64, n)
	prop := make([]float64, n)
	shift := make([]float64, n)
	for i := range node {
		node[i] = 1
	}
	return &Table{
		Event:      kinds,
		Time:       times,
		Node:       node,
		Dest:       dest,
		N:          cnt,
		Proportion: prop,
		Select:     selects,
		Shift:      shift,
	}
}

func TestDeterministicSort(t *testing.T) {
	assert := assert.New(t)

	tbl := baseTable(
		[]float64{0, 1, 0, 0},
		[]float64{3, 1, 1, 1},
		[]float64{1, 2, 1, 2},
	)

	et, err := New(tbl, nil, nil, false, 0, false, nil)
	assert.NoError(err)

	got := et.Events()
	assert.Len(got, 4)

	wantTime := []int{1, 1, 1, 3}
	wantKind := []Kind{Exit, Exit, Enter, Exit}
	wantSelect := []int{1, 2, 2, 1}
	for i, ev := range got {
		assert.Equal(wantTime[i], ev.Time)
		assert.Equal(wantKind[i], ev.Kind)
		assert.Equal(wantSelect[i], ev.Select)
	}
}

func TestRoundTrip(t *testing.T) {
	assert := assert.New(t)

	tbl := baseTable(
		[]float64{0, 1, 2, 3},
		[]float64{5, 2, 2, 9},
		[]float64{1, 1, 1, 1},
	)
	tbl.Dest[3] = 2
	tbl.Shift[2] = 1

	et, err := New(tbl, nil, nil, false, 0, false, nil)
	assert.NoError(err)

	out := et.Table()
	assert.Equal(4, len(out.Event))

	et2, err := New(out, nil, nil, false, 0, false, nil)
	assert.NoError(err)
	assert.Equal(et.Events(), et2.Events())
}

func TestInvalidEventCode(t *testing.T) {
	assert := assert.New(t)

	tbl := baseTable([]float64{7}, []float64{1}, []float64{1})
	et, err := New(tbl, nil, nil, false, 0, false, nil)
	assert.Nil(et)
	assert.Error(err)
}

func TestExtTransferRequiresDest(t *testing.T) {
	assert := assert.New(t)

	tbl := baseTable([]float64{3}, []float64{1}, []float64{1})
	et, err := New(tbl, nil, nil, false, 0, false, nil)
	assert.Nil(et)
	assert.Error(err)
}

func TestIntTransferRequiresShift(t *testing.T) {
	assert := assert.New(t)

	tbl := baseTable([]float64{2}, []float64{1}, []float64{1})
	et, err := New(tbl, nil, nil, false, 0, false, nil)
	assert.Nil(et)
	assert.Error(err)
}

func TestDateOrigin(t *testing.T) {
	assert := assert.New(t)

	tbl := baseTable([]float64{0}, []float64{100}, []float64{1})
	et, err := New(tbl, nil, nil, true, 90, false, nil)
	assert.NoError(err)
	assert.Equal(10, et.Events()[0].Time)
	assert.Equal(OriginDate, et.Origin().Kind)
	assert.Equal(90, et.Origin().Day)

	out := et.Table()
	assert.Equal(float64(100), out.Time[0])
}

func TestStringEventLabels(t *testing.T) {
	assert := assert.New(t)

	tbl := baseTable([]float64{0}, []float64{1}, []float64{1})
	et, err := New(tbl, nil, nil, false, 0, true, []string{"enter"})
	assert.NoError(err)
	assert.Equal(Enter, et.Events()[0].Kind)
	assert.Equal(LabelString, et.EventLabelOrigin())
	assert.Equal([]string{"enter"}, et.EventLabels())
}

func TestSelectBoundsAgainstE(t *testing.T) {
	assert := assert.New(t)

	e, err := matrix.NewSparse(3, 2, []int{0, 1}, []int{0, 1}, []float64{1, 1}, nil)
	assert.NoError(err)

	tbl := baseTable([]float64{0}, []float64{1}, []float64{3})
	et, err := New(tbl, e, nil, false, 0, false, nil)
	assert.Nil(et)
	assert.Error(err)
}

func TestMismatchedRowLabels(t *testing.T) {
	assert := assert.New(t)

	e, err := matrix.NewSparse(2, 1, []int{0}, []int{0}, []float64{1}, []string{"S", "I"})
	assert.NoError(err)
	n, err := matrix.NewInt(2, 1, []int{1, -1}, []string{"I", "S"})
	assert.NoError(err)

	tbl := baseTable([]float64{2}, []float64{1}, []float64{1})
	tbl.Shift[0] = 1
	et, err := New(tbl, e, n, false, 0, false, nil)
	assert.Nil(et)
	assert.Error(err)
}
