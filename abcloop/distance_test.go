package abcloop

import (
	"errors"
	"math"
	"testing"

	abcsmc "github.com/abcsmc/engine"
	"github.com/stretchr/testify/assert"
)

func TestDistanceAdapterFixesSAndValidates(t *testing.T) {
	assert := assert.New(t)

	fn := abcsmc.DistanceFunc(func(traj abcsmc.Trajectory, generation int, data interface{}) ([][]float64, error) {
		return [][]float64{{0.1, 0.2}, {0.3, 0.4}}, nil
	})
	a := NewDistanceAdapter(fn, false)

	d, err := a.Evaluate(nil, 1, nil)
	assert.NoError(err)
	r, c := d.Dims()
	assert.Equal(2, r)
	assert.Equal(2, c)
	assert.Equal(2, a.S())
}

func TestDistanceAdapterRejectsNaN(t *testing.T) {
	assert := assert.New(t)

	fn := abcsmc.DistanceFunc(func(traj abcsmc.Trajectory, generation int, data interface{}) ([][]float64, error) {
		return [][]float64{{math.NaN()}}, nil
	})
	a := NewDistanceAdapter(fn, false)

	_, err := a.Evaluate(nil, 1, nil)
	assert.Error(err)
}

func TestDistanceAdapterRejectsNegative(t *testing.T) {
	assert := assert.New(t)

	fn := abcsmc.DistanceFunc(func(traj abcsmc.Trajectory, generation int, data interface{}) ([][]float64, error) {
		return [][]float64{{-1}}, nil
	})
	a := NewDistanceAdapter(fn, false)

	_, err := a.Evaluate(nil, 1, nil)
	assert.Error(err)
}

func TestDistanceAdapterAdaptiveRequiresSingleStatistic(t *testing.T) {
	assert := assert.New(t)

	fn := abcsmc.DistanceFunc(func(traj abcsmc.Trajectory, generation int, data interface{}) ([][]float64, error) {
		return [][]float64{{0.1, 0.2}}, nil
	})
	a := NewDistanceAdapter(fn, true)

	_, err := a.Evaluate(nil, 1, nil)
	assert.Error(err)
}

func TestDistanceAdapterWrapsComputeErrorAsDistanceError(t *testing.T) {
	assert := assert.New(t)

	fn := abcsmc.DistanceFunc(func(traj abcsmc.Trajectory, generation int, data interface{}) ([][]float64, error) {
		return nil, errors.New("boom")
	})
	a := NewDistanceAdapter(fn, false)

	_, err := a.Evaluate(nil, 1, nil)
	assert.Error(err)
	_, ok := err.(*abcsmc.DistanceError)
	assert.True(ok, "Compute errors must surface as a fatal DistanceError, not a recoverable SimulationError")
}

func TestDistanceAdapterRejectsChangingWidth(t *testing.T) {
	assert := assert.New(t)

	calls := 0
	fn := abcsmc.DistanceFunc(func(traj abcsmc.Trajectory, generation int, data interface{}) ([][]float64, error) {
		calls++
		if calls == 1 {
			return [][]float64{{0.1}}, nil
		}
		return [][]float64{{0.1, 0.2}}, nil
	})
	a := NewDistanceAdapter(fn, false)

	_, err := a.Evaluate(nil, 1, nil)
	assert.NoError(err)
	_, err = a.Evaluate(nil, 2, nil)
	assert.Error(err)
}
