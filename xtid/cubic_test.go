package xtid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCubicEndpoints(t *testing.T) {
	c := NewCubic([]float64{0.25, 0.1, 0.25, 1.0})
	assert.InDelta(t, 0.0, c.Value(0), 1e-9)
	assert.InDelta(t, 1.0, c.Value(1), 1e-9)
}

func TestCubicMonotonic(t *testing.T) {
	c := NewCubic([]float64{0.42, 0, 0.58, 1})
	prev := c.Value(0)
	for i := 1; i <= 100; i++ {
		v := c.Value(float64(i) / 100)
		assert.GreaterOrEqual(t, v, prev-1e-4, "t=%v", float64(i)/100)
		prev = v
	}
}

func TestCubicMidpoint(t *testing.T) {
	c := NewCubic([]float64{0.25, 0.1, 0.25, 1.0})
	assert.InDelta(t, 0.8024, c.Value(0.5), 1e-3)

	linear := NewCubic([]float64{1.0 / 3, 1.0 / 3, 2.0 / 3, 2.0 / 3})
	assert.InDelta(t, 0.3, linear.Value(0.3), 1e-3)
}

func TestCubicExtrapolation(t *testing.T) {
	tests := []struct {
		name   string
		curves []float64
		t      float64
		want   float64
	}{
		{"start gradient from p1", []float64{0.5, 1.0, 0.5, 1.0}, -1, -2},
		{"start gradient from p2", []float64{0, 0.3, 0.5, 1.0}, -1, -2},
		{"flat start", []float64{0, 0.3, 0, 1.0}, -1, 0},
		{"end gradient from p2", []float64{0.2, 0.2, 0.5, 0.0}, 2, 3},
		{"end gradient from p1", []float64{0.5, 0.0, 1.0, 0.3}, 2, 3},
		{"flat end", []float64{1.0, 0.0, 1.0, 0.3}, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NewCubic(tt.curves).Value(tt.t), 1e-9)
		})
	}
}

func TestNewCubicShortInput(t *testing.T) {
	c := NewCubic([]float64{0.5})
	assert.Equal(t, [4]float64{0.5, 0, 0, 0}, c.curves)
}
