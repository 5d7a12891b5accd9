package zoom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToleranceForNonIncreasing(t *testing.T) {
	prev := ToleranceFor(0)
	for z := 1; z <= 23; z++ {
		cur := ToleranceFor(z)
		assert.LessOrEqual(t, cur, prev, "tolerance must not grow from z%d to z%d", z-1, z)
		prev = cur
	}
}

func TestToleranceForAnchors(t *testing.T) {
	assert.Equal(t, 0.001, ToleranceFor(0))
	assert.Equal(t, 0.001, ToleranceFor(11))
	assert.Equal(t, 0.0005, ToleranceFor(12))
	assert.Equal(t, 0.0001, ToleranceFor(15))
	assert.Equal(t, 0.00001, ToleranceFor(18))
	assert.Equal(t, 0.000001, ToleranceFor(20))
	assert.Equal(t, 0.0, ToleranceFor(21))
	assert.Equal(t, 0.0, ToleranceFor(23))
}

func TestPrecisionFor(t *testing.T) {
	assert.Equal(t, 5, PrecisionFor(0))
	assert.Equal(t, 5, PrecisionFor(15))
	assert.Equal(t, 6, PrecisionFor(16))
	assert.Equal(t, 6, PrecisionFor(17))
	assert.Equal(t, 7, PrecisionFor(18))
	assert.Equal(t, 7, PrecisionFor(22))
}

func TestKeyGridForCoarsensWithLowerZoom(t *testing.T) {
	assert.Equal(t, 0.001, KeyGridFor(19))
	assert.Equal(t, 0.001, KeyGridFor(18))
	assert.Equal(t, 0.005, KeyGridFor(17))
	assert.Equal(t, 0.005, KeyGridFor(16))
	assert.Equal(t, 0.02, KeyGridFor(15))
	assert.Equal(t, 0.02, KeyGridFor(14))
	assert.Equal(t, 0.05, KeyGridFor(13))
	assert.Equal(t, 0.05, KeyGridFor(0))
}

func TestLayerActive(t *testing.T) {
	assert.False(t, LayerActive(14, 13))
	assert.True(t, LayerActive(14, 14))
	assert.True(t, LayerActive(14, 20))
	assert.True(t, LayerActive(0, 0))
}
