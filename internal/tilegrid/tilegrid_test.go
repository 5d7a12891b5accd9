package tilegrid

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDivisions(t *testing.T) {
	assert.Equal(t, 2, Divisions(18))
	assert.Equal(t, 2, Divisions(22))
	assert.Equal(t, 3, Divisions(16))
	assert.Equal(t, 3, Divisions(17))
	assert.Equal(t, 4, Divisions(15))
	assert.Equal(t, 4, Divisions(0))
}

func TestSplitExactPartition(t *testing.T) {
	b := orb.Bound{Min: orb.Point{151.1, -33.9}, Max: orb.Point{151.3, -33.7}}

	for _, zoom := range []int{12, 16, 18} {
		n := Divisions(zoom)
		tiles := Split(b, zoom)
		require.Len(t, tiles, n*n)

		// Outer edges are the viewport's own values, bit for bit.
		assert.Equal(t, b.Min[0], tiles[0].Bound.Min[0])
		assert.Equal(t, b.Min[1], tiles[0].Bound.Min[1])
		last := tiles[len(tiles)-1]
		assert.Equal(t, b.Max[0], last.Bound.Max[0])
		assert.Equal(t, b.Max[1], last.Bound.Max[1])

		// Horizontally adjacent tiles share the edge coordinate exactly.
		for row := 0; row < n; row++ {
			for col := 0; col < n-1; col++ {
				left := tiles[row*n+col]
				right := tiles[row*n+col+1]
				assert.Equal(t, left.Bound.Max[0], right.Bound.Min[0])
			}
		}
		// Vertically adjacent tiles too.
		for row := 0; row < n-1; row++ {
			for col := 0; col < n; col++ {
				lower := tiles[row*n+col]
				upper := tiles[(row+1)*n+col]
				assert.Equal(t, lower.Bound.Max[1], upper.Bound.Min[1])
			}
		}

		// Tile areas sum to the viewport area.
		var sum float64
		for _, tile := range tiles {
			sum += (tile.Bound.Max[0] - tile.Bound.Min[0]) * (tile.Bound.Max[1] - tile.Bound.Min[1])
		}
		want := (b.Max[0] - b.Min[0]) * (b.Max[1] - b.Min[1])
		assert.InDelta(t, want, sum, 1e-12)
	}
}

func TestSplitRowMajorOrderAndIDs(t *testing.T) {
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{4, 4}}
	tiles := Split(b, 10) // 4x4

	require.Len(t, tiles, 16)
	assert.Equal(t, "z10_r0_c0", tiles[0].ID)
	assert.Equal(t, "z10_r0_c3", tiles[3].ID)
	assert.Equal(t, "z10_r1_c0", tiles[4].ID)
	assert.Equal(t, "z10_r3_c3", tiles[15].ID)

	// Repeated splits yield identical ids and bounds.
	again := Split(b, 10)
	assert.Equal(t, tiles, again)
}

func TestSplitZeroAreaBound(t *testing.T) {
	b := orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{1, 1}}
	tiles := Split(b, 12)
	require.Len(t, tiles, 16)
	for _, tile := range tiles {
		assert.Equal(t, b.Min, tile.Bound.Min)
		assert.Equal(t, b.Max, tile.Bound.Max)
	}
}
