// Package tilegrid partitions a requested viewport into independently
// cacheable sub-boxes.
//
// Split is a pure geometric function: it never touches the cache or a backing
// store. The grid is an exact partition — neighboring tiles share edge
// coordinates computed from the same expression, so there are no gaps or
// overlaps, and the tile areas sum to the viewport area.
package tilegrid

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Tile is one sub-box of a split viewport. The ID is derived from
// (zoom, row, col) only, so repeated splits of the same viewport produce
// identical ids and clients can skip tiles they already rendered.
type Tile struct {
	ID    string
	Row   int
	Col   int
	Bound orb.Bound
}

// Divisions returns the per-axis grid factor for a zoom level. Finer zooms
// cover less area and need fewer, larger shares of the viewport.
func Divisions(zoom int) int {
	switch {
	case zoom >= 18:
		return 2
	case zoom >= 16:
		return 3
	default:
		return 4
	}
}

// Split partitions b into Divisions(zoom)^2 tiles in row-major order from the
// min corner. Interior edges are computed once per index, so adjacent tiles
// share them exactly; outer edges are the viewport's own.
func Split(b orb.Bound, zoom int) []Tile {
	n := Divisions(zoom)

	xs := axisEdges(b.Min[0], b.Max[0], n)
	ys := axisEdges(b.Min[1], b.Max[1], n)

	tiles := make([]Tile, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			tiles = append(tiles, Tile{
				ID:  TileID(zoom, row, col),
				Row: row,
				Col: col,
				Bound: orb.Bound{
					Min: orb.Point{xs[col], ys[row]},
					Max: orb.Point{xs[col+1], ys[row+1]},
				},
			})
		}
	}
	return tiles
}

// TileID formats the stable identifier for a grid cell.
func TileID(zoom, row, col int) string {
	return fmt.Sprintf("z%d_r%d_c%d", zoom, row, col)
}

// axisEdges returns the n+1 edge coordinates dividing [min, max] into n equal
// spans, with the endpoints exact.
func axisEdges(min, max float64, n int) []float64 {
	edges := make([]float64, n+1)
	span := max - min
	for i := 0; i <= n; i++ {
		switch i {
		case 0:
			edges[i] = min
		case n:
			edges[i] = max
		default:
			edges[i] = min + span*float64(i)/float64(n)
		}
	}
	return edges
}
