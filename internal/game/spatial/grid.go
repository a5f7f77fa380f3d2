// Package spatial holds the broad-phase structures the engine uses to avoid
// quadratic scans: a uniform grid for food pickup and a sweep-and-prune pass
// for snake pairs.
//
// Both work on integer indices into caller-owned slices, never pointers.
package spatial

import (
	"math"
	"sort"
)

// Grid buckets point entities into square cells. Cell size should be at
// least the largest query radius so a query touches at most 3x3 cells.
//
// Cells are stored row-major: cells[row*cols+col].
type Grid struct {
	cellSize    float64
	invCellSize float64
	cols, rows  int
	cells       [][]uint32
	scratch     []uint32
}

// NewGrid covers a width x height world with cells of cellSize.
func NewGrid(width, height, cellSize float64) *Grid {
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       make([][]uint32, cols*rows),
		scratch:     make([]uint32, 0, 64),
	}
}

// Reset empties every cell and keeps the capacity.
func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert files id at (x, y). Positions outside the world clamp to the edge.
func (g *Grid) Insert(id uint32, x, y float64) {
	col := g.clampCol(int(x * g.invCellSize))
	row := g.clampRow(int(y * g.invCellSize))
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], id)
}

// Query returns candidate ids near (cx, cy) in ascending order. Candidates
// may lie outside radius; the caller does the exact distance test.
//
// The returned slice is reused by the next Query call.
func (g *Grid) Query(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol := g.clampCol(int((cx - radius) * g.invCellSize))
	maxCol := g.clampCol(int((cx + radius) * g.invCellSize))
	minRow := g.clampRow(int((cy - radius) * g.invCellSize))
	maxRow := g.clampRow(int((cy + radius) * g.invCellSize))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[row*g.cols+col]...)
		}
	}

	sort.Slice(g.scratch, func(i, j int) bool { return g.scratch[i] < g.scratch[j] })
	return g.scratch
}

func (g *Grid) clampCol(c int) int {
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *Grid) clampRow(r int) int {
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}
