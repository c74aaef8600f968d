package main

import "math"

const (
	SpatialCellSize = 128.0 // twice the largest asteroid extent
	SpatialHalfSpan = 2048.0
	SpatialCols     = int(2*SpatialHalfSpan/SpatialCellSize) + 1
	SpatialRows     = SpatialCols
)

// SpatialGrid is a fixed-size grid centered on the origin for broad-phase
// queries. Positions outside the span are clamped into the border cells.
type SpatialGrid struct {
	cells [SpatialCols * SpatialRows][]int
}

// Clear resets all cells (keeps allocated capacity)
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func cellCoord(v float64, limit int) int {
	c := int(math.Floor((v + SpatialHalfSpan) / SpatialCellSize))
	if c < 0 {
		return 0
	}
	if c >= limit {
		return limit - 1
	}
	return c
}

func cellRange(x, y, radius float64) (minCX, maxCX, minCY, maxCY int) {
	return cellCoord(x-radius, SpatialCols), cellCoord(x+radius, SpatialCols),
		cellCoord(y-radius, SpatialRows), cellCoord(y+radius, SpatialRows)
}

// InsertCircle adds ref to all cells overlapping the circle's bounding box
func (g *SpatialGrid) InsertCircle(x, y, radius float64, ref int) {
	minCX, maxCX, minCY, maxCY := cellRange(x, y, radius)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			idx := cy*SpatialCols + cx
			g.cells[idx] = append(g.cells[idx], ref)
		}
	}
}

// QueryBuf appends refs from cells overlapping the bounding box to buf.
// A ref spanning several cells appears once per cell.
func (g *SpatialGrid) QueryBuf(x, y, radius float64, buf []int) []int {
	minCX, maxCX, minCY, maxCY := cellRange(x, y, radius)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			buf = append(buf, g.cells[cy*SpatialCols+cx]...)
		}
	}
	return buf
}
