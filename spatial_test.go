package main

import (
	"slices"
	"testing"
)

func TestSpatialGridQuery(t *testing.T) {
	var g SpatialGrid
	g.InsertCircle(0, 0, 10, 1)
	g.InsertCircle(50, 50, 10, 2)
	g.InsertCircle(1000, -1000, 10, 3)

	got := g.QueryBuf(20, 20, 20, nil)
	if !slices.Contains(got, 1) || !slices.Contains(got, 2) {
		t.Errorf("query near origin = %v, want refs 1 and 2", got)
	}
	if slices.Contains(got, 3) {
		t.Errorf("query near origin returned distant ref 3: %v", got)
	}
}

func TestSpatialGridClampsOutOfRange(t *testing.T) {
	var g SpatialGrid
	g.InsertCircle(SpatialHalfSpan*4, 0, 5, 7)
	got := g.QueryBuf(SpatialHalfSpan+10, 0, 5, nil)
	if !slices.Contains(got, 7) {
		t.Errorf("positions past the border should share the border cell, got %v", got)
	}
}

func TestSpatialGridClear(t *testing.T) {
	var g SpatialGrid
	g.InsertCircle(0, 0, 300, 1)
	g.Clear()
	if got := g.QueryBuf(0, 0, 300, nil); len(got) != 0 {
		t.Errorf("query after Clear = %v, want empty", got)
	}
}

func TestSpatialGridReusesBuffer(t *testing.T) {
	var g SpatialGrid
	g.InsertCircle(0, 0, 1, 4)
	buf := make([]int, 0, 8)
	buf = g.QueryBuf(0, 0, 1, buf)
	buf = g.QueryBuf(0, 0, 1, buf[:0])
	if len(buf) != 1 || buf[0] != 4 {
		t.Errorf("buf = %v, want [4]", buf)
	}
}
