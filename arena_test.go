package main

import "testing"

func TestNewArenaBoundaryWalls(t *testing.T) {
	a := NewArena("box", 10, 8)
	if len(a.Walls) != 4 {
		t.Fatalf("a fresh arena has exactly its boundary, got %d walls", len(a.Walls))
	}
	a.AddWall(2, 2, 4, 2)
	if len(a.Walls) != 5 {
		t.Error("AddWall should append")
	}
}

func TestDefaultArenaSpawnsAreClear(t *testing.T) {
	a := DefaultArena()
	for i, sp := range a.Spawns {
		// a spawned player must not start inside a wall
		x, y := ResolveMove(sp.X, sp.Y, 0, 0, 0.5, a.Walls)
		if x != sp.X || y != sp.Y {
			t.Errorf("spawn %d at (%f,%f) overlaps a wall", i, sp.X, sp.Y)
		}
	}
}

func TestDefaultArenaSpawnsInsideBounds(t *testing.T) {
	a := DefaultArena()
	for i, sp := range a.Spawns {
		if sp.X <= 0 || sp.X >= a.Width || sp.Y <= 0 || sp.Y >= a.Height {
			t.Errorf("spawn %d out of bounds: (%f,%f)", i, sp.X, sp.Y)
		}
	}
}
