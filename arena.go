package main

// Wall is a static line segment players and projectiles collide with
type Wall struct {
	X1, Y1 float64
	X2, Y2 float64
}

// SpawnPoint is a player start position with initial facing
type SpawnPoint struct {
	X, Y   float64
	Facing float64
}

// Arena is the static map geometry for a match. Bounds are represented as
// walls so out-of-bounds positions collide like any other surface.
type Arena struct {
	Name   string
	Width  float64
	Height float64
	Walls  []Wall
	Spawns [2]SpawnPoint
}

// NewArena builds an arena with its boundary walls already in place
func NewArena(name string, width, height float64) *Arena {
	a := &Arena{Name: name, Width: width, Height: height}
	a.Walls = []Wall{
		{0, 0, width, 0},
		{width, 0, width, height},
		{width, height, 0, height},
		{0, height, 0, 0},
	}
	return a
}

// AddWall appends an interior wall segment
func (a *Arena) AddWall(x1, y1, x2, y2 float64) {
	a.Walls = append(a.Walls, Wall{x1, y1, x2, y2})
}

// DefaultArena is the stock duel map: a 24x24 box with a center cross and
// two corner baffles, spawns in opposite corners facing each other.
func DefaultArena() *Arena {
	a := NewArena("foundry", 24, 24)
	// center cross
	a.AddWall(10, 12, 14, 12)
	a.AddWall(12, 10, 12, 14)
	// corner baffles
	a.AddWall(4, 6, 8, 6)
	a.AddWall(16, 18, 20, 18)
	a.Spawns[0] = SpawnPoint{X: 3, Y: 3, Facing: 0.785}
	a.Spawns[1] = SpawnPoint{X: 21, Y: 21, Facing: -2.356}
	return a
}
