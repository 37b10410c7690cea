package main

import "math"

const contactEpsilon = 1e-6

// closestPointOnWall returns the point on the wall segment nearest to (px,py)
func closestPointOnWall(w Wall, px, py float64) (float64, float64) {
	dx := w.X2 - w.X1
	dy := w.Y2 - w.Y1
	lenSq := dx*dx + dy*dy
	if lenSq < contactEpsilon {
		return w.X1, w.Y1
	}
	t := ((px-w.X1)*dx + (py-w.Y1)*dy) / lenSq
	t = Clamp(t, 0, 1)
	return w.X1 + dx*t, w.Y1 + dy*t
}

// segmentIntersection returns the parameter t in [0,1] along a->b at which it
// crosses the wall, and whether they intersect at all.
func segmentIntersection(ax, ay, bx, by float64, w Wall) (float64, bool) {
	rx := bx - ax
	ry := by - ay
	sx := w.X2 - w.X1
	sy := w.Y2 - w.Y1
	denom := rx*sy - ry*sx
	if math.Abs(denom) < contactEpsilon {
		return 0, false // parallel
	}
	qpx := w.X1 - ax
	qpy := w.Y1 - ay
	t := (qpx*sy - qpy*sx) / denom
	u := (qpx*ry - qpy*rx) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// firstCrossing finds the earliest wall the path a->b crosses.
// Returns -1 if the path is clear.
func firstCrossing(ax, ay, bx, by float64, walls []Wall) (int, float64) {
	best := -1
	bestT := math.MaxFloat64
	for i, w := range walls {
		if t, ok := segmentIntersection(ax, ay, bx, by, w); ok && t < bestT {
			best = i
			bestT = t
		}
	}
	return best, bestT
}

// wallNormalToward returns the unit normal of w pointing toward (px,py)
func wallNormalToward(w Wall, px, py float64) (float64, float64) {
	dx := w.X2 - w.X1
	dy := w.Y2 - w.Y1
	length := math.Sqrt(dx*dx + dy*dy)
	if length < contactEpsilon {
		return 0, 0
	}
	nx := -dy / length
	ny := dx / length
	if nx*(px-w.X1)+ny*(py-w.Y1) < 0 {
		nx = -nx
		ny = -ny
	}
	return nx, ny
}

// ResolveMove attempts to displace a circle of the given radius by (dx,dy)
// against the walls. When the path is obstructed the motion slides along the
// obstructing surface instead of stopping dead, so players never catch on
// corners or stall face-first into a wall. Returns the corrected position.
func ResolveMove(x, y, dx, dy, radius float64, walls []Wall) (float64, float64) {
	tx := x + dx
	ty := y + dy

	// Stop at the first crossed wall and carry the tangential remainder.
	// Two passes handle inside corners; deeper nesting just stops.
	for iter := 0; iter < 3; iter++ {
		idx, t := firstCrossing(x, y, tx, ty, walls)
		if idx < 0 {
			break
		}
		w := walls[idx]
		hx := x + (tx-x)*t
		hy := y + (ty-y)*t
		nx, ny := wallNormalToward(w, x, y)

		// remaining motion past the contact, with the into-wall part removed
		rx := tx - hx
		ry := ty - hy
		into := -(rx*nx + ry*ny)
		if into > 0 {
			rx += nx * into
			ry += ny * into
		}

		x = hx + nx*radius
		y = hy + ny*radius
		tx = x + rx
		ty = y + ry
	}

	// Push out of any wall the final position still overlaps
	for iter := 0; iter < 3; iter++ {
		adjusted := false
		for _, w := range walls {
			cx, cy := closestPointOnWall(w, tx, ty)
			d := Distance(cx, cy, tx, ty)
			if d >= radius || d < contactEpsilon {
				continue
			}
			tx = cx + (tx-cx)/d*radius
			ty = cy + (ty-cy)/d*radius
			adjusted = true
		}
		if !adjusted {
			break
		}
	}
	return tx, ty
}

// SweepHitsWall reports whether a projectile travelling a->b crosses a wall,
// and where.
func SweepHitsWall(ax, ay, bx, by float64, walls []Wall) (float64, float64, bool) {
	idx, t := firstCrossing(ax, ay, bx, by, walls)
	if idx < 0 {
		return 0, 0, false
	}
	return ax + (bx-ax)*t, ay + (by-ay)*t, true
}

// SweepHitsCircle reports whether the segment a->b passes within r of (cx,cy)
func SweepHitsCircle(ax, ay, bx, by, cx, cy, r float64) bool {
	dx := bx - ax
	dy := by - ay
	fx := ax - cx
	fy := ay - cy
	a := dx*dx + dy*dy
	if a < contactEpsilon {
		return fx*fx+fy*fy <= r*r
	}
	b := 2 * (fx*dx + fy*dy)
	c := fx*fx + fy*fy - r*r
	disc := b*b - 4*a*c
	if disc < 0 {
		return false
	}
	disc = math.Sqrt(disc)
	t1 := (-b - disc) / (2 * a)
	t2 := (-b + disc) / (2 * a)
	return (t1 >= 0 && t1 <= 1) || (t2 >= 0 && t2 <= 1) || (t1 <= 0 && t2 >= 1)
}
