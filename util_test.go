package main

import (
	"math"
	"strings"
	"testing"
)

func TestNormalizeAngle(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{-math.Pi / 2, -math.Pi / 2},
		{2 * math.Pi, 0},
		{-2 * math.Pi, 0},
		{3 * math.Pi, -math.Pi},
		{-math.Pi, -math.Pi},
	}
	for _, c := range cases {
		if got := NormalizeAngle(c.in); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("NormalizeAngle(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNormalizeAngleHugeInputs(t *testing.T) {
	// must wrap in constant time and land in range, whatever the magnitude
	for _, v := range []float64{1e18, -1e18, 1e308, -1e308} {
		got := NormalizeAngle(v)
		if got < -math.Pi || got > math.Pi {
			t.Errorf("NormalizeAngle(%v) = %v, out of range", v, got)
		}
	}
}

func TestGenerateJoinCode(t *testing.T) {
	code := GenerateJoinCode()
	if len(code) != 6 {
		t.Fatalf("join codes are 6 chars, got %q", code)
	}
	for _, r := range code {
		if !strings.ContainsRune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789", r) {
			t.Errorf("unexpected character %q in join code %q", r, code)
		}
	}
}
