package main

import (
	"math"
	"testing"
)

func TestProjectileTTLExpiry(t *testing.T) {
	pr := &Projectile{TTL: 1.0, Alive: true}
	pr.Advance(0.99)
	if !pr.Alive {
		t.Error("projectile should survive while ttl remains")
	}
	pr.Advance(0.02)
	if pr.Alive {
		t.Error("projectile should die when ttl is exhausted")
	}
}

func TestProjectileAdvanceReturnsOldPosition(t *testing.T) {
	pr := &Projectile{X: 1, Y: 2, VX: 10, VY: -4, TTL: 5, Alive: true}
	ox, oy := pr.Advance(0.5)
	if ox != 1 || oy != 2 {
		t.Errorf("Advance should report the pre-move position, got (%f,%f)", ox, oy)
	}
	if pr.X != 6 || pr.Y != 0 {
		t.Errorf("integration wrong: got (%f,%f)", pr.X, pr.Y)
	}
}

func TestSpawnProjectilesSpread(t *testing.T) {
	owner := NewPlayer("p1", "alice", ClassArtificer, 0, SpawnPoint{X: 10, Y: 10})
	def := GetClassDef(ClassArtificer)
	shots := SpawnProjectiles(owner, def)
	if len(shots) != def.ProjCount {
		t.Fatalf("want %d shots, got %d", def.ProjCount, len(shots))
	}

	// the fan is centered on the facing and symmetric
	angles := make([]float64, len(shots))
	for i, s := range shots {
		angles[i] = math.Atan2(s.VY, s.VX)
	}
	mid := angles[len(angles)/2]
	if len(shots)%2 == 1 && math.Abs(NormalizeAngle(mid-owner.Facing)) > 1e-9 {
		t.Errorf("center shot should fly along facing, got %f", mid)
	}
	span := NormalizeAngle(angles[len(angles)-1] - angles[0])
	if math.Abs(span-def.ProjSpread) > 1e-9 {
		t.Errorf("fan span should equal the class spread %f, got %f", def.ProjSpread, span)
	}

	for _, s := range shots {
		d := Distance(s.X, s.Y, owner.X, owner.Y)
		if math.Abs(d-ProjectileOffset) > 1e-9 {
			t.Errorf("shot should spawn at the muzzle offset, got dist %f", d)
		}
		if s.OwnerID != owner.ID || !s.Alive {
			t.Error("shot should be alive and owned by the shooter")
		}
	}
}

func TestSpawnProjectilesSingle(t *testing.T) {
	owner := NewPlayer("p1", "alice", ClassVanguard, 0, SpawnPoint{X: 5, Y: 5, Facing: 0})
	def := GetClassDef(ClassVanguard)
	shots := SpawnProjectiles(owner, def)
	if len(shots) != 1 {
		t.Fatalf("single-shot class should fire one projectile, got %d", len(shots))
	}
	if math.Abs(shots[0].VY) > 1e-9 || shots[0].VX <= 0 {
		t.Error("single shot should fly straight along facing")
	}
}

func TestFalloffDamage(t *testing.T) {
	pr := &Projectile{Damage: 40, Explosive: true, ExploRadius: 2}
	if got := pr.FalloffDamage(0); got != 40 {
		t.Errorf("full damage at center, got %d", got)
	}
	if got := pr.FalloffDamage(1); got != 20 {
		t.Errorf("half damage at half radius, got %d", got)
	}
	if got := pr.FalloffDamage(2); got != 0 {
		t.Errorf("no damage at the edge, got %d", got)
	}
	if got := pr.FalloffDamage(5); got != 0 {
		t.Errorf("no damage beyond the edge, got %d", got)
	}

	direct := &Projectile{Damage: 25}
	if got := direct.FalloffDamage(3); got != 25 {
		t.Errorf("non-explosive shots ignore distance, got %d", got)
	}
}

func TestPiercingHitBookkeeping(t *testing.T) {
	pr := &Projectile{Piercing: true}
	if pr.HasHit("p2") {
		t.Error("fresh projectile has hit nobody")
	}
	pr.MarkHit("p2")
	if !pr.HasHit("p2") {
		t.Error("MarkHit should record the target")
	}
	if pr.HasHit("p3") {
		t.Error("other players are still unhit")
	}
}
