package main

import "math"

const (
	ProjectileRadius = 0.12
	ProjectileOffset = 0.6 // spawn distance from the shooter's center
)

// Projectile is a live projectile owned by the match loop
type Projectile struct {
	ID          string
	OwnerID     string
	X, Y        float64
	VX, VY      float64
	Damage      int
	TTL         float64 // seconds remaining
	Piercing    bool
	Explosive   bool
	ExploRadius float64
	Alive       bool

	hitPlayers map[string]bool // players already struck, for piercing shots
}

// SpawnProjectiles creates the projectiles for one shot, fanned by the
// class spread. Velocity inherits nothing from the shooter; shots fly true.
func SpawnProjectiles(owner *Player, def ClassDef) []*Projectile {
	n := def.ProjCount
	if n < 1 {
		n = 1
	}
	shots := make([]*Projectile, 0, n)
	for i := 0; i < n; i++ {
		angle := owner.Facing
		if n > 1 {
			angle += def.ProjSpread * (float64(i)/float64(n-1) - 0.5)
		}
		shots = append(shots, &Projectile{
			ID:          GenerateID(3),
			OwnerID:     owner.ID,
			X:           owner.X + math.Cos(angle)*ProjectileOffset,
			Y:           owner.Y + math.Sin(angle)*ProjectileOffset,
			VX:          math.Cos(angle) * def.ProjSpeed,
			VY:          math.Sin(angle) * def.ProjSpeed,
			Damage:      def.ProjDamage,
			TTL:         def.ProjTTL,
			Piercing:    def.Piercing,
			Explosive:   def.Explosive,
			ExploRadius: def.ExploRadius,
			Alive:       true,
		})
	}
	return shots
}

// Advance integrates one tick of linear motion and decays the ttl.
// Returns the previous position for sweep tests.
func (pr *Projectile) Advance(dt float64) (float64, float64) {
	ox, oy := pr.X, pr.Y
	pr.X += pr.VX * dt
	pr.Y += pr.VY * dt
	pr.TTL -= dt
	if pr.TTL <= 0 {
		pr.Alive = false
	}
	return ox, oy
}

// HasHit reports whether a piercing projectile already struck this player
func (pr *Projectile) HasHit(playerID string) bool {
	return pr.hitPlayers[playerID]
}

// MarkHit records a struck player so piercing shots damage each target once
func (pr *Projectile) MarkHit(playerID string) {
	if pr.hitPlayers == nil {
		pr.hitPlayers = make(map[string]bool, 2)
	}
	pr.hitPlayers[playerID] = true
}

// FalloffDamage scales base damage linearly with distance from the blast
// center: full damage at zero, nothing at the blast radius.
func (pr *Projectile) FalloffDamage(dist float64) int {
	if !pr.Explosive || pr.ExploRadius <= 0 {
		return pr.Damage
	}
	if dist >= pr.ExploRadius {
		return 0
	}
	return int(float64(pr.Damage) * (1 - dist/pr.ExploRadius))
}

// Snapshot converts to the wire representation
func (pr *Projectile) Snapshot() ProjectileSnapshot {
	return ProjectileSnapshot{
		ID:      pr.ID,
		OwnerID: pr.OwnerID,
		X:       pr.X,
		Y:       pr.Y,
		VX:      pr.VX,
		VY:      pr.VY,
	}
}
