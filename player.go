package main

import "time"

// Player is the authoritative per-player state. It is mutated only by the
// owning match loop during a tick.
type Player struct {
	ID     string
	Name   string
	Class  ClassID
	Slot   int // 0 or 1, fixes the spawn point

	X, Y     float64
	VX, VY   float64
	Facing   float64
	HP       int
	MaxHP    int
	Armor    int
	MaxArmor int
	Alive    bool

	WeaponReadyAt float64 // match-clock seconds
	DashReadyAt   float64

	LastInputSeq uint32
	lastInputAt  time.Time // arrival time of the last accepted input batch

	Ready     bool
	Connected bool

	// running totals for the final match result
	DamageDealt int
	Kills       int
	RoundWins   int
}

// NewPlayer creates a player for a slot, positioned at the slot's spawn
func NewPlayer(id, name string, class ClassID, slot int, spawn SpawnPoint) *Player {
	def := GetClassDef(class)
	p := &Player{
		ID:        id,
		Name:      name,
		Class:     class,
		Slot:      slot,
		MaxHP:     def.MaxHP,
		MaxArmor:  def.MaxArmor,
		Connected: true,
	}
	p.ResetForRound(spawn)
	return p
}

// ResetForRound restores the player to full strength at the spawn point
func (p *Player) ResetForRound(spawn SpawnPoint) {
	p.X = spawn.X
	p.Y = spawn.Y
	p.VX = 0
	p.VY = 0
	p.Facing = spawn.Facing
	p.HP = p.MaxHP
	p.Armor = p.MaxArmor
	p.Alive = true
	p.WeaponReadyAt = 0
	p.DashReadyAt = 0
}

// TakeDamage applies damage, armor first, clamping both pools to [0, max].
// Returns true if the player died.
func (p *Player) TakeDamage(dmg int) bool {
	if !p.Alive || dmg <= 0 {
		return false
	}
	absorbed := dmg
	if absorbed > p.Armor {
		absorbed = p.Armor
	}
	p.Armor = ClampInt(p.Armor-absorbed, 0, p.MaxArmor)
	p.HP = ClampInt(p.HP-(dmg-absorbed), 0, p.MaxHP)
	if p.HP == 0 {
		p.Alive = false
		return true
	}
	return false
}

// CanFire reports whether the weapon cooldown has elapsed at matchClock
func (p *Player) CanFire(matchClock float64) bool {
	return p.Alive && matchClock >= p.WeaponReadyAt
}

// CanDash reports whether the dash cooldown has elapsed at matchClock
func (p *Player) CanDash(matchClock float64) bool {
	return p.Alive && matchClock >= p.DashReadyAt
}

// Snapshot converts to the wire representation
func (p *Player) Snapshot() PlayerSnapshot {
	return PlayerSnapshot{
		ID:     p.ID,
		Name:   p.Name,
		Class:  int(p.Class),
		X:      p.X,
		Y:      p.Y,
		VX:     p.VX,
		VY:     p.VY,
		Facing: p.Facing,
		HP:     p.HP,
		MaxHP:  p.MaxHP,
		Armor:  p.Armor,
		Alive:  p.Alive,
	}
}
