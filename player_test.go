package main

import "testing"

func TestTakeDamageArmorFirst(t *testing.T) {
	p := NewPlayer("p1", "alice", ClassVanguard, 0, SpawnPoint{X: 3, Y: 3})
	p.Armor = 20
	p.HP = 100

	if died := p.TakeDamage(15); died {
		t.Fatal("15 damage into 20 armor should not kill")
	}
	if p.Armor != 5 || p.HP != 100 {
		t.Errorf("armor absorbs first: want armor=5 hp=100, got armor=%d hp=%d", p.Armor, p.HP)
	}

	if died := p.TakeDamage(15); died {
		t.Fatal("should still be alive")
	}
	if p.Armor != 0 || p.HP != 90 {
		t.Errorf("overflow reaches hp: want armor=0 hp=90, got armor=%d hp=%d", p.Armor, p.HP)
	}
}

func TestTakeDamageOverkillClampsToZero(t *testing.T) {
	p := NewPlayer("p1", "alice", ClassWraith, 0, SpawnPoint{})
	p.Armor = 0
	p.HP = 10

	if died := p.TakeDamage(9999); !died {
		t.Fatal("lethal damage should report death")
	}
	if p.HP != 0 {
		t.Errorf("hp must clamp at 0, got %d", p.HP)
	}
	if p.Alive {
		t.Error("player should be dead")
	}
}

func TestTakeDamageIgnoredWhenDead(t *testing.T) {
	p := NewPlayer("p1", "alice", ClassWraith, 0, SpawnPoint{})
	p.TakeDamage(p.MaxHP + p.MaxArmor)
	hp := p.HP
	if died := p.TakeDamage(50); died {
		t.Error("damage to a corpse should not re-report death")
	}
	if p.HP != hp {
		t.Error("dead players take no further damage")
	}
}

func TestTakeDamageNonPositive(t *testing.T) {
	p := NewPlayer("p1", "alice", ClassBulwark, 0, SpawnPoint{})
	p.TakeDamage(0)
	p.TakeDamage(-5)
	if p.HP != p.MaxHP || p.Armor != p.MaxArmor {
		t.Error("zero or negative damage must be a no-op")
	}
}

func TestResetForRound(t *testing.T) {
	spawn := SpawnPoint{X: 3, Y: 4, Facing: 1.5}
	p := NewPlayer("p1", "alice", ClassVanguard, 0, spawn)
	p.TakeDamage(p.MaxHP + p.MaxArmor)
	p.X, p.Y = 20, 20
	p.WeaponReadyAt = 99
	p.DashReadyAt = 99

	p.ResetForRound(spawn)
	if !p.Alive || p.HP != p.MaxHP || p.Armor != p.MaxArmor {
		t.Error("reset should restore full strength")
	}
	if p.X != 3 || p.Y != 4 || p.Facing != 1.5 {
		t.Error("reset should reposition at spawn")
	}
	if p.WeaponReadyAt != 0 || p.DashReadyAt != 0 {
		t.Error("reset should clear cooldowns")
	}
}

func TestCooldownGates(t *testing.T) {
	p := NewPlayer("p1", "alice", ClassVanguard, 0, SpawnPoint{})
	p.WeaponReadyAt = 10
	p.DashReadyAt = 12

	if p.CanFire(9.9) {
		t.Error("weapon should be on cooldown before ready time")
	}
	if !p.CanFire(10) {
		t.Error("weapon should be ready at exactly the ready time")
	}
	if p.CanDash(11) || !p.CanDash(12) {
		t.Error("dash gate should open exactly at ready time")
	}

	p.Alive = false
	if p.CanFire(100) || p.CanDash(100) {
		t.Error("dead players cannot act")
	}
}
