package main

// ClassID identifies a combat class
type ClassID int

const (
	ClassVanguard  ClassID = 0
	ClassBulwark   ClassID = 1
	ClassWraith    ClassID = 2
	ClassArtificer ClassID = 3
)

// ClassDef holds the stats for a combat class
type ClassDef struct {
	MaxHP       int
	MaxArmor    int
	MoveSpeed   float64 // units/s
	Radius      float64
	FireCD      float64 // seconds between shots
	ProjSpeed   float64
	ProjDamage  int
	ProjTTL     float64 // seconds
	ProjCount   int     // projectiles per shot
	ProjSpread  float64 // spread angle in radians
	Piercing    bool
	Explosive   bool
	ExploRadius float64
	DashCD      float64 // seconds between dashes
	DashDist    float64 // instant displacement, wall-checked
}

var Classes = [4]ClassDef{
	// Vanguard: balanced rifle duelist
	{
		MaxHP: 100, MaxArmor: 50, MoveSpeed: 5.0, Radius: 0.4,
		FireCD: 0.5, ProjSpeed: 14, ProjDamage: 18, ProjTTL: 2.0,
		ProjCount: 1, DashCD: 4.0, DashDist: 2.5,
	},
	// Bulwark: slow, heavy armor, explosive launcher
	{
		MaxHP: 140, MaxArmor: 80, MoveSpeed: 3.8, Radius: 0.5,
		FireCD: 1.1, ProjSpeed: 9, ProjDamage: 34, ProjTTL: 3.0,
		ProjCount: 1, Explosive: true, ExploRadius: 1.8,
		DashCD: 6.0, DashDist: 1.8,
	},
	// Wraith: fast and fragile, piercing railgun
	{
		MaxHP: 70, MaxArmor: 20, MoveSpeed: 6.2, Radius: 0.35,
		FireCD: 0.9, ProjSpeed: 22, ProjDamage: 26, ProjTTL: 1.4,
		ProjCount: 1, Piercing: true, DashCD: 2.5, DashDist: 3.2,
	},
	// Artificer: midweight scattergun
	{
		MaxHP: 90, MaxArmor: 40, MoveSpeed: 4.6, Radius: 0.4,
		FireCD: 0.8, ProjSpeed: 12, ProjDamage: 9, ProjTTL: 1.2,
		ProjCount: 4, ProjSpread: 0.35, DashCD: 4.0, DashDist: 2.2,
	},
}

// GetClassDef returns the definition for a class, defaulting to Vanguard
func GetClassDef(class ClassID) ClassDef {
	if class < 0 || int(class) >= len(Classes) {
		return Classes[ClassVanguard]
	}
	return Classes[class]
}
