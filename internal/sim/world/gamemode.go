package world

import "voxelsiege.gg/internal/sim/terrain"

// GameMode is the external gamemode collaborator. It is consulted before any
// other validator rule and owns the reserved objective positions (team
// markers that terrain edits must not overlap).
type GameMode interface {
	AreaPermitsEdit(pos terrain.Pos) bool
	ObjectivePositions() []terrain.Pos
}

// ObjectivePlacer is implemented by gamemodes that let extensions place
// objectives during server init.
type ObjectivePlacer interface {
	SetObjective(team uint8, pos terrain.Pos) bool
}

// WeaponValidator encapsulates ammo, fire-rate and hit-trace checks for the
// ranged destroy path. now is the server monotonic clock in nanoseconds.
type WeaponValidator interface {
	RangedDestroyAllowed(actor uint8, pos terrain.Pos, now int64) bool
}

// OpenArea permits edits everywhere and tracks up to one objective per team.
// The default gamemode for servers without a mode-specific build area.
type OpenArea struct {
	objectives map[uint8]terrain.Pos
}

func NewOpenArea() *OpenArea {
	return &OpenArea{objectives: map[uint8]terrain.Pos{}}
}

func (g *OpenArea) AreaPermitsEdit(terrain.Pos) bool { return true }

func (g *OpenArea) ObjectivePositions() []terrain.Pos {
	out := make([]terrain.Pos, 0, len(g.objectives))
	for team := uint8(0); team < 2; team++ {
		if p, ok := g.objectives[team]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (g *OpenArea) SetObjective(team uint8, pos terrain.Pos) bool {
	if team >= 2 {
		return false
	}
	g.objectives[team] = pos
	return true
}

// AllowAllWeapons trusts the transport-level weapon simulation entirely.
type AllowAllWeapons struct{}

func (AllowAllWeapons) RangedDestroyAllowed(uint8, terrain.Pos, int64) bool { return true }
