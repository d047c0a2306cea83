package world

import "voxelsiege.gg/internal/protocol"

// Player is one connected actor's session record. Resource counters and
// rate-limit clocks live here and are mutated only by validator logic acting
// on this player's own requests, on the world loop goroutine; that ownership
// is what makes the single-timeline contract hold by construction.
type Player struct {
	ID   uint8
	Name string
	Team uint8

	Pos   [3]float64
	HP    int
	Alive bool

	Tool      string
	ToolColor uint32

	Blocks   int // build resource, bounded [0, cap]
	Grenades int

	// Monotonic nanos of the last successful action, per action kind.
	lastAction map[string]int64
}

func (p *Player) initDefaults(cap int) {
	if p.HP == 0 {
		p.HP = 100
	}
	p.Alive = true
	if p.Tool == "" {
		p.Tool = protocol.ToolSpade
	}
	if p.ToolColor == 0 {
		p.ToolColor = 0xFF7F7F7F
	}
	if p.Blocks == 0 {
		p.Blocks = cap
	}
	if p.Grenades == 0 {
		p.Grenades = 3
	}
	if p.lastAction == nil {
		p.lastAction = map[string]int64{}
	}
}

// delayElapsed reports whether the per-kind delay has passed since the last
// successful action of this kind.
func (p *Player) delayElapsed(kind string, now int64, delay int64) bool {
	last, ok := p.lastAction[kind]
	if !ok {
		return true
	}
	return now-last >= delay
}

func (p *Player) markAction(kind string, now int64) {
	p.lastAction[kind] = now
}
