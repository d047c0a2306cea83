package world

import (
	"time"

	"voxelsiege.gg/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	TickRateHz int

	Width    int
	Depth    int
	Height   int
	BedrockZ int
	Seed     int64

	// Validator policy.
	MaxEditDistance   float64
	ResourceCap       int
	BuildDelay        time.Duration
	DestroyDelay      time.Duration
	DestroyThreeDelay time.Duration

	// Structural integrity probe bound.
	ProbeRadius int

	// Terrain transfer pacing.
	ColumnsPerPart int
	PartsPerTick   int
}

func (c *WorldConfig) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 60
	}
	if c.Width <= 0 {
		c.Width = 512
	}
	if c.Depth <= 0 {
		c.Depth = 512
	}
	if c.Height <= 0 {
		c.Height = 64
	}
	if c.BedrockZ <= 0 || c.BedrockZ >= c.Height {
		c.BedrockZ = c.Height - 2
	}
	if c.MaxEditDistance <= 0 {
		c.MaxEditDistance = 4
	}
	if c.ResourceCap <= 0 {
		c.ResourceCap = 50
	}
	if c.BuildDelay <= 0 {
		c.BuildDelay = 500 * time.Millisecond
	}
	if c.DestroyDelay <= 0 {
		c.DestroyDelay = 200 * time.Millisecond
	}
	if c.DestroyThreeDelay <= 0 {
		c.DestroyThreeDelay = time.Second
	}
	// Negative disables the integrity probe.
	if c.ProbeRadius == 0 {
		c.ProbeRadius = 32
	}
	if c.ColumnsPerPart <= 0 {
		c.ColumnsPerPart = 4096
	}
	if c.PartsPerTick <= 0 {
		c.PartsPerTick = 2
	}
}

// FromTuning maps the yaml policy knobs onto a world config.
func FromTuning(id string, seed int64, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                id,
		TickRateHz:        t.TickRateHz,
		Width:             t.Terrain.Width,
		Depth:             t.Terrain.Depth,
		Height:            t.Terrain.Height,
		BedrockZ:          t.Terrain.BedrockZ,
		Seed:              seed,
		MaxEditDistance:   t.Edits.MaxDistance,
		ResourceCap:       t.Edits.ResourceCap,
		BuildDelay:        time.Duration(t.Edits.BuildDelayMS) * time.Millisecond,
		DestroyDelay:      time.Duration(t.Edits.DestroyDelayMS) * time.Millisecond,
		DestroyThreeDelay: time.Duration(t.Edits.DestroyThreeDelayMS) * time.Millisecond,
		ProbeRadius:       t.Integrity.ProbeRadius,
		ColumnsPerPart:    t.Transfer.ColumnsPerPart,
		PartsPerTick:      t.Transfer.PartsPerTick,
	}
}
