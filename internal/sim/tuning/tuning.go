package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`

	Terrain   TerrainTuning   `yaml:"terrain"`
	Edits     EditTuning      `yaml:"edits"`
	Integrity IntegrityTuning `yaml:"integrity"`
	Transfer  TransferTuning  `yaml:"transfer"`
}

type TerrainTuning struct {
	Width    int `yaml:"width"`
	Depth    int `yaml:"depth"`
	Height   int `yaml:"height"`
	BedrockZ int `yaml:"bedrock_z"`
}

type EditTuning struct {
	MaxDistance float64 `yaml:"max_distance"`
	ResourceCap int     `yaml:"resource_cap"`

	// Per-action-kind minimum delay between successful actions, milliseconds.
	BuildDelayMS        int `yaml:"build_delay_ms"`
	DestroyDelayMS      int `yaml:"destroy_delay_ms"`
	DestroyThreeDelayMS int `yaml:"destroy_three_delay_ms"`
}

type IntegrityTuning struct {
	ProbeRadius int `yaml:"probe_radius"`
}

type TransferTuning struct {
	ColumnsPerPart int `yaml:"columns_per_part"`
	PartsPerTick   int `yaml:"parts_per_tick"`
}

func Defaults() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = "1.0"
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = 60
	}
	if t.Terrain.Width <= 0 {
		t.Terrain.Width = 512
	}
	if t.Terrain.Depth <= 0 {
		t.Terrain.Depth = 512
	}
	if t.Terrain.Height <= 0 {
		t.Terrain.Height = 64
	}
	if t.Terrain.BedrockZ <= 0 {
		t.Terrain.BedrockZ = t.Terrain.Height - 2
	}
	if t.Edits.MaxDistance <= 0 {
		t.Edits.MaxDistance = 4
	}
	if t.Edits.ResourceCap <= 0 {
		t.Edits.ResourceCap = 50
	}
	if t.Edits.BuildDelayMS <= 0 {
		t.Edits.BuildDelayMS = 500
	}
	if t.Edits.DestroyDelayMS <= 0 {
		t.Edits.DestroyDelayMS = 200
	}
	if t.Edits.DestroyThreeDelayMS <= 0 {
		t.Edits.DestroyThreeDelayMS = 1000
	}
	// Negative disables the integrity probe entirely.
	if t.Integrity.ProbeRadius == 0 {
		t.Integrity.ProbeRadius = 32
	}
	if t.Transfer.ColumnsPerPart <= 0 {
		t.Transfer.ColumnsPerPart = 4096
	}
	if t.Transfer.PartsPerTick <= 0 {
		t.Transfer.PartsPerTick = 2
	}
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}
