package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	WorldFloorY int `yaml:"world_floor_y"`
	WorldCeilY  int `yaml:"world_ceil_y"`

	TickRateHz int `yaml:"tick_rate_hz"`

	// RetractBudget caps nodes retracted per edit; the remaining
	// frontier carries over to the next tick.
	RetractBudget int `yaml:"retract_budget"`

	InitWorkers int `yaml:"init_workers"`

	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	Terrain Terrain `yaml:"terrain"`
}

type Terrain struct {
	Seed            int64   `yaml:"seed"`
	SurfaceY        int     `yaml:"surface_y"`
	SurfaceAmp      float64 `yaml:"surface_amp"`
	SurfaceScale    float64 `yaml:"surface_scale"`
	CaveThreshold   float64 `yaml:"cave_threshold"`
	CaveScale       float64 `yaml:"cave_scale"`
	GlowOrePermille int     `yaml:"glow_ore_permille"`
}

func Default() Tuning {
	return Tuning{
		WorldFloorY:   -64,
		WorldCeilY:    320,
		TickRateHz:    20,
		RetractBudget: 4096,
		InitWorkers:   4,

		SnapshotEveryTicks: 1200,

		Terrain: Terrain{
			Seed:            1337,
			SurfaceY:        64,
			SurfaceAmp:      24,
			SurfaceScale:    1.0 / 96.0,
			CaveThreshold:   0.62,
			CaveScale:       1.0 / 28.0,
			GlowOrePermille: 4,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.WorldFloorY%16 != 0 || t.WorldCeilY%16 != 0 {
		return fmt.Errorf("world extent must align to section size: floor=%d ceil=%d", t.WorldFloorY, t.WorldCeilY)
	}
	if t.WorldCeilY <= t.WorldFloorY {
		return fmt.Errorf("world ceiling %d not above floor %d", t.WorldCeilY, t.WorldFloorY)
	}
	if t.RetractBudget <= 0 {
		return fmt.Errorf("retract_budget must be positive, got %d", t.RetractBudget)
	}
	return nil
}
