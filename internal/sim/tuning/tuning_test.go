package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	raw := []byte("world_floor_y: -32\nworld_ceil_y: 128\nretract_budget: 512\nterrain:\n  seed: 99\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.WorldFloorY != -32 || got.WorldCeilY != 128 {
		t.Fatalf("extent %d..%d, want -32..128", got.WorldFloorY, got.WorldCeilY)
	}
	if got.RetractBudget != 512 {
		t.Fatalf("retract budget %d, want 512", got.RetractBudget)
	}
	if got.Terrain.Seed != 99 {
		t.Fatalf("seed %d, want 99", got.Terrain.Seed)
	}
	// Untouched keys keep their defaults.
	if got.TickRateHz != Default().TickRateHz {
		t.Fatalf("tick rate %d, want default %d", got.TickRateHz, Default().TickRateHz)
	}
}

func TestValidate_RejectsBadExtents(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Tuning)
	}{
		{"unaligned floor", func(c *Tuning) { c.WorldFloorY = -10 }},
		{"unaligned ceiling", func(c *Tuning) { c.WorldCeilY = 100 }},
		{"inverted extent", func(c *Tuning) { c.WorldFloorY = 64; c.WorldCeilY = 0 }},
		{"zero budget", func(c *Tuning) { c.RetractBudget = 0 }},
	}
	for _, c := range cases {
		cfg := Default()
		c.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", c.name)
		}
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
}
