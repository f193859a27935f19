package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Catalogs holds the immutable material tables. They are read-only
// after Load and are shared across goroutines without locking.
type Catalogs struct {
	Materials MaterialCatalog
}

type MaterialCatalog struct {
	Palette []string
	Index   map[string]uint16
	Defs    map[string]MaterialDef

	PaletteDigest string
	DefsDigest    string

	// Flat per-id lookups, hot path for the light engine.
	opacity  []uint8
	emission []uint8
}

type MaterialDef struct {
	ID       string `json:"id"`
	Solid    bool   `json:"solid"`
	Opacity  int    `json:"opacity"`  // 0..15, light lost entering this material
	Emission int    `json:"emission"` // 0..15, emitted light level
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadMaterials(configDir+"/materials.json", &c.Materials); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadMaterials(path string, out *MaterialCatalog) (err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var defs []MaterialDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("materials.json: %w", err)
	}
	return buildMaterials(defs, out)
}

func buildMaterials(defs []MaterialDef, out *MaterialCatalog) error {
	if len(defs) == 0 {
		return fmt.Errorf("materials: empty catalog")
	}
	if defs[0].ID != "AIR" {
		return fmt.Errorf("materials: palette slot 0 must be AIR, got %q", defs[0].ID)
	}
	out.Index = map[string]uint16{}
	out.Defs = map[string]MaterialDef{}
	for i, d := range defs {
		if d.Opacity < 0 || d.Opacity > 15 {
			return fmt.Errorf("material %q: opacity %d out of range", d.ID, d.Opacity)
		}
		if d.Emission < 0 || d.Emission > 15 {
			return fmt.Errorf("material %q: emission %d out of range", d.ID, d.Emission)
		}
		if _, dup := out.Index[d.ID]; dup {
			return fmt.Errorf("material %q: duplicate id", d.ID)
		}
		out.Palette = append(out.Palette, d.ID)
		out.Index[d.ID] = uint16(i)
		out.Defs[d.ID] = d
		out.opacity = append(out.opacity, uint8(d.Opacity))
		out.emission = append(out.emission, uint8(d.Emission))
	}

	pb, _ := json.Marshal(out.Palette)
	out.PaletteDigest = sha256Hex(pb)

	sorted := make([]MaterialDef, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	db, _ := json.Marshal(sorted)
	out.DefsDigest = sha256Hex(db)
	return nil
}

// Opacity returns the per-step attenuation table value for a material
// id. Unknown ids are treated as fully opaque.
func (m *MaterialCatalog) Opacity(id uint16) uint8 {
	if int(id) >= len(m.opacity) {
		return 15
	}
	return m.opacity[id]
}

// Emission returns the emitted light level for a material id.
func (m *MaterialCatalog) Emission(id uint16) uint8 {
	if int(id) >= len(m.emission) {
		return 0
	}
	return m.emission[id]
}

func (m *MaterialCatalog) Name(id uint16) string {
	if int(id) >= len(m.Palette) {
		return ""
	}
	return m.Palette[id]
}

// Builtin returns the default material set used by the demo terrain and
// by tests that do not read a config directory.
func Builtin() *Catalogs {
	defs := []MaterialDef{
		{ID: "AIR", Solid: false, Opacity: 0, Emission: 0},
		{ID: "STONE", Solid: true, Opacity: 15, Emission: 0},
		{ID: "DIRT", Solid: true, Opacity: 15, Emission: 0},
		{ID: "GRASS", Solid: true, Opacity: 15, Emission: 0},
		{ID: "WATER", Solid: false, Opacity: 2, Emission: 0},
		{ID: "LEAVES", Solid: true, Opacity: 1, Emission: 0},
		{ID: "GLASS", Solid: true, Opacity: 0, Emission: 0},
		{ID: "GLOWSTONE", Solid: true, Opacity: 15, Emission: 15},
		{ID: "LANTERN", Solid: true, Opacity: 0, Emission: 14},
		{ID: "EMBER_ORE", Solid: true, Opacity: 15, Emission: 9},
	}
	var c Catalogs
	if err := buildMaterials(defs, &c.Materials); err != nil {
		panic(err)
	}
	return &c
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
