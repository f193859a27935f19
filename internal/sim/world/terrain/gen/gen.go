package gen

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"voxelglow.dev/internal/sim/catalogs"
	"voxelglow.dev/internal/sim/tuning"
	"voxelglow.dev/internal/sim/world/logic/grid"
	"voxelglow.dev/internal/sim/world/logic/mathx"
	storepkg "voxelglow.dev/internal/sim/world/terrain/store"
)

// Generator fills fresh partitions with demo terrain: a simplex
// heightmap, simplex caves below the surface, and sparse glowing ore so
// the emissive channel has natural sources.
type Generator struct {
	cfg     tuning.Terrain
	surface opensimplex.Noise
	caves   opensimplex.Noise

	stone, dirt, grass, ember uint16
}

func New(cfg tuning.Terrain, mats *catalogs.MaterialCatalog) *Generator {
	g := &Generator{
		cfg:     cfg,
		surface: opensimplex.New(cfg.Seed),
		caves:   opensimplex.New(cfg.Seed + 1),
	}
	g.stone = mats.Index["STONE"]
	g.dirt = mats.Index["DIRT"]
	g.grass = mats.Index["GRASS"]
	g.ember = mats.Index["EMBER_ORE"]
	return g
}

func (g *Generator) SurfaceY(wx, wz int) int {
	n := g.surface.Eval2(float64(wx)*g.cfg.SurfaceScale, float64(wz)*g.cfg.SurfaceScale)
	return g.cfg.SurfaceY + int(n*g.cfg.SurfaceAmp)
}

func (g *Generator) carved(wx, wy, wz int) bool {
	n := g.caves.Eval3(float64(wx)*g.cfg.CaveScale, float64(wy)*g.cfg.CaveScale, float64(wz)*g.cfg.CaveScale)
	return n > g.cfg.CaveThreshold
}

// Populate writes terrain for one partition column through the store so
// section counters stay consistent.
func (g *Generator) Populate(s *storepkg.Store, key grid.PartitionKey) {
	p := s.Load(key)
	for lz := 0; lz < grid.PartitionSize; lz++ {
		for lx := 0; lx < grid.PartitionSize; lx++ {
			wx := key.PX*grid.PartitionSize + lx
			wz := key.PZ*grid.PartitionSize + lz
			top := mathx.ClampInt(g.SurfaceY(wx, wz), p.Bounds.FloorY, p.Bounds.CeilY-1)
			for wy := p.Bounds.FloorY; wy <= top; wy++ {
				if g.carved(wx, wy, wz) {
					continue
				}
				b := g.stone
				switch {
				case wy == top:
					b = g.grass
				case wy >= top-3:
					b = g.dirt
				case mathx.Hash3(g.cfg.Seed+2, wx, wy, wz)%1000 < uint64(mathx.ClampInt(g.cfg.GlowOrePermille, 0, 1000)):
					b = g.ember
				}
				s.SetMaterial(grid.Vec3i{X: wx, Y: wy, Z: wz}, b)
			}
		}
	}
}
