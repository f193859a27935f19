package store

import (
	"math"

	"voxelglow.dev/internal/sim/world/logic/grid"
	terrain "voxelglow.dev/internal/sim/world/terrain/store"
)

// HeightNone marks a column with no opaque voxel in the loaded extent.
const HeightNone int16 = math.MinInt16

// HeightAt returns the world Y of the topmost opaque voxel in the
// column holding (x,z), or HeightNone.
func (p *PartitionLight) HeightAt(x, z int) int16 {
	return p.height[grid.ColumnIndex(x, z)]
}

func (p *PartitionLight) SetHeight(x, z int, h int16) {
	p.height[grid.ColumnIndex(x, z)] = h
	p.dirty = true
}

// BuildHeightIndex scans every column top-down. Sections with no
// opaque voxel are skipped whole, so the usual cost is one coarse check
// per section rather than a voxel walk.
func (p *PartitionLight) BuildHeightIndex(t *terrain.Partition, opacity func(uint16) uint8) {
	for lz := 0; lz < grid.PartitionSize; lz++ {
		for lx := 0; lx < grid.PartitionSize; lx++ {
			p.height[grid.ColumnIndex(lx, lz)] = scanColumn(t, opacity, lx, lz, p.Bounds.CeilY-1)
		}
	}
	p.dirty = true
}

// RescanColumn recomputes one column's height scanning down from
// fromY; used after the topmost opaque voxel is removed.
func (p *PartitionLight) RescanColumn(t *terrain.Partition, opacity func(uint16) uint8, x, z, fromY int) {
	p.SetHeight(x, z, scanColumn(t, opacity, x, z, fromY))
}

func scanColumn(t *terrain.Partition, opacity func(uint16) uint8, lx, lz, fromY int) int16 {
	y := fromY
	for y >= t.Bounds.FloorY {
		s := t.Bounds.SectionOf(y)
		if t.Sections[s].FullyTransparent() {
			y = t.Bounds.SectionMinY(s) - 1
			continue
		}
		if opacity(t.Get(lx, y, lz)) > 0 {
			return int16(y)
		}
		y--
	}
	return HeightNone
}
