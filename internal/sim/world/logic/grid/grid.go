package grid

import "voxelglow.dev/internal/sim/world/logic/mathx"

// PartitionSize is the edge length of a partition in voxels. Partitions
// are columns keyed by (PX, PZ) and sliced vertically into cubic
// sections of the same edge length.
const (
	PartitionSize  = 16
	SectionVolume  = PartitionSize * PartitionSize * PartitionSize
	ColumnsPerPart = PartitionSize * PartitionSize
)

type Vec3i struct {
	X, Y, Z int
}

func (v Vec3i) Add(o Vec3i) Vec3i {
	return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Taxicab returns the L1 distance between two positions.
func Taxicab(a, b Vec3i) int {
	return mathx.AbsInt(a.X-b.X) + mathx.AbsInt(a.Y-b.Y) + mathx.AbsInt(a.Z-b.Z)
}

// FaceOffsets enumerates the six axis neighbors. The adjacency graph is
// walked by offset iteration, never by stored references.
var FaceOffsets = [6]Vec3i{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// HorizontalOffsets enumerates the four partition-column neighbors.
var HorizontalOffsets = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

type PartitionKey struct {
	PX int
	PZ int
}

func KeyAt(x, z int) PartitionKey {
	return PartitionKey{
		PX: mathx.FloorDiv(x, PartitionSize),
		PZ: mathx.FloorDiv(z, PartitionSize),
	}
}

func KeyFor(pos Vec3i) PartitionKey {
	return KeyAt(pos.X, pos.Z)
}

func (k PartitionKey) Neighbor(dx, dz int) PartitionKey {
	return PartitionKey{PX: k.PX + dx, PZ: k.PZ + dz}
}

// LocalIndex packs local section coordinates into a flat [0,4096) index,
// (y<<8)|(z<<4)|x ordering.
func LocalIndex(x, y, z int) int {
	return (mathx.Mod(y, PartitionSize) << 8) | (mathx.Mod(z, PartitionSize) << 4) | mathx.Mod(x, PartitionSize)
}

// ColumnIndex packs local (x,z) into a flat [0,256) column index.
func ColumnIndex(x, z int) int {
	return mathx.Mod(z, PartitionSize)<<4 | mathx.Mod(x, PartitionSize)
}

// Bounds is the loaded vertical extent of the world. FloorY is
// inclusive, CeilY exclusive; both are multiples of PartitionSize.
type Bounds struct {
	FloorY int
	CeilY  int
}

func (b Bounds) SectionCount() int {
	return (b.CeilY - b.FloorY) / PartitionSize
}

// SectionOf returns the section slot holding world Y, or -1 when Y is
// outside the loaded extent.
func (b Bounds) SectionOf(y int) int {
	if y < b.FloorY || y >= b.CeilY {
		return -1
	}
	return (y - b.FloorY) / PartitionSize
}

func (b Bounds) SectionMinY(s int) int {
	return b.FloorY + s*PartitionSize
}

func (b Bounds) InRange(y int) bool {
	return y >= b.FloorY && y < b.CeilY
}
