package store

import (
	"github.com/cespare/xxhash/v2"

	"voxelglow.dev/internal/sim/catalogs"
	"voxelglow.dev/internal/sim/world/logic/grid"
)

// Air is palette slot 0 by catalog contract.
const Air uint16 = 0

// Section is one 16^3 slice of a partition column. A nil Materials
// slice means all air; it is allocated on first non-air write.
type Section struct {
	Materials []uint16 // len = grid.SectionVolume when non-nil

	opaque   int // voxels with opacity > 0
	emitters int // voxels with emission > 0
}

// FullyTransparent reports whether no voxel in the section attenuates
// light. Used as the coarse skip in height-index builds.
func (s *Section) FullyTransparent() bool {
	return s.opaque == 0
}

// HasNoEmitters reports whether no voxel in the section emits light.
// Lets emissive seeding skip the per-voxel scan.
func (s *Section) HasNoEmitters() bool {
	return s.emitters == 0
}

// Partition is a loaded column of sections.
type Partition struct {
	Key      grid.PartitionKey
	Bounds   grid.Bounds
	Sections []Section

	dirty bool
	hash  uint64
}

func (p *Partition) Get(lx, y, lz int) uint16 {
	s := p.Bounds.SectionOf(y)
	if s < 0 || p.Sections[s].Materials == nil {
		return Air
	}
	return p.Sections[s].Materials[grid.LocalIndex(lx, y, lz)]
}

// Digest is an xxhash over the non-air section contents, recomputed
// lazily after writes.
func (p *Partition) Digest() uint64 {
	if p.dirty || p.hash == 0 {
		h := xxhash.New()
		var tmp [2]byte
		for i := range p.Sections {
			m := p.Sections[i].Materials
			if m == nil {
				continue
			}
			tmp[0] = byte(i)
			tmp[1] = 0xFF
			_, _ = h.Write(tmp[:])
			for _, v := range m {
				tmp[0] = byte(v)
				tmp[1] = byte(v >> 8)
				_, _ = h.Write(tmp[:])
			}
		}
		p.hash = h.Sum64()
		p.dirty = false
	}
	return p.hash
}

// Store holds the loaded material partitions. Callers serialize
// mutation; the world facade owns the locking discipline.
type Store struct {
	Bounds grid.Bounds
	Mats   *catalogs.MaterialCatalog

	Parts map[grid.PartitionKey]*Partition
}

func New(bounds grid.Bounds, mats *catalogs.MaterialCatalog) *Store {
	return &Store{
		Bounds: bounds,
		Mats:   mats,
		Parts:  map[grid.PartitionKey]*Partition{},
	}
}
