package store

import (
	snapv1 "voxelglow.dev/internal/persistence/snapshot"
	"voxelglow.dev/internal/sim/world/logic/grid"
)

// Export copies the light arrays and height index into a partition
// snapshot, leaving the material payload to the terrain store.
func (p *PartitionLight) Export(dst *snapv1.PartitionV1) {
	if len(dst.Sections) != p.Bounds.SectionCount() {
		dst.Sections = make([]snapv1.SectionV1, p.Bounds.SectionCount())
	}
	dst.Seeded = true
	dst.Height = append([]int16(nil), p.height...)
	for i := range dst.Sections {
		if p.sky[i] != nil {
			dst.Sections[i].Sky = append([]byte(nil), p.sky[i]...)
		}
		if p.emissive[i] != nil {
			dst.Sections[i].Emissive = append([]byte(nil), p.emissive[i]...)
		}
	}
}

// ImportLight rebuilds a partition's light state from a validated
// snapshot. The caller checks Seeded first; unseeded snapshots carry no
// light arrays and require a full init pass instead.
func ImportLight(key grid.PartitionKey, bounds grid.Bounds, snap *snapv1.PartitionV1) (*PartitionLight, error) {
	if err := snap.Validate(bounds.FloorY, bounds.CeilY); err != nil {
		return nil, err
	}
	pl := NewPartitionLight(key, bounds)
	copy(pl.height, snap.Height)
	for i, s := range snap.Sections {
		if s.Sky != nil {
			pl.sky[i] = append(nibbleArray(nil), s.Sky...)
		}
		if s.Emissive != nil {
			pl.emissive[i] = append(nibbleArray(nil), s.Emissive...)
		}
	}
	pl.dirty = true
	return pl, nil
}
