package store

import (
	"sort"

	"voxelglow.dev/internal/sim/world/logic/grid"
)

func (s *Store) Loaded(key grid.PartitionKey) bool {
	_, ok := s.Parts[key]
	return ok
}

func (s *Store) Partition(key grid.PartitionKey) *Partition {
	return s.Parts[key]
}

func (s *Store) LoadedKeys() []grid.PartitionKey {
	keys := make([]grid.PartitionKey, 0, len(s.Parts))
	for k := range s.Parts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PX != keys[j].PX {
			return keys[i].PX < keys[j].PX
		}
		return keys[i].PZ < keys[j].PZ
	})
	return keys
}

// Load registers an empty (all air) partition and returns it. An
// already loaded partition is returned unchanged.
func (s *Store) Load(key grid.PartitionKey) *Partition {
	if p, ok := s.Parts[key]; ok {
		return p
	}
	p := &Partition{
		Key:      key,
		Bounds:   s.Bounds,
		Sections: make([]Section, s.Bounds.SectionCount()),
	}
	s.Parts[key] = p
	return p
}

func (s *Store) Unload(key grid.PartitionKey) {
	delete(s.Parts, key)
}

// GetMaterial returns the material at pos, or ok=false when the owning
// partition is not loaded or pos is outside the vertical extent.
func (s *Store) GetMaterial(pos grid.Vec3i) (uint16, bool) {
	if !s.Bounds.InRange(pos.Y) {
		return Air, false
	}
	p, ok := s.Parts[grid.KeyFor(pos)]
	if !ok {
		return Air, false
	}
	return p.Get(pos.X, pos.Y, pos.Z), true
}

// SetMaterial writes a voxel and maintains the per-section opacity and
// emitter counters. Returns the previous material and ok=false when the
// partition is not loaded.
func (s *Store) SetMaterial(pos grid.Vec3i, id uint16) (uint16, bool) {
	if !s.Bounds.InRange(pos.Y) {
		return Air, false
	}
	p, ok := s.Parts[grid.KeyFor(pos)]
	if !ok {
		return Air, false
	}
	si := s.Bounds.SectionOf(pos.Y)
	sec := &p.Sections[si]
	if sec.Materials == nil {
		if id == Air {
			return Air, true
		}
		sec.Materials = make([]uint16, grid.SectionVolume)
	}
	li := grid.LocalIndex(pos.X, pos.Y, pos.Z)
	old := sec.Materials[li]
	if old == id {
		return old, true
	}
	sec.Materials[li] = id
	p.dirty = true

	if s.Mats.Opacity(old) > 0 {
		sec.opaque--
	}
	if s.Mats.Opacity(id) > 0 {
		sec.opaque++
	}
	if s.Mats.Emission(old) > 0 {
		sec.emitters--
	}
	if s.Mats.Emission(id) > 0 {
		sec.emitters++
	}
	return old, true
}

// ImportSections rebuilds a partition from persisted section data,
// recounting the coarse counters from the catalog tables.
func (s *Store) ImportSections(key grid.PartitionKey, sections [][]uint16) *Partition {
	p := s.Load(key)
	for i := range p.Sections {
		sec := &p.Sections[i]
		sec.Materials = nil
		sec.opaque = 0
		sec.emitters = 0
		if i >= len(sections) || sections[i] == nil {
			continue
		}
		m := make([]uint16, grid.SectionVolume)
		copy(m, sections[i])
		sec.Materials = m
		for _, v := range m {
			if s.Mats.Opacity(v) > 0 {
				sec.opaque++
			}
			if s.Mats.Emission(v) > 0 {
				sec.emitters++
			}
		}
	}
	p.dirty = true
	return p
}

// ExportSections copies out the non-air section contents for
// persistence; nil entries mark all-air sections.
func (p *Partition) ExportSections() [][]uint16 {
	out := make([][]uint16, len(p.Sections))
	for i := range p.Sections {
		if p.Sections[i].Materials == nil {
			continue
		}
		m := make([]uint16, grid.SectionVolume)
		copy(m, p.Sections[i].Materials)
		out[i] = m
	}
	return out
}
