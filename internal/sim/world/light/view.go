package light

import (
	lightstore "voxelglow.dev/internal/sim/world/light/store"
	"voxelglow.dev/internal/sim/world/logic/grid"
	terrain "voxelglow.dev/internal/sim/world/terrain/store"
)

// access is the position view the flood-fill runs over. Lookups return
// ok=false for positions the pass must not cross (outside the clamp,
// partition not loaded, light not yet initialized).
type access interface {
	level(pos grid.Vec3i, ch lightstore.Channel) (uint8, bool)
	setLevel(pos grid.Vec3i, ch lightstore.Channel, v uint8)
	materialAt(pos grid.Vec3i) (uint16, bool)
}

// partView clamps a pass to a single detached partition column. Used by
// background init builds, which share no mutable state with anything
// else; cross-border consistency is restored by the border synchronizer
// once the partition is published.
type partView struct {
	pl *lightstore.PartitionLight
	t  *terrain.Partition
}

func (v *partView) inside(pos grid.Vec3i) bool {
	return v.pl.Bounds.InRange(pos.Y) && grid.KeyFor(pos) == v.pl.Key
}

func (v *partView) level(pos grid.Vec3i, ch lightstore.Channel) (uint8, bool) {
	if !v.inside(pos) {
		return 0, false
	}
	return v.pl.Level(pos, ch), true
}

func (v *partView) setLevel(pos grid.Vec3i, ch lightstore.Channel, val uint8) {
	v.pl.SetLevel(pos, ch, val)
}

func (v *partView) materialAt(pos grid.Vec3i) (uint16, bool) {
	if !v.inside(pos) {
		return terrain.Air, false
	}
	return v.t.Get(pos.X, pos.Y, pos.Z), true
}

// viewPart is an initialized partition captured for a mutation pass.
type viewPart struct {
	light *lightstore.PartitionLight
	t     *terrain.Partition
}

// worldView spans every initialized partition. It write-locks each
// partition's light on first touch and releases the set at the end of
// the mutation pass, so readers never observe a half-applied edit.
type worldView struct {
	e      *Engine
	parts  map[grid.PartitionKey]*viewPart
	locked []*viewPart
}

func (e *Engine) newWorldView() *worldView {
	return &worldView{e: e, parts: map[grid.PartitionKey]*viewPart{}}
}

// partAt returns the captured partition for key, locking it on first
// use; nil when the partition is absent or not yet initialized.
func (v *worldView) partAt(key grid.PartitionKey) *viewPart {
	vp, hit := v.parts[key]
	if hit {
		return vp
	}
	v.e.mu.RLock()
	if ent := v.e.parts[key]; ent != nil && ent.state == stateReady {
		vp = &viewPart{light: ent.light, t: ent.terrain}
	}
	v.e.mu.RUnlock()
	if vp != nil {
		vp.light.Mu.Lock()
		v.locked = append(v.locked, vp)
	}
	v.parts[key] = vp
	return vp
}

func (v *worldView) release() {
	for _, vp := range v.locked {
		vp.light.Mu.Unlock()
	}
	v.locked = v.locked[:0]
	v.parts = map[grid.PartitionKey]*viewPart{}
}

func (v *worldView) level(pos grid.Vec3i, ch lightstore.Channel) (uint8, bool) {
	if !v.e.cfg.Bounds.InRange(pos.Y) {
		return 0, false
	}
	vp := v.partAt(grid.KeyFor(pos))
	if vp == nil {
		return 0, false
	}
	return vp.light.Level(pos, ch), true
}

func (v *worldView) setLevel(pos grid.Vec3i, ch lightstore.Channel, val uint8) {
	if !v.e.cfg.Bounds.InRange(pos.Y) {
		return
	}
	if vp := v.partAt(grid.KeyFor(pos)); vp != nil {
		vp.light.SetLevel(pos, ch, val)
	}
}

func (v *worldView) materialAt(pos grid.Vec3i) (uint16, bool) {
	if !v.e.cfg.Bounds.InRange(pos.Y) {
		return terrain.Air, false
	}
	vp := v.partAt(grid.KeyFor(pos))
	if vp == nil {
		return terrain.Air, false
	}
	return vp.t.Get(pos.X, pos.Y, pos.Z), true
}
