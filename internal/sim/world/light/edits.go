package light

import (
	lightstore "voxelglow.dev/internal/sim/world/light/store"
	"voxelglow.dev/internal/sim/world/logic/grid"
)

// OnMaterialChanged reacts to a single-voxel edit. The terrain store
// already holds the new material; classification into the increase or
// decrease pass happens per channel from the opacity and emission
// deltas. Bounded work runs synchronously; only a retraction that
// overruns its budget is carried to later ticks.
func (e *Engine) OnMaterialChanged(pos grid.Vec3i, oldID, newID uint16) error {
	if !e.cfg.Bounds.InRange(pos.Y) {
		return ErrNotLoaded
	}
	key := grid.KeyFor(pos)
	e.mu.RLock()
	ent := e.parts[key]
	ready := ent != nil && ent.state == stateReady
	e.mu.RUnlock()
	if ent == nil {
		return ErrNotLoaded
	}
	if !ready {
		return ErrUninitialized
	}

	oldOp, newOp := e.src.Opacity(oldID), e.src.Opacity(newID)
	oldEm, newEm := e.src.Emission(oldID), e.src.Emission(newID)
	if oldOp == newOp && oldEm == newEm {
		return nil
	}

	v := e.newWorldView()
	defer v.release()

	e.updateSky(v, key, pos, oldOp, newOp)
	e.updateEmissive(v, pos, oldOp, newOp, oldEm, newEm)
	return nil
}

// updateSky maintains the height index for the edited column and runs
// the matching light pass.
func (e *Engine) updateSky(v *worldView, key grid.PartitionKey, pos grid.Vec3i, oldOp, newOp uint8) {
	vp := v.partAt(key)
	if vp == nil {
		return
	}
	pl := vp.light
	h := pl.HeightAt(pos.X, pos.Z)

	var starts []Node
	var q queue

	switch {
	case newOp > 0 && (h == lightstore.HeightNone || pos.Y > int(h)):
		// New topmost opaque voxel: everything in the column strictly
		// above the old height, up to and including pos, loses its
		// direct seed and is retracted.
		lowY := e.cfg.Bounds.FloorY
		if h != lightstore.HeightNone {
			lowY = int(h) + 1
		}
		pl.SetHeight(pos.X, pos.Z, int16(pos.Y))
		for y := lowY; y <= pos.Y; y++ {
			p := grid.Vec3i{X: pos.X, Y: y, Z: pos.Z}
			if lv, ok := v.level(p, lightstore.Sky); ok && lv > 0 {
				starts = append(starts, Node{Pos: p, Level: lv})
			}
		}

	case newOp == 0 && oldOp > 0 && h != lightstore.HeightNone && pos.Y == int(h):
		// Topmost opaque voxel removed: the column is exposed down to
		// the next opaque voxel and reseeded at full level.
		pl.RescanColumn(vp.t, e.src.Opacity, pos.X, pos.Z, pos.Y)
		lowY := e.cfg.Bounds.FloorY
		if nh := pl.HeightAt(pos.X, pos.Z); nh != lightstore.HeightNone {
			lowY = int(nh) + 1
		}
		for y := lowY; y <= pos.Y; y++ {
			q.push(Node{Pos: grid.Vec3i{X: pos.X, Y: y, Z: pos.Z}, Level: lightstore.MaxLevel})
		}
	}

	switch {
	case newOp > oldOp:
		// Darkening under cover (no height change): retract whatever
		// sky light was stored at the edited voxel.
		if len(starts) == 0 {
			if lv, ok := v.level(pos, lightstore.Sky); ok && lv > 0 {
				starts = append(starts, Node{Pos: pos, Level: lv})
			}
		}
	case newOp < oldOp:
		// More transparent: neighbors may now bleed in.
		e.seedFromNeighbors(v, pos, lightstore.Sky, &q)
	}

	if len(starts) > 0 {
		e.runRetract(v, lightstore.Sky, starts, drain(&q))
		return
	}
	propagate(nil, v, e.src.Opacity, lightstore.Sky, &q)
}

func (e *Engine) updateEmissive(v *worldView, pos grid.Vec3i, oldOp, newOp, oldEm, newEm uint8) {
	var starts []Node
	var q queue

	cur, ok := v.level(pos, lightstore.Emissive)
	if !ok {
		return
	}
	if (newEm < oldEm || newOp > oldOp) && cur > 0 {
		starts = append(starts, Node{Pos: pos, Level: cur})
	}
	if newEm > 0 {
		q.push(Node{Pos: pos, Level: newEm})
	}
	// Neighbor levels are only trustworthy when nothing is being
	// retracted; during retraction the classification step reseeds any
	// surviving neighbor light on its own.
	if newOp < oldOp && newEm == 0 && len(starts) == 0 {
		e.seedFromNeighbors(v, pos, lightstore.Emissive, &q)
	}

	if len(starts) > 0 {
		e.runRetract(v, lightstore.Emissive, starts, drain(&q))
		return
	}
	propagate(nil, v, e.src.Opacity, lightstore.Emissive, &q)
}

// seedFromNeighbors proposes pos at each neighbor's level attenuated by
// the voxel's new material; used when an edit makes a voxel admit more
// light.
func (e *Engine) seedFromNeighbors(v *worldView, pos grid.Vec3i, ch lightstore.Channel, q *queue) {
	mat, ok := v.materialAt(pos)
	if !ok {
		return
	}
	att := e.src.Opacity(mat)
	if att < 1 {
		att = 1
	}
	for _, off := range grid.FaceOffsets {
		lv, ok := v.level(pos.Add(off), ch)
		if !ok || lv <= att {
			continue
		}
		q.push(Node{Pos: pos, Level: lv - att})
	}
}

func (e *Engine) runRetract(v *worldView, ch lightstore.Channel, starts, seeds []Node) {
	if fr := e.retract(v, ch, starts, seeds, e.cfg.RetractBudget); fr != nil {
		e.deferred = append(e.deferred, fr)
		e.emit(Event{Type: EventRetractDeferred, Channel: ch.String(), Nodes: fr.q.len()})
	}
}

func drain(q *queue) []Node {
	if q.empty() {
		return nil
	}
	out := make([]Node, 0, q.len())
	for {
		n, ok := q.pop()
		if !ok {
			return out
		}
		out = append(out, n)
	}
}
