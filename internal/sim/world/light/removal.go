package light

import (
	lightstore "voxelglow.dev/internal/sim/world/light/store"
	"voxelglow.dev/internal/sim/world/logic/grid"
)

// frontier is the carried-over state of a retraction that hit its node
// budget. Reseeding is held back until retraction drains: propagating
// survivors into a half-retracted region could freeze stale levels in
// place, because retraction classifies by comparing stored values.
//
// seeds are propagation sources enqueued as-is (replacement emitters,
// newly exposed sky, emitters uncovered by the walk); reseed holds
// survivor candidates whose stored value is already correct and whose
// contribution enters phase 2 as donations into their neighbors.
type frontier struct {
	ch     lightstore.Channel
	q      queue
	seeds  []Node
	reseed []Node
}

// retract runs the decrease pass. starts carry each retracted source
// position with its prior stored level; their stored values are zeroed
// up front. seeds are extra propagation sources held with the reseed
// candidates until retraction drains. At most budget nodes are zeroed
// in this call; an unfinished walk is returned as a frontier for a
// later cycle.
//
// Classification at each neighbor: a stored value strictly below the
// level arriving along this path existed only because of the retracted
// source, so it is zeroed and the walk continues through it carrying
// its former value. A value at least as high has an independent source
// and becomes a reseed candidate.
func (e *Engine) retract(v access, ch lightstore.Channel, starts, seeds []Node, budget int) *frontier {
	fr := &frontier{ch: ch, seeds: seeds}
	for _, s := range starts {
		if s.Level == 0 {
			continue
		}
		v.setLevel(s.Pos, ch, 0)
		fr.q.push(s)
	}
	if e.resumeRetract(v, fr, budget) {
		return nil
	}
	return fr
}

// resumeRetract continues a retraction walk under a fresh budget.
// Returns true when the frontier drained and reseeding ran.
func (e *Engine) resumeRetract(v access, fr *frontier, budget int) bool {
	zeroed := 0
	for zeroed < budget {
		nd, ok := fr.q.pop()
		if !ok {
			break
		}
		for _, off := range grid.FaceOffsets {
			np := nd.Pos.Add(off)
			lv, ok := v.level(np, fr.ch)
			if !ok || lv == 0 {
				continue
			}
			if lv < nd.Level {
				v.setLevel(np, fr.ch, 0)
				zeroed++
				fr.q.push(Node{Pos: np, Level: lv})
				// A zeroed voxel may emit on its own: its stored value
				// was dominated by the retracted source, but the
				// emission stays and must come back in phase 2. This is
				// the only way back in for opaque emitters, which the
				// increase pass never enters from outside.
				if fr.ch == lightstore.Emissive {
					if mat, ok := v.materialAt(np); ok {
						if em := e.src.Emission(mat); em > 0 {
							fr.seeds = append(fr.seeds, Node{Pos: np, Level: em})
						}
					}
				}
			} else {
				fr.reseed = append(fr.reseed, Node{Pos: np, Level: lv})
			}
		}
	}
	if !fr.q.empty() {
		return false
	}

	// Phase 2. Survivor candidates already store their correct level, so
	// enqueueing them directly would be dropped by the increase pass
	// before their neighbors were explored; what re-lights the zeroed
	// region is their donations across each face. A candidate that a
	// later walk path zeroed after classification is skipped here; its
	// light was not independent after all.
	var rq queue
	for _, n := range fr.seeds {
		rq.push(n)
	}
	for _, n := range fr.reseed {
		lv, ok := v.level(n.Pos, fr.ch)
		if !ok || lv == 0 {
			continue
		}
		for _, off := range grid.FaceOffsets {
			np := n.Pos.Add(off)
			mat, ok := v.materialAt(np)
			if !ok {
				continue
			}
			att := attInto(e.src, mat)
			if att >= int(lv) {
				continue
			}
			rq.push(Node{Pos: np, Level: lv - uint8(att)})
		}
	}
	fr.seeds, fr.reseed = nil, nil
	propagate(nil, v, e.src.Opacity, fr.ch, &rq)
	return true
}
