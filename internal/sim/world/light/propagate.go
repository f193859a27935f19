package light

import (
	"context"

	lightstore "voxelglow.dev/internal/sim/world/light/store"
	"voxelglow.dev/internal/sim/world/logic/grid"
	terrain "voxelglow.dev/internal/sim/world/terrain/store"
)

// Node is one propagation work item: a position and the level proposed
// for it.
type Node struct {
	Pos   grid.Vec3i
	Level uint8
}

// queue is a FIFO ring over a slice. The flood-fill is confluent, so
// ordering only affects visit counts, not the converged result.
type queue struct {
	buf  []Node
	head int
}

func (q *queue) push(n Node) {
	q.buf = append(q.buf, n)
}

func (q *queue) pop() (Node, bool) {
	if q.head >= len(q.buf) {
		return Node{}, false
	}
	n := q.buf[q.head]
	q.head++
	if q.head > 4096 && q.head*2 > len(q.buf) {
		q.buf = append(q.buf[:0], q.buf[q.head:]...)
		q.head = 0
	}
	return n, true
}

func (q *queue) empty() bool { return q.head >= len(q.buf) }
func (q *queue) len() int    { return len(q.buf) - q.head }

// propagate is the shared increase pass serving both channels and every
// caller (initial seeding, reseed after removal, border donation). A
// node only writes when it strictly improves the stored value, and a
// position is only re-enqueued on strict improvement, so termination
// and order-independence both hold.
//
// ctx aborts long passes between batches; a nil ctx never aborts.
func propagate(ctx context.Context, v access, op opacityFunc, ch lightstore.Channel, q *queue) (visited int, aborted bool) {
	for {
		if ctx != nil && visited&0x7FF == 0 {
			select {
			case <-ctx.Done():
				return visited, true
			default:
			}
		}
		nd, ok := q.pop()
		if !ok {
			return visited, false
		}
		if nd.Level == 0 {
			continue
		}
		cur, ok := v.level(nd.Pos, ch)
		if !ok || cur >= nd.Level {
			continue
		}
		v.setLevel(nd.Pos, ch, nd.Level)
		visited++

		for _, off := range grid.FaceOffsets {
			np := nd.Pos.Add(off)
			mat, ok := v.materialAt(np)
			if !ok {
				continue
			}
			att := op(mat)
			if att < 1 {
				att = 1
			}
			if att >= nd.Level {
				continue
			}
			nl := nd.Level - att
			if cv, ok := v.level(np, ch); ok && nl > cv {
				q.push(Node{Pos: np, Level: nl})
			}
		}
	}
}

type opacityFunc func(uint16) uint8

// seedSky enqueues level 15 for every voxel strictly above the height
// index, up to the world ceiling. Lateral bleed under overhangs is not
// special-cased; it falls out of the shared flood-fill.
func seedSky(pl *lightstore.PartitionLight, q *queue) {
	b := pl.Bounds
	baseX := pl.Key.PX * grid.PartitionSize
	baseZ := pl.Key.PZ * grid.PartitionSize
	for lz := 0; lz < grid.PartitionSize; lz++ {
		for lx := 0; lx < grid.PartitionSize; lx++ {
			from := b.FloorY
			if h := pl.HeightAt(lx, lz); h != lightstore.HeightNone {
				from = int(h) + 1
			}
			for y := from; y < b.CeilY; y++ {
				q.push(Node{Pos: grid.Vec3i{X: baseX + lx, Y: y, Z: baseZ + lz}, Level: lightstore.MaxLevel})
			}
		}
	}
}

// seedEmissive enqueues every emitting voxel at its emission level.
// Sections flagged emitter-free are skipped without a scan.
func seedEmissive(t *terrain.Partition, em opacityFunc, q *queue) {
	baseX := t.Key.PX * grid.PartitionSize
	baseZ := t.Key.PZ * grid.PartitionSize
	for si := range t.Sections {
		sec := &t.Sections[si]
		if sec.HasNoEmitters() || sec.Materials == nil {
			continue
		}
		minY := t.Bounds.SectionMinY(si)
		for i, id := range sec.Materials {
			lvl := em(id)
			if lvl == 0 {
				continue
			}
			q.push(Node{
				Pos: grid.Vec3i{
					X: baseX + i&0xF,
					Y: minY + i>>8,
					Z: baseZ + (i>>4)&0xF,
				},
				Level: lvl,
			})
		}
	}
}
