package light

import (
	lightstore "voxelglow.dev/internal/sim/world/light/store"
	"voxelglow.dev/internal/sim/world/logic/grid"
)

// syncBorders exchanges light with every initialized horizontal
// neighbor of key, in both directions. Runs on every publication (fresh
// init or persisted adoption), so a neighbor that loads later re-checks
// the shared face from its own side; idempotent because the increase
// pass writes only on strict improvement.
func (e *Engine) syncBorders(key grid.PartitionKey) {
	v := e.newWorldView()
	defer v.release()

	a := v.partAt(key)
	if a == nil {
		return
	}
	for _, d := range grid.HorizontalOffsets {
		b := v.partAt(key.Neighbor(d[0], d[1]))
		if b == nil {
			continue
		}
		for _, ch := range []lightstore.Channel{lightstore.Sky, lightstore.Emissive} {
			var q queue
			e.seedBorder(a, b, d, ch, &q)
			propagate(nil, v, e.src.Opacity, ch, &q)
		}
	}
}

// seedBorder walks the shared face between a and its neighbor b at
// offset d and enqueues nodes into whichever side is deficient: a
// border value that, attenuated across the boundary, still exceeds the
// far side's stored value is donated as a seed.
func (e *Engine) seedBorder(a, b *viewPart, d [2]int, ch lightstore.Channel, q *queue) {
	bounds := a.light.Bounds
	baseX := a.light.Key.PX * grid.PartitionSize
	baseZ := a.light.Key.PZ * grid.PartitionSize

	for s := 0; s < bounds.SectionCount(); s++ {
		if a.light.SectionDark(s, ch) && b.light.SectionDark(s, ch) {
			continue
		}
		minY := bounds.SectionMinY(s)
		for y := minY; y < minY+grid.PartitionSize; y++ {
			for i := 0; i < grid.PartitionSize; i++ {
				var pa grid.Vec3i
				switch {
				case d[0] == 1:
					pa = grid.Vec3i{X: baseX + grid.PartitionSize - 1, Y: y, Z: baseZ + i}
				case d[0] == -1:
					pa = grid.Vec3i{X: baseX, Y: y, Z: baseZ + i}
				case d[1] == 1:
					pa = grid.Vec3i{X: baseX + i, Y: y, Z: baseZ + grid.PartitionSize - 1}
				default:
					pa = grid.Vec3i{X: baseX + i, Y: y, Z: baseZ}
				}
				pb := grid.Vec3i{X: pa.X + d[0], Y: y, Z: pa.Z + d[1]}

				va := int(a.light.Level(pa, ch))
				vb := int(b.light.Level(pb, ch))
				if va == vb {
					continue
				}
				if vb > va {
					if c := vb - attInto(e.src, a.t.Get(pa.X, pa.Y, pa.Z)); c > va {
						q.push(Node{Pos: pa, Level: uint8(c)})
					}
				} else {
					if c := va - attInto(e.src, b.t.Get(pb.X, pb.Y, pb.Z)); c > vb {
						q.push(Node{Pos: pb, Level: uint8(c)})
					}
				}
			}
		}
	}
}

func attInto(src Source, mat uint16) int {
	att := int(src.Opacity(mat))
	if att < 1 {
		att = 1
	}
	return att
}
