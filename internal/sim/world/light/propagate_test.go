package light

import (
	"math/rand"
	"testing"

	"voxelglow.dev/internal/sim/catalogs"
	lightstore "voxelglow.dev/internal/sim/world/light/store"
	"voxelglow.dev/internal/sim/world/logic/grid"
	terrain "voxelglow.dev/internal/sim/world/terrain/store"
)

// Opaque floor at Y=0, open air above: every air voxel reads full sky
// light, the floor voxel itself reads zero.
func TestSky_OpaqueFloorColumn(t *testing.T) {
	e, ts := newTestEngine(t, 0, nil)
	key := grid.PartitionKey{}
	ts.Load(key)
	stone := mat(t, ts, "STONE")
	for z := 0; z < grid.PartitionSize; z++ {
		for x := 0; x < grid.PartitionSize; x++ {
			ts.SetMaterial(grid.Vec3i{X: x, Y: 0, Z: z}, stone)
		}
	}
	loadReady(t, e, ts, key)

	for y := 1; y <= 20; y++ {
		if lv := mustLevel(t, e, grid.Vec3i{X: 7, Y: y, Z: 7}, lightstore.Sky); lv != 15 {
			t.Fatalf("sky at y=%d: %d, want 15", y, lv)
		}
	}
	if lv := mustLevel(t, e, grid.Vec3i{X: 7, Y: 0, Z: 7}, lightstore.Sky); lv != 0 {
		t.Fatalf("sky inside floor: %d, want 0", lv)
	}
}

// A level-14 emitter in open volume with uniform attenuation 1 decays
// by exactly the taxicab distance.
func TestEmissive_TaxicabDecay(t *testing.T) {
	e, ts := newTestEngine(t, 0, nil)
	key := grid.PartitionKey{}
	ts.Load(key)
	src := grid.Vec3i{X: 8, Y: 32, Z: 8}
	ts.SetMaterial(src, mat(t, ts, "LANTERN"))
	loadReady(t, e, ts, key)

	cases := []struct {
		pos  grid.Vec3i
		want uint8
	}{
		{src, 14},
		{grid.Vec3i{X: 8, Y: 35, Z: 8}, 11},  // distance 3
		{grid.Vec3i{X: 10, Y: 36, Z: 9}, 7},  // distance 7
		{grid.Vec3i{X: 8, Y: 46, Z: 8}, 0},   // distance 14
		{grid.Vec3i{X: 8, Y: 50, Z: 8}, 0},   // beyond range
	}
	for _, c := range cases {
		if lv := mustLevel(t, e, c.pos, lightstore.Emissive); lv != c.want {
			t.Fatalf("emissive at %v (distance %d): %d, want %d", c.pos, grid.Taxicab(c.pos, src), lv, c.want)
		}
	}
}

// A single floating opaque voxel shadows only itself; the voxel under
// it is lit laterally one step dimmer.
func TestSky_LateralBleedUnderFloatingBlock(t *testing.T) {
	e, ts := newTestEngine(t, 0, nil)
	key := grid.PartitionKey{}
	ts.Load(key)
	ts.SetMaterial(grid.Vec3i{X: 8, Y: 40, Z: 8}, mat(t, ts, "STONE"))
	loadReady(t, e, ts, key)

	if lv := mustLevel(t, e, grid.Vec3i{X: 8, Y: 41, Z: 8}, lightstore.Sky); lv != 15 {
		t.Fatalf("above block: %d, want 15", lv)
	}
	if lv := mustLevel(t, e, grid.Vec3i{X: 8, Y: 40, Z: 8}, lightstore.Sky); lv != 0 {
		t.Fatalf("inside block: %d, want 0", lv)
	}
	if lv := mustLevel(t, e, grid.Vec3i{X: 8, Y: 39, Z: 8}, lightstore.Sky); lv != 14 {
		t.Fatalf("under block: %d, want 14", lv)
	}
}

// A slab with one open column forces sky light to turn the corner and
// travel laterally under cover, re-improving already-visited voxels.
func TestSky_SpreadsUnderSlabFromSingleShaft(t *testing.T) {
	e, ts := newTestEngine(t, 0, nil)
	key := grid.PartitionKey{}
	ts.Load(key)
	stone := mat(t, ts, "STONE")
	for z := 0; z < grid.PartitionSize; z++ {
		for x := 0; x < grid.PartitionSize; x++ {
			if x == 0 && z == 0 {
				continue // the shaft
			}
			ts.SetMaterial(grid.Vec3i{X: x, Y: 20, Z: z}, stone)
		}
	}
	loadReady(t, e, ts, key)

	// Under the slab the level decays with lateral distance from the
	// shaft column.
	if lv := mustLevel(t, e, grid.Vec3i{X: 0, Y: 19, Z: 0}, lightstore.Sky); lv != 15 {
		t.Fatalf("shaft column: %d, want 15", lv)
	}
	if lv := mustLevel(t, e, grid.Vec3i{X: 5, Y: 19, Z: 0}, lightstore.Sky); lv != 10 {
		t.Fatalf("5 steps under slab: %d, want 10", lv)
	}
	if lv := mustLevel(t, e, grid.Vec3i{X: 7, Y: 19, Z: 7}, lightstore.Sky); lv != 1 {
		t.Fatalf("14 steps under slab: %d, want 1", lv)
	}
	if lv := mustLevel(t, e, grid.Vec3i{X: 15, Y: 19, Z: 15}, lightstore.Sky); lv != 0 {
		t.Fatalf("30 steps under slab: %d, want 0", lv)
	}
}

// A serpentine corridor sealed in stone: light decays with distance
// along the winding path, never with straight-line distance. The far
// end sits two voxels from the source through a wall and must stay
// dark.
func TestEmissive_SerpentineCorridorFollowsPathDistance(t *testing.T) {
	e, ts := newTestEngine(t, 0, nil)
	key := grid.PartitionKey{}
	ts.Load(key)
	stone := mat(t, ts, "STONE")
	for y := 31; y <= 33; y++ {
		for z := 0; z < grid.PartitionSize; z++ {
			for x := 0; x < grid.PartitionSize; x++ {
				ts.SetMaterial(grid.Vec3i{X: x, Y: y, Z: z}, stone)
			}
		}
	}
	// Carve three switchback segments at y=32, joined at x=9.
	air := mat(t, ts, "AIR")
	for x := 1; x <= 9; x++ {
		ts.SetMaterial(grid.Vec3i{X: x, Y: 32, Z: 1}, air)
		ts.SetMaterial(grid.Vec3i{X: x, Y: 32, Z: 3}, air)
	}
	ts.SetMaterial(grid.Vec3i{X: 9, Y: 32, Z: 2}, air)
	lamp := grid.Vec3i{X: 1, Y: 32, Z: 1}
	ts.SetMaterial(lamp, mat(t, ts, "LANTERN"))
	loadReady(t, e, ts, key)

	cases := []struct {
		pos  grid.Vec3i
		path int
		want uint8
	}{
		{grid.Vec3i{X: 9, Y: 32, Z: 1}, 8, 6},
		{grid.Vec3i{X: 9, Y: 32, Z: 2}, 9, 5},
		{grid.Vec3i{X: 9, Y: 32, Z: 3}, 10, 4},
		{grid.Vec3i{X: 8, Y: 32, Z: 3}, 11, 3},
		{grid.Vec3i{X: 5, Y: 32, Z: 3}, 14, 0},
		{grid.Vec3i{X: 1, Y: 32, Z: 3}, 18, 0}, // taxicab 2 through the wall
	}
	for _, c := range cases {
		if lv := mustLevel(t, e, c.pos, lightstore.Emissive); lv != c.want {
			t.Fatalf("emissive at %v (corridor distance %d): %d, want %d", c.pos, c.path, lv, c.want)
		}
	}
	if lv := mustLevel(t, e, grid.Vec3i{X: 5, Y: 32, Z: 2}, lightstore.Emissive); lv != 0 {
		t.Fatalf("light inside the dividing wall: %d, want 0", lv)
	}
}

// The flood-fill must converge to the same field regardless of the
// order seeds are offered in.
func TestPropagate_OrderIndependent(t *testing.T) {
	cats := catalogs.Builtin()
	ts := terrain.New(testBounds, &cats.Materials)
	key := grid.PartitionKey{}
	tp := ts.Load(key)

	rng := rand.New(rand.NewSource(7))
	seeds := make([]Node, 0, 48)
	for i := 0; i < 48; i++ {
		seeds = append(seeds, Node{
			Pos: grid.Vec3i{
				X: rng.Intn(grid.PartitionSize),
				Y: rng.Intn(testBounds.CeilY),
				Z: rng.Intn(grid.PartitionSize),
			},
			Level: uint8(1 + rng.Intn(15)),
		})
	}

	run := func(order []Node) *lightstore.PartitionLight {
		pl := lightstore.NewPartitionLight(key, testBounds)
		v := &partView{pl: pl, t: tp}
		var q queue
		for _, n := range order {
			q.push(n)
		}
		propagate(nil, v, cats.Materials.Opacity, lightstore.Emissive, &q)
		return pl
	}

	shuffled := append([]Node(nil), seeds...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	a := run(seeds)
	b := run(shuffled)
	if a.Digest() != b.Digest() {
		t.Fatalf("converged fields differ across seed orders")
	}
}

func TestQueue_CompactionKeepsFIFO(t *testing.T) {
	var q queue
	const n = 20000
	for i := 0; i < n; i++ {
		q.push(Node{Level: uint8(i%15 + 1), Pos: grid.Vec3i{X: i}})
	}
	for i := 0; i < n; i++ {
		nd, ok := q.pop()
		if !ok {
			t.Fatalf("queue drained early at %d", i)
		}
		if nd.Pos.X != i {
			t.Fatalf("pop %d returned %d, order broken", i, nd.Pos.X)
		}
	}
	if _, ok := q.pop(); ok {
		t.Fatalf("queue not empty after draining")
	}
}
