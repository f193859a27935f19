package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	snapv1 "voxelglow.dev/internal/persistence/snapshot"
	"voxelglow.dev/internal/sim/catalogs"
	"voxelglow.dev/internal/sim/world/logic/grid"
	terrain "voxelglow.dev/internal/sim/world/terrain/store"
)

var testBounds = grid.Bounds{FloorY: 0, CeilY: 64}

func TestNibbleArray_PackUnpack(t *testing.T) {
	a := newNibbleArray()
	if len(a) != NibbleBytes {
		t.Fatalf("nibble array length %d, want %d", len(a), NibbleBytes)
	}
	// Adjacent indices share a byte; writes must not clobber each other.
	a.set(0, 15)
	a.set(1, 7)
	if a.get(0) != 15 || a.get(1) != 7 {
		t.Fatalf("adjacent nibbles: got %d,%d want 15,7", a.get(0), a.get(1))
	}
	a.set(0, 3)
	if a.get(0) != 3 || a.get(1) != 7 {
		t.Fatalf("low rewrite clobbered neighbor: got %d,%d", a.get(0), a.get(1))
	}
	a.set(4095, 12)
	if a.get(4095) != 12 {
		t.Fatalf("last index: %d, want 12", a.get(4095))
	}
}

func TestPartitionLight_SetGetAcrossSections(t *testing.T) {
	pl := NewPartitionLight(grid.PartitionKey{PX: -1, PZ: 2}, testBounds)
	positions := []grid.Vec3i{
		{X: -16, Y: 0, Z: 32},  // partition-local (0,0,0)
		{X: -1, Y: 15, Z: 47},  // partition-local (15,15,15)
		{X: -8, Y: 16, Z: 40},  // second section
		{X: -8, Y: 63, Z: 40},  // top section
	}
	for i, p := range positions {
		pl.SetLevel(p, Sky, uint8(i+1))
		pl.SetLevel(p, Emissive, uint8(15-i))
	}
	for i, p := range positions {
		if got := pl.Get(p, Sky); got != uint8(i+1) {
			t.Fatalf("sky at %v: %d, want %d", p, got, i+1)
		}
		if got := pl.Get(p, Emissive); got != uint8(15-i) {
			t.Fatalf("emissive at %v: %d, want %d", p, got, 15-i)
		}
	}
	// Untouched sections stay nil and read zero.
	if !pl.SectionDark(2, Sky) {
		t.Fatalf("untouched section reported lit")
	}
	if got := pl.Get(grid.Vec3i{X: -8, Y: 33, Z: 40}, Sky); got != 0 {
		t.Fatalf("untouched voxel: %d, want 0", got)
	}
}

func TestHeightIndex_BuildAndSentinel(t *testing.T) {
	cats := catalogs.Builtin()
	ts := terrain.New(testBounds, &cats.Materials)
	key := grid.PartitionKey{}
	tp := ts.Load(key)
	stone := cats.Materials.Index["STONE"]
	glass := cats.Materials.Index["GLASS"]

	ts.SetMaterial(grid.Vec3i{X: 3, Y: 10, Z: 4}, stone)
	ts.SetMaterial(grid.Vec3i{X: 3, Y: 40, Z: 4}, stone)
	// Zero-opacity material must not register as a surface.
	ts.SetMaterial(grid.Vec3i{X: 5, Y: 50, Z: 5}, glass)

	pl := NewPartitionLight(key, testBounds)
	pl.BuildHeightIndex(tp, cats.Materials.Opacity)

	if h := pl.HeightAt(3, 4); h != 40 {
		t.Fatalf("height at stacked column: %d, want 40", h)
	}
	if h := pl.HeightAt(5, 5); h != HeightNone {
		t.Fatalf("glass-only column: %d, want HeightNone", h)
	}
	if h := pl.HeightAt(0, 0); h != HeightNone {
		t.Fatalf("empty column: %d, want HeightNone", h)
	}
}

func TestHeightIndex_RescanAfterTopRemoval(t *testing.T) {
	cats := catalogs.Builtin()
	ts := terrain.New(testBounds, &cats.Materials)
	key := grid.PartitionKey{}
	tp := ts.Load(key)
	stone := cats.Materials.Index["STONE"]

	ts.SetMaterial(grid.Vec3i{X: 7, Y: 12, Z: 7}, stone)
	ts.SetMaterial(grid.Vec3i{X: 7, Y: 30, Z: 7}, stone)

	pl := NewPartitionLight(key, testBounds)
	pl.BuildHeightIndex(tp, cats.Materials.Opacity)
	if h := pl.HeightAt(7, 7); h != 30 {
		t.Fatalf("initial height: %d, want 30", h)
	}

	ts.SetMaterial(grid.Vec3i{X: 7, Y: 30, Z: 7}, 0)
	pl.RescanColumn(tp, cats.Materials.Opacity, 7, 7, 30)
	if h := pl.HeightAt(7, 7); h != 12 {
		t.Fatalf("rescanned height: %d, want 12", h)
	}

	ts.SetMaterial(grid.Vec3i{X: 7, Y: 12, Z: 7}, 0)
	pl.RescanColumn(tp, cats.Materials.Opacity, 7, 7, 12)
	if h := pl.HeightAt(7, 7); h != HeightNone {
		t.Fatalf("emptied column: %d, want HeightNone", h)
	}
}

func TestSnapshotLight_ExportImportRoundTrip(t *testing.T) {
	key := grid.PartitionKey{PX: 2, PZ: -3}
	pl := NewPartitionLight(key, testBounds)
	pl.SetLevel(grid.Vec3i{X: 36, Y: 10, Z: -42}, Sky, 15)
	pl.SetLevel(grid.Vec3i{X: 40, Y: 50, Z: -44}, Emissive, 9)
	pl.SetHeight(4, 6, 22)

	var snap snapv1.PartitionV1
	snap.PX, snap.PZ = key.PX, key.PZ
	snap.FloorY, snap.CeilY = testBounds.FloorY, testBounds.CeilY
	pl.Export(&snap)

	got, err := ImportLight(key, testBounds, &snap)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if got.Digest() != pl.Digest() {
		t.Fatalf("round-tripped digest mismatch")
	}
	if diff := cmp.Diff(pl.height, got.height); diff != "" {
		t.Fatalf("height index mismatch (-want +got):\n%s", diff)
	}
	if lv := got.Get(grid.Vec3i{X: 36, Y: 10, Z: -42}, Sky); lv != 15 {
		t.Fatalf("sky after round trip: %d, want 15", lv)
	}
}

func TestSnapshotLight_ImportRejectsWrongExtent(t *testing.T) {
	key := grid.PartitionKey{}
	pl := NewPartitionLight(key, testBounds)
	var snap snapv1.PartitionV1
	snap.PX, snap.PZ = 0, 0
	snap.FloorY, snap.CeilY = -64, 320 // does not match testBounds
	pl.Export(&snap)

	if _, err := ImportLight(key, testBounds, &snap); err == nil {
		t.Fatalf("expected corrupt-extent import to fail")
	}
}
