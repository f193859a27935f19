package grid

import "testing"

func TestKeyAt_NegativeCoordinates(t *testing.T) {
	cases := []struct {
		x, z   int
		px, pz int
	}{
		{0, 0, 0, 0},
		{15, 15, 0, 0},
		{16, 0, 1, 0},
		{-1, -1, -1, -1},
		{-16, -17, -1, -2},
		{-17, 31, -2, 1},
	}
	for _, c := range cases {
		if got := KeyAt(c.x, c.z); got.PX != c.px || got.PZ != c.pz {
			t.Fatalf("KeyAt(%d,%d) = %+v, want (%d,%d)", c.x, c.z, got, c.px, c.pz)
		}
	}
}

func TestLocalIndex_Bijective(t *testing.T) {
	seen := make([]bool, SectionVolume)
	for y := 0; y < PartitionSize; y++ {
		for z := 0; z < PartitionSize; z++ {
			for x := 0; x < PartitionSize; x++ {
				i := LocalIndex(x, y, z)
				if i < 0 || i >= SectionVolume || seen[i] {
					t.Fatalf("index collision or overflow at (%d,%d,%d): %d", x, y, z, i)
				}
				seen[i] = true
				// World coordinates map to the same slot as local ones.
				if LocalIndex(x-32, y+16, z-48) != i {
					t.Fatalf("world-coordinate index diverges at (%d,%d,%d)", x, y, z)
				}
			}
		}
	}
}

func TestBounds_Sections(t *testing.T) {
	b := Bounds{FloorY: -64, CeilY: 320}
	if n := b.SectionCount(); n != 24 {
		t.Fatalf("section count %d, want 24", n)
	}
	if s := b.SectionOf(-64); s != 0 {
		t.Fatalf("floor section %d, want 0", s)
	}
	if s := b.SectionOf(319); s != 23 {
		t.Fatalf("top section %d, want 23", s)
	}
	if s := b.SectionOf(320); s != -1 {
		t.Fatalf("out-of-range section %d, want -1", s)
	}
	if s := b.SectionOf(-65); s != -1 {
		t.Fatalf("below-floor section %d, want -1", s)
	}
	if y := b.SectionMinY(1); y != -48 {
		t.Fatalf("section 1 min y %d, want -48", y)
	}
}

func TestTaxicab(t *testing.T) {
	a := Vec3i{X: 1, Y: -2, Z: 3}
	b := Vec3i{X: -4, Y: 0, Z: 3}
	if d := Taxicab(a, b); d != 7 {
		t.Fatalf("taxicab %d, want 7", d)
	}
	if d := Taxicab(a, a); d != 0 {
		t.Fatalf("self distance %d, want 0", d)
	}
}
