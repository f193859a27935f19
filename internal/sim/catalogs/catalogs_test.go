package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltin_LookupTables(t *testing.T) {
	c := Builtin()
	if c.Materials.Index["AIR"] != 0 {
		t.Fatalf("AIR must be palette slot 0")
	}
	if op := c.Materials.Opacity(c.Materials.Index["STONE"]); op != 15 {
		t.Fatalf("stone opacity %d, want 15", op)
	}
	if em := c.Materials.Emission(c.Materials.Index["LANTERN"]); em != 14 {
		t.Fatalf("lantern emission %d, want 14", em)
	}
	// Unknown ids are treated as fully opaque, never emitting.
	if op := c.Materials.Opacity(9999); op != 15 {
		t.Fatalf("unknown opacity %d, want 15", op)
	}
	if em := c.Materials.Emission(9999); em != 0 {
		t.Fatalf("unknown emission %d, want 0", em)
	}
	if c.Materials.PaletteDigest == "" || c.Materials.DefsDigest == "" {
		t.Fatalf("digests not computed")
	}
}

func TestLoad_RejectsBadCatalogs(t *testing.T) {
	write := func(body string) string {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "materials.json"), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		return dir
	}

	if _, err := Load(write(`[]`)); err == nil {
		t.Fatalf("empty catalog accepted")
	}
	if _, err := Load(write(`[{"id":"STONE","opacity":15}]`)); err == nil {
		t.Fatalf("non-AIR slot 0 accepted")
	}
	if _, err := Load(write(`[{"id":"AIR"},{"id":"X","opacity":16}]`)); err == nil {
		t.Fatalf("out-of-range opacity accepted")
	}
	if _, err := Load(write(`[{"id":"AIR"},{"id":"AIR"}]`)); err == nil {
		t.Fatalf("duplicate id accepted")
	}
}

func TestLoad_ConfigDirRoundTrip(t *testing.T) {
	dir := t.TempDir()
	body := `[{"id":"AIR"},{"id":"ROCK","solid":true,"opacity":15},{"id":"ORB","solid":true,"emission":12}]`
	if err := os.WriteFile(filepath.Join(dir, "materials.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Materials.Name(2) != "ORB" || c.Materials.Emission(2) != 12 {
		t.Fatalf("ORB lookup: %q emission %d", c.Materials.Name(2), c.Materials.Emission(2))
	}
}
