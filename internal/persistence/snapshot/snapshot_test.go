package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func samplePartition() PartitionV1 {
	p := PartitionV1{
		Header: Header{Version: Version, WorldID: "w1", Tick: 42},
		PX:     3, PZ: -2,
		FloorY: 0, CeilY: 64,
		Seeded:   true,
		Height:   make([]int16, columnsPerKey),
		Sections: make([]SectionV1, 4),
	}
	for i := range p.Height {
		p.Height[i] = int16(i % 60)
	}
	mats := make([]uint16, sectionSize*sectionSize*sectionSize)
	sky := make([]byte, nibbleBytes)
	for i := range mats {
		mats[i] = uint16(i % 7)
	}
	for i := range sky {
		sky[i] = byte(i)
	}
	p.Sections[1] = SectionV1{Materials: mats, Sky: sky}
	return p
}

func TestPartition_WriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := samplePartition()
	path := PartitionPath(dir, want.PX, want.PZ)

	if err := WritePartition(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadPartition(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	if err := got.Validate(0, 64); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestPartition_ReadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.0.0.zst")
	if err := os.WriteFile(path, []byte("not a zstd stream"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if _, err := ReadPartition(path); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("garbage read: %v, want ErrCorrupt", err)
	}
}

func TestPartition_ValidateRejectsBadShapes(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*PartitionV1)
	}{
		{"wrong extent", func(p *PartitionV1) { p.FloorY = -64 }},
		{"section count", func(p *PartitionV1) { p.Sections = p.Sections[:2] }},
		{"height length", func(p *PartitionV1) { p.Height = p.Height[:10] }},
		{"materials length", func(p *PartitionV1) { p.Sections[1].Materials = p.Sections[1].Materials[:100] }},
		{"sky length", func(p *PartitionV1) { p.Sections[1].Sky = p.Sections[1].Sky[:100] }},
	}
	for _, c := range cases {
		p := samplePartition()
		c.mutate(&p)
		if err := p.Validate(0, 64); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: %v, want ErrCorrupt", c.name, err)
		}
	}
}

func TestPartitionPath_Layout(t *testing.T) {
	got := PartitionPath("/data/w1", -3, 7)
	want := filepath.Join("/data/w1", "partitions", "p.-3.7.zst")
	if got != want {
		t.Fatalf("path %q, want %q", got, want)
	}
}
