package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

// ErrCorrupt marks persisted light data that failed validation. Callers
// recover by discarding the stored arrays and forcing a full re-init;
// it is never fatal.
var ErrCorrupt = errors.New("corrupt partition snapshot")

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// PartitionV1 persists one partition column: materials alongside the
// two 4-bit-packed light channels per section, plus the height index.
// A nil Sky/Emissive slice marks an all-dark section, a nil Materials
// slice an all-air one. Seeded false means the light arrays are absent
// and a full init pass is required before any query is valid.
type PartitionV1 struct {
	Header Header `json:"header"`

	PX     int `json:"px"`
	PZ     int `json:"pz"`
	FloorY int `json:"floor_y"`
	CeilY  int `json:"ceil_y"`

	Seeded   bool        `json:"seeded"`
	Height   []int16     `json:"height"`
	Sections []SectionV1 `json:"sections"`
}

type SectionV1 struct {
	Materials []uint16 `json:"materials,omitempty"`
	Sky       []byte   `json:"sky,omitempty"`
	Emissive  []byte   `json:"emissive,omitempty"`
}

const (
	sectionSize   = 16
	columnsPerKey = sectionSize * sectionSize
	nibbleBytes   = sectionSize * sectionSize * sectionSize / 2
)

// Validate checks the snapshot against the world extent it is being
// loaded into. Any mismatch wraps ErrCorrupt.
func (p *PartitionV1) Validate(floorY, ceilY int) error {
	if p.FloorY != floorY || p.CeilY != ceilY {
		return fmt.Errorf("%w: extent %d..%d, want %d..%d", ErrCorrupt, p.FloorY, p.CeilY, floorY, ceilY)
	}
	wantSections := (ceilY - floorY) / sectionSize
	if len(p.Sections) != wantSections {
		return fmt.Errorf("%w: %d sections, want %d", ErrCorrupt, len(p.Sections), wantSections)
	}
	if p.Seeded && len(p.Height) != columnsPerKey {
		return fmt.Errorf("%w: height index length %d", ErrCorrupt, len(p.Height))
	}
	for i, s := range p.Sections {
		if s.Materials != nil && len(s.Materials) != sectionSize*sectionSize*sectionSize {
			return fmt.Errorf("%w: section %d materials length %d", ErrCorrupt, i, len(s.Materials))
		}
		if s.Sky != nil && len(s.Sky) != nibbleBytes {
			return fmt.Errorf("%w: section %d sky length %d", ErrCorrupt, i, len(s.Sky))
		}
		if s.Emissive != nil && len(s.Emissive) != nibbleBytes {
			return fmt.Errorf("%w: section %d emissive length %d", ErrCorrupt, i, len(s.Emissive))
		}
	}
	return nil
}

// PartitionPath is the on-disk location for a partition snapshot.
func PartitionPath(dir string, px, pz int) string {
	return filepath.Join(dir, "partitions", fmt.Sprintf("p.%d.%d.zst", px, pz))
}

func WritePartition(path string, p PartitionV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(p.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&p); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadPartition(path string) (PartitionV1, error) {
	var p PartitionV1
	f, err := os.Open(path)
	if err != nil {
		return p, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is informational; gob carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return p, fmt.Errorf("%w: missing header line", ErrCorrupt)
	}
	if err := gob.NewDecoder(br).Decode(&p); err != nil {
		return p, fmt.Errorf("%w: gob decode: %v", ErrCorrupt, err)
	}
	return p, nil
}
