package store

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"voxelglow.dev/internal/sim/world/logic/grid"
)

// MaxLevel is the brightest storable light value.
const MaxLevel uint8 = 15

// Channel selects one of the two independent light categories. The
// engine treats both uniformly; only seeding differs.
type Channel uint8

const (
	Sky Channel = iota
	Emissive
)

func (c Channel) String() string {
	if c == Sky {
		return "sky"
	}
	return "emissive"
}

// PartitionLight holds one partition column's packed light arrays and
// its height index. Mu follows the single-writer discipline: the update
// coordinator takes Mu.Lock for a whole mutation pass; concurrent
// readers go through Get.
type PartitionLight struct {
	Key    grid.PartitionKey
	Bounds grid.Bounds

	Mu sync.RWMutex

	sky      []nibbleArray // per section; nil = all dark
	emissive []nibbleArray
	height   []int16 // per column, HeightNone when no opaque voxel

	dirty bool
	hash  uint64
}

func NewPartitionLight(key grid.PartitionKey, bounds grid.Bounds) *PartitionLight {
	n := bounds.SectionCount()
	p := &PartitionLight{
		Key:      key,
		Bounds:   bounds,
		sky:      make([]nibbleArray, n),
		emissive: make([]nibbleArray, n),
		height:   make([]int16, grid.ColumnsPerPart),
	}
	for i := range p.height {
		p.height[i] = HeightNone
	}
	return p
}

func (p *PartitionLight) channel(c Channel) []nibbleArray {
	if c == Sky {
		return p.sky
	}
	return p.emissive
}

// Get returns the stored level at pos; safe for concurrent readers.
func (p *PartitionLight) Get(pos grid.Vec3i, c Channel) uint8 {
	p.Mu.RLock()
	defer p.Mu.RUnlock()
	return p.Level(pos, c)
}

// Level reads without locking. Callers either hold Mu or own the
// partition exclusively (detached init builds).
func (p *PartitionLight) Level(pos grid.Vec3i, c Channel) uint8 {
	s := p.Bounds.SectionOf(pos.Y)
	if s < 0 {
		return 0
	}
	arr := p.channel(c)[s]
	if arr == nil {
		return 0
	}
	return arr.get(grid.LocalIndex(pos.X, pos.Y, pos.Z))
}

// SetLevel writes without locking; same caller contract as Level.
func (p *PartitionLight) SetLevel(pos grid.Vec3i, c Channel, v uint8) {
	s := p.Bounds.SectionOf(pos.Y)
	if s < 0 {
		return
	}
	ch := p.channel(c)
	if ch[s] == nil {
		if v == 0 {
			return
		}
		ch[s] = newNibbleArray()
	}
	ch[s].set(grid.LocalIndex(pos.X, pos.Y, pos.Z), v)
	p.dirty = true
}

// SectionDark reports whether a section holds no light on the channel
// without scanning it. Only exact for never-written sections, which is
// all the border synchronizer needs for its skip.
func (p *PartitionLight) SectionDark(s int, c Channel) bool {
	return p.channel(c)[s] == nil
}

// Digest is an xxhash over both channels' packed arrays plus the
// height index, recomputed lazily.
func (p *PartitionLight) Digest() uint64 {
	if !p.dirty && p.hash != 0 {
		return p.hash
	}
	h := xxhash.New()
	var tmp [2]byte
	for _, chArr := range [2][]nibbleArray{p.sky, p.emissive} {
		for i, arr := range chArr {
			if arr == nil {
				continue
			}
			tmp[0] = byte(i)
			_, _ = h.Write(tmp[:1])
			_, _ = h.Write(arr)
		}
	}
	for _, v := range p.height {
		tmp[0] = byte(v)
		tmp[1] = byte(uint16(v) >> 8)
		_, _ = h.Write(tmp[:])
	}
	p.hash = h.Sum64()
	p.dirty = false
	return p.hash
}
