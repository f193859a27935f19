package store

import "voxelglow.dev/internal/sim/world/logic/grid"

// NibbleBytes is the byte length of one packed section array: two
// light values per byte, 4096 voxels.
const NibbleBytes = grid.SectionVolume / 2

type nibbleArray []byte

func newNibbleArray() nibbleArray {
	return make(nibbleArray, NibbleBytes)
}

func (n nibbleArray) get(i int) uint8 {
	b := n[i>>1]
	if i&1 == 1 {
		return b >> 4
	}
	return b & 0x0F
}

func (n nibbleArray) set(i int, v uint8) {
	if i&1 == 1 {
		n[i>>1] = n[i>>1]&0x0F | v<<4
		return
	}
	n[i>>1] = n[i>>1]&0xF0 | v&0x0F
}
