package flann

import "math/bits"

// denseBitset is a fixed-size bit vector sized to the dataset, used for
// two unrelated purposes that share the same shape (spec §4.4 "Duplicate
// suppression" and §6 "remove_point ... tombstones via a bitset"): marking
// point ids already offered to a result set across trees in one query, and
// marking point ids removed from the dataset across the index's lifetime.
type denseBitset struct {
	words []uint64
	n     int
}

func newDenseBitset(n int) *denseBitset {
	return &denseBitset{words: make([]uint64, (n+63)/64), n: n}
}

func (b *denseBitset) set(i int) {
	b.words[i/64] |= 1 << uint(i%64)
}

func (b *denseBitset) clearBit(i int) {
	b.words[i/64] &^= 1 << uint(i%64)
}

func (b *denseBitset) get(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.words[i/64]&(1<<uint(i%64)) != 0
}

func (b *denseBitset) clear() {
	for i := range b.words {
		b.words[i] = 0
	}
}

// grow extends the bitset to cover at least n bits, preserving existing
// bits, used when add_points extends the dataset past the current
// capacity (spec §6 add_points).
func (b *denseBitset) grow(n int) {
	if n <= b.n {
		return
	}
	need := (n + 63) / 64
	if need > len(b.words) {
		grown := make([]uint64, need)
		copy(grown, b.words)
		b.words = grown
	}
	b.n = n
}

func (b *denseBitset) count() int {
	c := 0
	for _, w := range b.words {
		c += bits.OnesCount64(w)
	}
	return c
}
