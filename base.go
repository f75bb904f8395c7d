package flann

import "time"

// baseIndex holds the bookkeeping common to every concrete Index variant:
// the dataset, the distance functor searches use, and the tombstone
// bitset RemovePoint/AddPoints share (spec §6 add_points/remove_point).
// Concrete indices embed it and call through to its helpers rather than
// re-implementing tombstoning and rebuild-threshold bookkeeping each time.
type baseIndex struct {
	dataset      *Dataset
	distance     Distance
	tombstones   *denseBitset
	originalSize int
	removed      int
	checkCounter int64
	stats        *OperationalStats
}

func newBaseIndex(ds *Dataset, dist Distance) baseIndex {
	return baseIndex{
		dataset:      ds,
		distance:     dist,
		tombstones:   newDenseBitset(ds.Rows()),
		originalSize: ds.Rows(),
		stats:        NewOperationalStats(),
	}
}

// recordQuery records one FindNeighbors call's wall-clock duration.
func (b *baseIndex) recordQuery(d time.Duration) {
	b.stats.RecordQuery(d)
}

func (b *baseIndex) dim() int { return b.dataset.Cols() }

func (b *baseIndex) live() int { return b.dataset.Rows() - b.removed }

func (b *baseIndex) isRemoved(id int) bool { return b.tombstones.get(id) }

func (b *baseIndex) removePoint(op string, id int) error {
	if id < 0 || id >= b.dataset.Rows() {
		return invalidParamf(op, "point id %d out of range [0,%d)", id, b.dataset.Rows())
	}
	if b.tombstones.get(id) {
		return nil
	}
	b.tombstones.set(id)
	b.removed++
	b.stats.RecordRemove()
	return nil
}

// addPointsAndMaybeRebuild appends points to the dataset and invokes
// rebuild when the new size exceeds rebuildThreshold * originalSize, per
// spec §6 add_points. rebuild is supplied by the concrete index since
// only it knows how to reconstruct its own tree(s).
func (b *baseIndex) addPointsAndMaybeRebuild(op string, points [][]float64, rebuildThreshold float64, rebuild func() error) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if len(p) != b.dim() {
			return dimensionMismatchf(op, "point has %d dims, want %d", len(p), b.dim())
		}
	}
	for _, p := range points {
		if _, err := b.dataset.append(p); err != nil {
			return err
		}
	}
	b.stats.RecordInsert(len(points))
	b.tombstones.grow(b.dataset.Rows())
	if rebuildThreshold > 0 && float64(b.dataset.Rows()) > rebuildThreshold*float64(b.originalSize) {
		if err := rebuild(); err != nil {
			return err
		}
		b.originalSize = b.dataset.Rows()
		b.stats.RecordRebuild()
	}
	return nil
}

// usedMemory estimates bytes resident for the dataset plus the tombstone
// bitset; concrete indices add their own tree-structure estimate on top.
func (b *baseIndex) usedMemory() int64 {
	return b.dataset.bytes() + int64(len(b.tombstones.words)*8)
}
