package flann

// Dataset is a row-major matrix view over the reference points an index is
// built from, per spec §3. Row i is point id i; all rows share Cols
// entries. A Dataset is either a non-owning view over caller-supplied data
// (NewDatasetView) or a self-allocated copy (NewDataset) that an index may
// own and release with itself.
type Dataset struct {
	data  []float64
	rows  int
	cols  int
	owned bool
}

// NewDataset copies rows into a self-owned Dataset. rows[i] must all have
// the same length; that length becomes Cols.
func NewDataset(rows [][]float64) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, invalidParamf("NewDataset", "dataset must have at least one row")
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, invalidParamf("NewDataset", "rows must have at least one column")
	}
	flat := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, dimensionMismatchf("NewDataset", "row %d has %d columns, want %d", i, len(r), cols)
		}
		flat = append(flat, r...)
	}
	return &Dataset{data: flat, rows: len(rows), cols: cols, owned: true}, nil
}

// NewDatasetView wraps a caller-owned, row-major flat buffer without
// copying it. The caller must not mutate it for the lifetime of any index
// built over it.
func NewDatasetView(flat []float64, rows, cols int) (*Dataset, error) {
	if rows <= 0 || cols <= 0 {
		return nil, invalidParamf("NewDatasetView", "rows and cols must be positive, got rows=%d cols=%d", rows, cols)
	}
	if len(flat) != rows*cols {
		return nil, dimensionMismatchf("NewDatasetView", "buffer has %d elements, want %d (rows*cols)", len(flat), rows*cols)
	}
	return &Dataset{data: flat, rows: rows, cols: cols, owned: false}, nil
}

// Rows returns the number of points in the dataset.
func (d *Dataset) Rows() int { return d.rows }

// Cols returns the fixed dimensionality D of the dataset.
func (d *Dataset) Cols() int { return d.cols }

// Row returns a slice view of row i's Cols coordinates. The slice aliases
// the dataset's backing array; callers must not retain it past a mutation
// of an owned dataset (add/remove).
func (d *Dataset) Row(i int) []float64 {
	off := i * d.cols
	return d.data[off : off+d.cols]
}

// Owned reports whether the dataset allocated (and therefore owns) its
// backing storage.
func (d *Dataset) Owned() bool { return d.owned }

// append grows an owned dataset by one row, returning its new row index.
// It is a no-op error for non-owned (view) datasets since the caller's
// buffer cannot be safely resized in place.
func (d *Dataset) append(row []float64) (int, error) {
	if !d.owned {
		return 0, invalidParamf("AddPoints", "cannot extend a non-owned dataset view")
	}
	if len(row) != d.cols {
		return 0, dimensionMismatchf("AddPoints", "row has %d columns, want %d", len(row), d.cols)
	}
	d.data = append(d.data, row...)
	d.rows++
	return d.rows - 1, nil
}

// bytes estimates the dataset's resident memory footprint in bytes, used
// by the autotuner's memory_weight cost term (spec §4.7 step 5).
func (d *Dataset) bytes() int64 {
	return int64(len(d.data)) * 8
}
