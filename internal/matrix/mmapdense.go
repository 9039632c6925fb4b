package matrix

import "github.com/screenager/fasttext/internal/mmapfile"

// MMapDense is the memory-mapped variant of a dense row matrix: a header
// of `m:i64, n:i64` followed by `m*n` float32 values, read back
// row-by-row via random-access offset reads rather than ever being copied
// onto the heap. Element (i,j) lives at byte offset 16 + (i*n+j)*4 — the
// 16-byte header (two int64 fields) plus the row-major float32 payload.
type MMapDense struct {
	mm      *mmapfile.File
	M, N    int64
	dataOff int64
}

// OpenMMapDense reads the m,n header from mm (cursor must be at offset 0)
// and returns a row accessor over the remaining mapped region.
func OpenMMapDense(mm *mmapfile.File) (*MMapDense, error) {
	m, err := mm.ReadInt64()
	if err != nil {
		return nil, err
	}
	n, err := mm.ReadInt64()
	if err != nil {
		return nil, err
	}
	return &MMapDense{mm: mm, M: m, N: n, dataOff: 16}, nil
}

func (d *MMapDense) offset(i, j int64) int64 { return d.dataOff + (i*d.N+j)*4 }

func (d *MMapDense) readAt(off int64) float32 {
	x, err := d.mm.ReadFloat32At(off)
	if err != nil {
		panic(err)
	}
	return x
}

// DotRow returns the dot product of v with row i. A read error (a
// truncated or corrupt mapping) is an invariant violation, not a user
// error, and panics rather than silently treating the row as zero,
// matching Dense's own out-of-range stance.
func (d *MMapDense) DotRow(v []float32, i int64) float32 {
	var sum float32
	for j := int64(0); j < d.N; j++ {
		sum += d.readAt(d.offset(i, j)) * v[j]
	}
	return sum
}

// AddRow accumulates a*row(i) into v.
func (d *MMapDense) AddRow(v []float32, i int64, a float32) {
	for j := int64(0); j < d.N; j++ {
		v[j] += a * d.readAt(d.offset(i, j))
	}
}

// GetRow materializes row i.
func (d *MMapDense) GetRow(i int64) []float32 {
	out := make([]float32, d.N)
	for j := int64(0); j < d.N; j++ {
		out[j] = d.readAt(d.offset(i, j))
	}
	return out
}

// Rows returns the row count.
func (d *MMapDense) Rows() int64 { return d.M }
