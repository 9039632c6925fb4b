package ftmodel

import "github.com/screenager/fasttext/internal/matrix"

// denseRows adapts *matrix.Dense's int-indexed row operations to the
// int64-indexed RowMatrix contract, so the inference engine can treat a
// dense matrix and a QMatrix (which is already int64-indexed, built for
// row counts beyond 32-bit range) identically.
type denseRows struct{ d *matrix.Dense }

// NewDenseRows wraps d as a RowMatrix.
func NewDenseRows(d *matrix.Dense) RowMatrix { return denseRows{d: d} }

func (r denseRows) DotRow(v []float32, i int64) float32 { return r.d.DotRow(v, int(i)) }
func (r denseRows) AddRow(v []float32, i int64, a float32) { r.d.AddRow(v, int(i), a) }
func (r denseRows) GetRow(i int64) []float32 {
	row := r.d.Row(int(i))
	out := make([]float32, len(row))
	copy(out, row)
	return out
}
func (r denseRows) Rows() int64 { return int64(r.d.M) }

var _ RowMatrix = (*matrix.QMatrix)(nil)
