// Package matrix implements the dense row-major embedding matrix and its
// product-quantized counterpart, plus the dot-product / row-accumulation
// primitives the inference engine builds on.
package matrix

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/screenager/fasttext/internal/binio"
	"github.com/screenager/fasttext/internal/ftfail"
)

// Dense is a row-major m*n float32 matrix. Out-of-range row/column access
// is an invariant violation, not a user error, and panics rather than
// returning an error.
type Dense struct {
	M, N int
	Data []float32
}

// NewDense allocates a zeroed m*n matrix.
func NewDense(m, n int) *Dense {
	return &Dense{M: m, N: n, Data: make([]float32, m*n)}
}

func (d *Dense) index(i, j int) int {
	if i < 0 || i >= d.M || j < 0 || j >= d.N {
		panic(fmt.Sprintf("matrix: index (%d,%d) out of bounds for %dx%d", i, j, d.M, d.N))
	}
	return i*d.N + j
}

// At returns element (i,j).
func (d *Dense) At(i, j int) float32 { return d.Data[d.index(i, j)] }

// Set assigns element (i,j).
func (d *Dense) Set(i, j int, v float32) { d.Data[d.index(i, j)] = v }

// Row returns row i as a slice sharing the matrix's backing array.
func (d *Dense) Row(i int) []float32 {
	if i < 0 || i >= d.M {
		panic(fmt.Sprintf("matrix: row %d out of bounds for %d rows", i, d.M))
	}
	return d.Data[i*d.N : (i+1)*d.N]
}

// DotRow returns the dot product of v with row i.
func (d *Dense) DotRow(v []float32, i int) float32 {
	row := d.Row(i)
	var sum float32
	for j, x := range row {
		sum += x * v[j]
	}
	return sum
}

// AddRow performs row i += a*v.
func (d *Dense) AddRow(v []float32, i int, a float32) {
	row := d.Row(i)
	for j := range row {
		row[j] += a * v[j]
	}
}

// MultiplyRow scales every row in [ib,ie) by a; ie < 0 means through the
// last row.
func (d *Dense) MultiplyRow(a float32, ib, ie int) {
	if ie < 0 {
		ie = d.M
	}
	for i := ib; i < ie; i++ {
		row := d.Row(i)
		for j := range row {
			row[j] *= a
		}
	}
}

// DivideRow scales every row in [ib,ie) by 1/a; ie < 0 means through the
// last row.
func (d *Dense) DivideRow(a float32, ib, ie int) {
	if ie < 0 {
		ie = d.M
	}
	for i := ib; i < ie; i++ {
		row := d.Row(i)
		for j := range row {
			row[j] /= a
		}
	}
}

// L2NormRow returns the Euclidean norm of row i.
func (d *Dense) L2NormRow(i int) float32 {
	row := d.Row(i)
	var sum float64
	for _, x := range row {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// Uniform fills the matrix with values drawn uniformly from [-bound,bound)
// using a PRNG seeded at 1, matching the trainer's deterministic
// initialization so re-running Uniform on a freshly allocated matrix is
// reproducible.
func (d *Dense) Uniform(bound float32) {
	rng := rand.New(rand.NewSource(1))
	for i := range d.Data {
		d.Data[i] = (rng.Float32()*2 - 1) * bound
	}
}

// ReadDense reads the native m:i64, n:i64, m*n x f32 layout.
func ReadDense(r *binio.Reader) (*Dense, error) {
	m, err := r.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("read matrix m: %w", err)
	}
	n, err := r.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("read matrix n: %w", err)
	}
	if m < 0 || n < 0 {
		return nil, fmt.Errorf("%w: negative matrix dims (%d,%d)", ftfail.ErrInvalidModel, m, n)
	}
	d := NewDense(int(m), int(n))
	for i := range d.Data {
		v, err := r.ReadFloat32()
		if err != nil {
			return nil, fmt.Errorf("read matrix data[%d]: %w", i, err)
		}
		d.Data[i] = v
	}
	return d, nil
}

// Write serializes the native m:i64, n:i64, m*n x f32 layout.
func (d *Dense) Write(w *binio.Writer) {
	w.WriteInt64(int64(d.M))
	w.WriteInt64(int64(d.N))
	for _, v := range d.Data {
		w.WriteFloat32(v)
	}
}
