package matrix

import (
	"fmt"

	"github.com/screenager/fasttext/internal/binio"
	"github.com/screenager/fasttext/internal/ftfail"
)

// KSUB is the number of centroids per sub-quantizer: codes are single
// bytes, so 8-bit centroid indices.
const KSUB = 256

// ProductQuantizer holds the sub-quantizer layout and centroid table for
// one quantized matrix (input, output, or the 1-dimensional per-row norm
// quantizer used when qnorm is set).
type ProductQuantizer struct {
	Dim      int32
	Nsubq    int32
	Dsub     int32
	Lastdsub int32
	Centroids []float32 // length Dim * KSUB
}

// NewProductQuantizer computes the nsubq/lastdsub layout for dim and dsub:
// nsubq = ceil(dim/dsub); if dim%dsub==0 lastdsub=dsub, otherwise
// lastdsub = dim%dsub and nsubq already accounts for the short tail
// subquantizer.
func NewProductQuantizer(dim, dsub int32) *ProductQuantizer {
	nsubq := dim / dsub
	lastdsub := dsub
	if dim%dsub != 0 {
		nsubq++
		lastdsub = dim % dsub
	}
	return &ProductQuantizer{
		Dim:       dim,
		Nsubq:     nsubq,
		Dsub:      dsub,
		Lastdsub:  lastdsub,
		Centroids: make([]float32, int64(dim)*KSUB),
	}
}

// centroidBase returns the offset into Centroids of subquantizer m's code i.
func (pq *ProductQuantizer) centroidBase(m int32, code byte) int64 {
	if m == pq.Nsubq-1 {
		return int64(m)*KSUB*int64(pq.Dsub) + int64(code)*int64(pq.Lastdsub)
	}
	return (int64(m)*KSUB + int64(code)) * int64(pq.Dsub)
}

func (pq *ProductQuantizer) dsubFor(m int32) int32 {
	if m == pq.Nsubq-1 {
		return pq.Lastdsub
	}
	return pq.Dsub
}

// Centroid returns the scalar value of a 1-dimensional quantizer's
// centroid `code` (used for per-row norm lookups when qnorm is set).
func (pq *ProductQuantizer) Centroid(code byte) float32 {
	return pq.Centroids[pq.centroidBase(0, code)]
}

// DotCode computes the dot product of x (length Dim) against the encoded
// row whose Nsubq codes start at codes[rowStart:], scaled by alpha.
func (pq *ProductQuantizer) DotCode(x []float32, codes []byte, rowStart int, alpha float32) float32 {
	var res float32
	xOff := 0
	for m := int32(0); m < pq.Nsubq; m++ {
		d := pq.dsubFor(m)
		base := pq.centroidBase(m, codes[rowStart+int(m)])
		for n := int32(0); n < d; n++ {
			res += x[int(xOff)+int(n)] * pq.Centroids[base+int64(n)]
		}
		xOff += int(d)
	}
	return res * alpha
}

// AddCode accumulates alpha * decode(row) into x.
func (pq *ProductQuantizer) AddCode(x []float32, codes []byte, rowStart int, alpha float32) {
	xOff := 0
	for m := int32(0); m < pq.Nsubq; m++ {
		d := pq.dsubFor(m)
		base := pq.centroidBase(m, codes[rowStart+int(m)])
		for n := int32(0); n < d; n++ {
			x[xOff+int(n)] += alpha * pq.Centroids[base+int64(n)]
		}
		xOff += int(d)
	}
}

func readProductQuantizer(r *binio.Reader) (*ProductQuantizer, error) {
	pq := &ProductQuantizer{}
	var err error
	if pq.Dim, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("read pq.dim: %w", err)
	}
	if pq.Nsubq, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("read pq.nsubq: %w", err)
	}
	if pq.Dsub, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("read pq.dsub: %w", err)
	}
	if pq.Lastdsub, err = r.ReadInt32(); err != nil {
		return nil, fmt.Errorf("read pq.lastdsub: %w", err)
	}
	n := int64(pq.Dim) * KSUB
	pq.Centroids = make([]float32, n)
	for i := range pq.Centroids {
		if pq.Centroids[i], err = r.ReadFloat32(); err != nil {
			return nil, fmt.Errorf("read pq.centroids[%d]: %w", i, err)
		}
	}
	return pq, nil
}

func (pq *ProductQuantizer) write(w *binio.Writer) {
	w.WriteInt32(pq.Dim)
	w.WriteInt32(pq.Nsubq)
	w.WriteInt32(pq.Dsub)
	w.WriteInt32(pq.Lastdsub)
	for _, v := range pq.Centroids {
		w.WriteFloat32(v)
	}
}

// QMatrix is a row matrix compressed by product quantization: each row is
// Pq.Nsubq bytes indexing the shared centroid table, plus (when Qnorm) one
// extra byte per row indexing a 1-dimensional norm quantizer so that
// vectors can be reconstructed at their original scale.
type QMatrix struct {
	M, N      int64
	Codes     []byte
	Pq        *ProductQuantizer
	Qnorm     bool
	NormCodes []byte
	Npq       *ProductQuantizer
}

// alpha returns the per-row scale factor: 1.0 unless Qnorm, in which case
// it is the decoded norm for row i.
func (q *QMatrix) alpha(i int64) float32 {
	if !q.Qnorm {
		return 1.0
	}
	return q.Npq.Centroid(q.NormCodes[i])
}

// DotRow returns the dot product of v with row i's decoded vector.
func (q *QMatrix) DotRow(v []float32, i int64) float32 {
	rowStart := int(i * int64(q.Pq.Nsubq))
	return q.Pq.DotCode(v, q.Codes, rowStart, q.alpha(i))
}

// AddRow accumulates a * decode(row i) into x.
func (q *QMatrix) AddRow(x []float32, i int64, a float32) {
	rowStart := int(i * int64(q.Pq.Nsubq))
	q.Pq.AddCode(x, q.Codes, rowStart, a*q.alpha(i))
}

// GetRow materializes row i as a dense vector.
func (q *QMatrix) GetRow(i int64) []float32 {
	out := make([]float32, q.N)
	q.AddRow(out, i, 1.0)
	return out
}

// Rows returns the row count, satisfying the shared RowMatrix contract the
// inference engine uses to treat dense and quantized matrices uniformly.
func (q *QMatrix) Rows() int64 { return q.M }

// ReadQMatrix parses the QMatrix serialisation.
func ReadQMatrix(r *binio.Reader) (*QMatrix, error) {
	qnorm, err := r.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("read qmatrix.qnorm: %w", err)
	}
	m, err := r.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("read qmatrix.m: %w", err)
	}
	n, err := r.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("read qmatrix.n: %w", err)
	}
	codeSize, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("read qmatrix.codesize: %w", err)
	}
	if codeSize < 0 {
		return nil, fmt.Errorf("%w: negative qmatrix code size %d", ftfail.ErrInvalidModel, codeSize)
	}
	codes, err := r.ReadBytes(int(codeSize))
	if err != nil {
		return nil, fmt.Errorf("read qmatrix.codes: %w", err)
	}
	pq, err := readProductQuantizer(r)
	if err != nil {
		return nil, err
	}

	q := &QMatrix{M: m, N: n, Codes: codes, Pq: pq, Qnorm: qnorm}
	if qnorm {
		normCodes, err := r.ReadBytes(int(m))
		if err != nil {
			return nil, fmt.Errorf("read qmatrix.normcodes: %w", err)
		}
		npq, err := readProductQuantizer(r)
		if err != nil {
			return nil, err
		}
		q.NormCodes = normCodes
		q.Npq = npq
	}
	return q, nil
}

// Write serialises the QMatrix layout.
func (q *QMatrix) Write(w *binio.Writer) {
	w.WriteBool(q.Qnorm)
	w.WriteInt64(q.M)
	w.WriteInt64(q.N)
	w.WriteInt32(int32(len(q.Codes)))
	w.WriteBytes(q.Codes)
	q.Pq.write(w)
	if q.Qnorm {
		w.WriteBytes(q.NormCodes)
		q.Npq.write(w)
	}
}
