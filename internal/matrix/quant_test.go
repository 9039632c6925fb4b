package matrix

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/screenager/fasttext/internal/binio"
)

// buildTestQMatrix constructs a 2-row, dim-4, dsub-2 (nsubq=2) quantized
// matrix with hand-placed centroids so DotRow/AddRow/GetRow's decoded
// values are known exactly.
func buildTestQMatrix(t *testing.T) *QMatrix {
	t.Helper()
	pq := NewProductQuantizer(4, 2)

	set := func(m int32, code byte, vals ...float32) {
		base := pq.centroidBase(m, code)
		for i, v := range vals {
			pq.Centroids[base+int64(i)] = v
		}
	}
	set(0, 0, 1, 2)
	set(0, 1, 10, 20)
	set(1, 0, 3, 4)
	set(1, 1, 30, 40)

	codes := []byte{0, 0, 1, 1} // row0: subq0=code0, subq1=code0; row1: code1,code1
	return &QMatrix{M: 2, N: 4, Codes: codes, Pq: pq, Qnorm: false}
}

func TestQMatrixDecode(t *testing.T) {
	q := buildTestQMatrix(t)

	row0 := q.GetRow(0)
	want0 := []float32{1, 2, 3, 4}
	for i := range want0 {
		if row0[i] != want0[i] {
			t.Fatalf("row0 = %v, want %v", row0, want0)
		}
	}

	row1 := q.GetRow(1)
	want1 := []float32{10, 20, 30, 40}
	for i := range want1 {
		if row1[i] != want1[i] {
			t.Fatalf("row1 = %v, want %v", row1, want1)
		}
	}

	if got := q.DotRow([]float32{1, 1, 1, 1}, 0); got != 10 {
		t.Fatalf("DotRow(ones, row0) = %v, want 10", got)
	}

	if q.Rows() != 2 {
		t.Fatalf("Rows() = %d, want 2", q.Rows())
	}
}

func TestQMatrixAddRowAccumulates(t *testing.T) {
	q := buildTestQMatrix(t)
	acc := make([]float32, 4)
	q.AddRow(acc, 0, 2.0)
	want := []float32{2, 4, 6, 8}
	for i := range want {
		if acc[i] != want[i] {
			t.Fatalf("acc = %v, want %v", acc, want)
		}
	}
}

func TestQMatrixWriteReadRoundTrip(t *testing.T) {
	q := buildTestQMatrix(t)

	var buf bytes.Buffer
	w := binio.NewWriter(&buf)
	q.Write(w)
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "qmatrix.bin")
	os.WriteFile(path, buf.Bytes(), 0o644)
	r, err := binio.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	got, err := ReadQMatrix(r)
	if err != nil {
		t.Fatal(err)
	}
	if got.M != q.M || got.N != q.N {
		t.Fatalf("dims = (%d,%d), want (%d,%d)", got.M, got.N, q.M, q.N)
	}
	row0 := got.GetRow(0)
	want0 := []float32{1, 2, 3, 4}
	for i := range want0 {
		if row0[i] != want0[i] {
			t.Fatalf("round-tripped row0 = %v, want %v", row0, want0)
		}
	}
}

func TestQMatrixQnormScalesRow(t *testing.T) {
	q := buildTestQMatrix(t)
	q.Qnorm = true
	q.NormCodes = []byte{0, 0}
	npq := NewProductQuantizer(1, 1)
	base := npq.centroidBase(0, 0)
	npq.Centroids[base] = 2.0
	q.Npq = npq

	row0 := q.GetRow(0)
	want0 := []float32{2, 4, 6, 8}
	for i := range want0 {
		if row0[i] != want0[i] {
			t.Fatalf("qnorm-scaled row0 = %v, want %v", row0, want0)
		}
	}
}
