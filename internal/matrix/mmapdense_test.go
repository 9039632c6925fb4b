package matrix

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/screenager/fasttext/internal/binio"
	"github.com/screenager/fasttext/internal/mmapfile"
)

func writeDenseFile(t *testing.T, d *Dense) string {
	t.Helper()
	var buf bytes.Buffer
	w := binio.NewWriter(&buf)
	d.Write(w)
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "dense.mmap")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMMapDenseMatchesDense(t *testing.T) {
	d := NewDense(3, 4)
	for i := range d.Data {
		d.Data[i] = float32(i) + 0.25
	}
	path := writeDenseFile(t, d)

	mm, err := mmapfile.Open(path, false)
	if err != nil {
		t.Fatal(err)
	}
	defer mm.Close()

	md, err := OpenMMapDense(mm)
	if err != nil {
		t.Fatal(err)
	}
	if md.M != 3 || md.N != 4 {
		t.Fatalf("dims = (%d,%d), want (3,4)", md.M, md.N)
	}
	if md.Rows() != 3 {
		t.Fatalf("Rows() = %d, want 3", md.Rows())
	}

	for i := int64(0); i < md.M; i++ {
		got := md.GetRow(i)
		want := d.Row(int(i))
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("row %d: got %v, want %v", i, got, want)
			}
		}
	}

	v := []float32{1, 1, 1, 1}
	wantDot := d.DotRow(v, 1)
	if got := md.DotRow(v, 1); got != wantDot {
		t.Fatalf("DotRow(row1) = %v, want %v", got, wantDot)
	}

	acc := make([]float32, 4)
	wantAcc := make([]float32, 4)
	d.AddRow(wantAcc, 2, 2.0)
	md.AddRow(acc, 2, 2.0)
	for j := range wantAcc {
		if acc[j] != wantAcc[j] {
			t.Fatalf("AddRow = %v, want %v", acc, wantAcc)
		}
	}
}
