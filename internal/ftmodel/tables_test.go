package ftmodel

import (
	"math"
	"testing"

	"github.com/screenager/fasttext/internal/ftargs"
	"github.com/screenager/fasttext/internal/matrix"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	in := matrix.NewDense(3, 2)
	out := matrix.NewDense(3, 2)
	return New(NewDenseRows(in), NewDenseRows(out), ftargs.LossSoftmax, []int64{3, 2, 1})
}

func TestTableSizeMatchesDocumentedEntryCount(t *testing.T) {
	if got := len(buildSigmoidTable()); got != 513 {
		t.Fatalf("sigmoid table has %d entries, want 513", got)
	}
	if got := len(buildLogTable()); got != 513 {
		t.Fatalf("log table has %d entries, want 513", got)
	}
}

func TestSigmoidSaturatesAtBounds(t *testing.T) {
	m := newTestModel(t)
	if got := m.sigmoid(-100); got != 0 {
		t.Fatalf("sigmoid(-100) = %v, want 0", got)
	}
	if got := m.sigmoid(100); got != 1 {
		t.Fatalf("sigmoid(100) = %v, want 1", got)
	}
	if got := m.sigmoid(0); got < 0.49 || got > 0.51 {
		t.Fatalf("sigmoid(0) = %v, want ~0.5", got)
	}
}

func TestLogClampsAboveOne(t *testing.T) {
	m := newTestModel(t)
	if got := m.log(1.0); got != 0 {
		t.Fatalf("log(1.0) = %v, want 0", got)
	}
	if got := m.log(2.0); got != 0 {
		t.Fatalf("log(2.0) = %v, want 0", got)
	}
	got := m.log(0.5)
	want := float32(math.Log(0.5))
	if math.Abs(float64(got-want)) > 0.05 {
		t.Fatalf("log(0.5) = %v, want ~%v", got, want)
	}
}
