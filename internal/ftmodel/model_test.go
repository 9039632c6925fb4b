package ftmodel

import (
	"testing"

	"github.com/screenager/fasttext/internal/ftargs"
	"github.com/screenager/fasttext/internal/matrix"
)

func buildSoftmaxModel(t *testing.T) *Model {
	t.Helper()
	in := matrix.NewDense(2, 2)
	in.Set(0, 0, 1)
	in.Set(0, 1, 0)
	in.Set(1, 0, 0)
	in.Set(1, 1, 1)

	out := matrix.NewDense(3, 2)
	out.Set(0, 0, 5) // strongly favoured by hidden=[1,0]
	out.Set(0, 1, 0)
	out.Set(1, 0, 0)
	out.Set(1, 1, 0)
	out.Set(2, 0, 0)
	out.Set(2, 1, 0)

	return New(NewDenseRows(in), NewDenseRows(out), ftargs.LossSoftmax, []int64{10, 5, 1})
}

func TestPredictSoftmaxRanksHighestLogitFirst(t *testing.T) {
	m := buildSoftmaxModel(t)
	preds, err := m.Predict([]int32{0}, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != 3 {
		t.Fatalf("len(preds) = %d, want 3", len(preds))
	}
	if preds[0].ID != 0 {
		t.Fatalf("top prediction id = %d, want 0", preds[0].ID)
	}
	for i := 1; i < len(preds); i++ {
		if preds[i-1].Score < preds[i].Score {
			t.Fatalf("predictions not in descending score order: %v", preds)
		}
	}
}

func TestPredictEmptyLineReturnsNoResults(t *testing.T) {
	m := buildSoftmaxModel(t)
	preds, err := m.Predict(nil, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if preds != nil {
		t.Fatalf("expected nil predictions for empty line, got %v", preds)
	}
}

func TestPredictRejectsNonPositiveK(t *testing.T) {
	m := buildSoftmaxModel(t)
	if _, err := m.Predict([]int32{0}, 0, 0); err == nil {
		t.Fatal("expected error for k=0")
	}
}

func TestPredictThresholdFiltersLowProbability(t *testing.T) {
	m := buildSoftmaxModel(t)
	preds, err := m.Predict([]int32{0}, 3, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range preds {
		if p.ID != 0 {
			t.Fatalf("threshold=0.9 should only keep the dominant class, also got id %d", p.ID)
		}
	}
}

func TestPredictHierarchicalSoftmax(t *testing.T) {
	in := matrix.NewDense(2, 2)
	in.Set(0, 0, 1)
	in.Set(0, 1, 1)

	out := matrix.NewDense(3, 2) // HS output matrix has osz-1 = 2 internal rows
	out.Set(0, 0, 1)
	out.Set(0, 1, 1)
	out.Set(1, 0, -1)
	out.Set(1, 1, -1)

	m := New(NewDenseRows(in), NewDenseRows(out), ftargs.LossHS, []int64{5, 3, 1})
	preds, err := m.Predict([]int32{0}, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) == 0 {
		t.Fatal("expected at least one prediction from the hierarchical softmax head")
	}
	for i := 1; i < len(preds); i++ {
		if preds[i-1].Score < preds[i].Score {
			t.Fatalf("predictions not in descending score order: %v", preds)
		}
	}
}

func TestComputeHiddenAveragesInputRows(t *testing.T) {
	in := matrix.NewDense(2, 2)
	in.Set(0, 0, 2)
	in.Set(0, 1, 4)
	in.Set(1, 0, 0)
	in.Set(1, 1, 2)
	out := matrix.NewDense(2, 2)
	m := New(NewDenseRows(in), NewDenseRows(out), ftargs.LossSoftmax, []int64{2, 1})

	m.ComputeHidden([]int32{0, 1})
	hidden := m.Hidden()
	want := []float32{1, 3}
	for i := range want {
		if hidden[i] != want[i] {
			t.Fatalf("hidden = %v, want %v", hidden, want)
		}
	}
}

func TestCloneSharesHuffmanTreeAndNegTable(t *testing.T) {
	in := matrix.NewDense(2, 2)
	out := matrix.NewDense(3, 2)
	hs := New(NewDenseRows(in), NewDenseRows(out), ftargs.LossHS, []int64{5, 3, 1})
	hsClone := hs.Clone()
	if hsClone.huffman != hs.huffman {
		t.Error("Clone rebuilt the Huffman tree instead of sharing it")
	}

	ns := New(NewDenseRows(in), NewDenseRows(out), ftargs.LossNS, []int64{5, 3, 1})
	nsClone := ns.Clone()
	if &nsClone.negTable[0] != &ns.negTable[0] {
		t.Error("Clone rebuilt the negative-sampling table instead of sharing it")
	}

	// hidden/grad must still be independent scratch buffers.
	nsClone.ComputeHidden([]int32{0})
	for i := range ns.hidden {
		if ns.hidden[i] != 0 {
			t.Fatalf("cloned ComputeHidden wrote through to the original's hidden vector: %v", ns.hidden)
		}
	}
}
