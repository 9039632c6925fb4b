package fasttext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/screenager/fasttext/internal/dictionary"
	"github.com/screenager/fasttext/internal/ftargs"
	"github.com/screenager/fasttext/internal/ftmodel"
	"github.com/screenager/fasttext/internal/matrix"
)

// newSupervisedPredictor builds a tiny in-memory classifier handle: two
// vocabulary words, two labels, a hand-placed input matrix so GetWordVector
// is predictable, and a softmax output head that strongly favours label 0
// whenever "good" appears.
func newSupervisedPredictor(t *testing.T) *Predictor {
	t.Helper()
	args := ftargs.New()
	args.Model = ftargs.ModelSUP
	args.Loss = ftargs.LossSoftmax
	args.Maxn = 0
	args.Dim = 2

	words := []dictionary.Entry{
		{Word: dictionary.EOS, Count: 10, Type: dictionary.Word},
		{Word: "good", Count: 5, Type: dictionary.Word},
		{Word: "bad", Count: 5, Type: dictionary.Word},
		{Word: "__label__pos", Count: 5, Type: dictionary.Label},
		{Word: "__label__neg", Count: 5, Type: dictionary.Label},
	}
	dict := dictionary.NewInMemory(args, words, 20)

	in := matrix.NewDense(len(words), 2)
	in.Set(1, 0, 1) // "good" row
	in.Set(1, 1, 0)
	in.Set(2, 0, 0) // "bad" row
	in.Set(2, 1, 1)

	out := matrix.NewDense(2, 2) // 2 labels
	out.Set(0, 0, 5)             // label pos favoured by hidden leaning toward "good"
	out.Set(0, 1, 0)
	out.Set(1, 0, 0)
	out.Set(1, 1, 5)

	p := &Predictor{
		args:        args,
		version:     12,
		dict:        dict,
		inMemDict:   dict,
		inMemInput:  in,
		inMemOutput: out,
	}
	p.model = ftmodel.New(p.inputRowMatrix(), p.outputRowMatrix(), args.Loss, p.classCounts())
	return p
}

// newUnsupervisedPredictor builds a tiny skipgram-shaped handle (no
// subwords) for GetWordVector/NN/Analogies coverage.
func newUnsupervisedPredictor(t *testing.T) *Predictor {
	t.Helper()
	args := ftargs.New()
	args.Model = ftargs.ModelSG
	args.Loss = ftargs.LossSoftmax
	args.Maxn = 0
	args.Dim = 2

	words := []dictionary.Entry{
		{Word: dictionary.EOS, Count: 10, Type: dictionary.Word},
		{Word: "king", Count: 5, Type: dictionary.Word},
		{Word: "queen", Count: 5, Type: dictionary.Word},
		{Word: "man", Count: 5, Type: dictionary.Word},
		{Word: "woman", Count: 5, Type: dictionary.Word},
	}
	dict := dictionary.NewInMemory(args, words, 20)

	in := matrix.NewDense(len(words), 2)
	in.Set(1, 0, 1) // king
	in.Set(1, 1, 1)
	in.Set(2, 0, 1) // queen
	in.Set(2, 1, 0.9)
	in.Set(3, 0, 1) // man
	in.Set(3, 1, 0.1)
	in.Set(4, 0, 1) // woman
	in.Set(4, 1, 0)

	out := matrix.NewDense(len(words), 2)

	p := &Predictor{
		args:        args,
		version:     12,
		dict:        dict,
		inMemDict:   dict,
		inMemInput:  in,
		inMemOutput: out,
	}
	p.model = ftmodel.New(p.inputRowMatrix(), p.outputRowMatrix(), args.Loss, p.classCounts())
	return p
}

func TestPredictReturnsFavouredLabel(t *testing.T) {
	p := newSupervisedPredictor(t)
	scores, err := p.Predict("good", 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != 1 || scores[0].Word != "__label__pos" {
		t.Fatalf("Predict(\"good\") = %v, want [__label__pos]", scores)
	}
}

func TestPredictOnClosedHandleErrors(t *testing.T) {
	p := newSupervisedPredictor(t)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Predict("good", 1, 0); err == nil {
		t.Fatal("expected error after Close")
	}
	// A second Close is a no-op.
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() = %v, want nil", err)
	}
}

func TestGetWordVectorInVocabulary(t *testing.T) {
	p := newUnsupervisedPredictor(t)
	vec, err := p.GetWordVector("king")
	if err != nil {
		t.Fatal(err)
	}
	if vec[0] != 1 || vec[1] != 1 {
		t.Fatalf("GetWordVector(king) = %v, want [1 1]", vec)
	}
}

func TestGetWordVectorOutOfVocabularyIsZero(t *testing.T) {
	p := newUnsupervisedPredictor(t)
	vec, err := p.GetWordVector("unknownword")
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range vec {
		if x != 0 {
			t.Fatalf("OOV word with subwords disabled should vectorise to zero, got %v", vec)
		}
	}
}

func TestNNExcludesQueryWord(t *testing.T) {
	p := newUnsupervisedPredictor(t)
	results, err := p.NN("king", 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Word == "king" {
			t.Fatalf("NN(king) should exclude the query word, got %v", results)
		}
	}
	if len(results) == 0 {
		t.Fatal("expected at least one neighbour")
	}
	// queen is closer to king (cosine) than man/woman given the hand-placed
	// vectors, so it should rank first.
	if results[0].Word != "queen" {
		t.Fatalf("top neighbour = %q, want queen: %v", results[0].Word, results)
	}
}

func TestAnalogiesExcludesQueryTriple(t *testing.T) {
	p := newUnsupervisedPredictor(t)
	results, err := p.Analogies("man", "king", "woman", 4)
	if err != nil {
		t.Fatal(err)
	}
	banned := map[string]bool{"man": true, "king": true, "woman": true}
	for _, r := range results {
		if banned[r.Word] {
			t.Fatalf("Analogies result %q should have been excluded: %v", r.Word, results)
		}
	}
}

func TestSaveAndLoadModelRoundTrip(t *testing.T) {
	p := newSupervisedPredictor(t)
	path := filepath.Join(t.TempDir(), "model.bin")
	if err := p.SaveModel(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadModel(path)
	if err != nil {
		t.Fatal(err)
	}
	defer loaded.Close()

	if loaded.args.Dim != p.args.Dim || loaded.args.Model != p.args.Model {
		t.Fatalf("loaded args = %+v, want dim/model matching %+v", loaded.args, p.args)
	}

	origScores, err := p.Predict("good", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	loadedScores, err := loaded.Predict("good", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(origScores) != len(loadedScores) {
		t.Fatalf("score count mismatch: %v vs %v", origScores, loadedScores)
	}
	for i := range origScores {
		if origScores[i].Word != loadedScores[i].Word {
			t.Fatalf("label[%d] = %q, want %q", i, loadedScores[i].Word, origScores[i].Word)
		}
		if diff := origScores[i].Score - loadedScores[i].Score; diff > 1e-5 || diff < -1e-5 {
			t.Fatalf("score[%d] = %v, want ~%v", i, loadedScores[i].Score, origScores[i].Score)
		}
	}
}

func TestSaveModelRejectsMemoryMappedHandle(t *testing.T) {
	p := newSupervisedPredictor(t)
	p.inMemDict = nil
	if err := p.SaveModel(filepath.Join(t.TempDir(), "x.bin")); err == nil {
		t.Fatal("expected error saving a handle with no in-memory dictionary")
	}
}

func TestSaveAsMemoryMappedModelThenOpen(t *testing.T) {
	p := newUnsupervisedPredictor(t)
	dir := t.TempDir()
	if err := p.SaveAsMemoryMappedModel(dir); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"model.bin", "dict.mmap", "in.mmap"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}

	mm, err := OpenMemoryMapped(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer mm.Close()

	vec, err := mm.GetWordVector("king")
	if err != nil {
		t.Fatal(err)
	}
	if vec[0] != 1 || vec[1] != 1 {
		t.Fatalf("mmap GetWordVector(king) = %v, want [1 1]", vec)
	}

	if err := mm.SaveModel(filepath.Join(dir, "reexport.bin")); err == nil {
		t.Fatal("expected error re-saving a memory-mapped handle")
	}
}

func TestCloneIsIndependentHandle(t *testing.T) {
	p := newSupervisedPredictor(t)
	clone, err := p.Clone()
	if err != nil {
		t.Fatal(err)
	}
	if err := clone.Close(); err != nil {
		t.Fatal(err)
	}
	// The original handle must still be usable after the clone is closed.
	if _, err := p.Predict("good", 1, 0); err != nil {
		t.Fatalf("original handle broken after clone close: %v", err)
	}
}

func TestGetSentenceVectorSupervisedUsesRawAverage(t *testing.T) {
	p := newSupervisedPredictor(t)
	vec, err := p.GetSentenceVector("good bad")
	if err != nil {
		t.Fatal(err)
	}
	want, err := p.TextVector("good bad")
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if vec[i] != want[i] {
			t.Fatalf("supervised GetSentenceVector = %v, want TextVector result %v", vec, want)
		}
	}
}
