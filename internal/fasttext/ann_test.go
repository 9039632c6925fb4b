package fasttext

import (
	"path/filepath"
	"testing"
)

func TestNNApproxAgreesWithExactOnSmallVocabulary(t *testing.T) {
	p := newUnsupervisedPredictor(t)
	exact, err := p.NN("king", 2)
	if err != nil {
		t.Fatal(err)
	}
	approx, err := p.NNApprox("king", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(approx) == 0 {
		t.Fatal("expected at least one approximate neighbour")
	}
	if approx[0].Word != exact[0].Word {
		t.Fatalf("NNApprox top result = %q, want %q (exact top)", approx[0].Word, exact[0].Word)
	}
}

func TestNNApproxExcludesQueryWord(t *testing.T) {
	p := newUnsupervisedPredictor(t)
	results, err := p.NNApprox("king", 4)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Word == "king" {
			t.Fatalf("NNApprox(king) should exclude the query word, got %v", results)
		}
	}
}

func TestAnalogiesApproxExcludesQueryTriple(t *testing.T) {
	p := newUnsupervisedPredictor(t)
	results, err := p.AnalogiesApprox("man", "king", "woman", 4)
	if err != nil {
		t.Fatal(err)
	}
	banned := map[string]bool{"man": true, "king": true, "woman": true}
	for _, r := range results {
		if banned[r.Word] {
			t.Fatalf("AnalogiesApprox result %q should have been excluded: %v", r.Word, results)
		}
	}
}

func TestANNCachePersistsAcrossInstances(t *testing.T) {
	p := newUnsupervisedPredictor(t)
	dir := t.TempDir()
	p.SetANNCachePath(dir)
	if _, err := p.NNApprox("king", 2); err != nil {
		t.Fatal(err)
	}

	cachePath := filepath.Join(dir, "ann.widx")
	q := newUnsupervisedPredictor(t)
	q.SetANNCachePath(dir)
	if err := q.ensureANN(); err != nil {
		t.Fatal(err)
	}
	if q.ann.Len() == 0 {
		t.Fatalf("expected the graph loaded from %s to be non-empty", cachePath)
	}
}
