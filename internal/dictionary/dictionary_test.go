package dictionary

import (
	"math/rand"
	"testing"

	"github.com/screenager/fasttext/internal/ftargs"
)

func TestTokenizeAppendsEOS(t *testing.T) {
	toks := Tokenize("hello world")
	want := []string{"hello", "world", EOS}
	if len(toks) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", toks, want)
	}
	for i := range want {
		if toks[i] != want[i] {
			t.Fatalf("Tokenize[%d] = %q, want %q", i, toks[i], want[i])
		}
	}
}

func TestTokenizeCollapsesWhitespaceRuns(t *testing.T) {
	toks := Tokenize("  a\t\tb  ")
	want := []string{"a", "b", EOS}
	if len(toks) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", toks, want)
	}
}

func TestFnv1a32KnownHash(t *testing.T) {
	// FNV-1a32 of the empty string is always the seed.
	if got := Fnv1a32(""); got != 0x811C9DC5 {
		t.Fatalf("Fnv1a32(\"\") = %#x, want %#x", got, 0x811C9DC5)
	}
}

func TestComputeCharNgramsSkipsBoundaryUnigram(t *testing.T) {
	ngrams := NgramStrings("ab", 1, 3)
	for _, g := range ngrams {
		if g == "<" || g == ">" {
			t.Fatalf("boundary-only unigram %q should be skipped", g)
		}
	}
	// "<ab>" of length 4 padded; with minn=1 maxn=3, expect multiple n-grams
	// but none of them equal to the full padded string (maxn=3 < len 4).
	for _, g := range ngrams {
		if g == "<ab>" {
			t.Fatal("maxn=3 should not emit the length-4 padded whole word")
		}
	}
}

func TestComputeCharNgramsRespectsMaxnZero(t *testing.T) {
	sw := computeCharNgrams("hello", 3, 0, 1000, &pruneIndex{size: -1}, 10)
	if sw != nil {
		t.Fatalf("maxn=0 should disable subwords, got %v", sw)
	}
}

func TestCharNgramIDsMatchesNgramStringsHash(t *testing.T) {
	ngrams, ids := CharNgramIDs("cat", 1, 3, 2_000_000, 5)
	if len(ngrams) != len(ids) {
		t.Fatalf("mismatched lengths: %d ngrams, %d ids", len(ngrams), len(ids))
	}
	for i, g := range ngrams {
		want := int32(5) + int32(Fnv1a32(g)%2_000_000)
		if ids[i] != want {
			t.Fatalf("id[%d] = %d, want %d for ngram %q", i, ids[i], want, g)
		}
	}
}

func newTestArgs() ftargs.Args {
	a := ftargs.New()
	a.Minn, a.Maxn = 1, 3
	a.Bucket = 1000
	a.WordNgrams = 1
	return a
}

func TestInMemoryGetIDAndContains(t *testing.T) {
	args := newTestArgs()
	words := []Entry{
		{Word: EOS, Count: 100, Type: Word},
		{Word: "cat", Count: 10, Type: Word},
		{Word: "dog", Count: 8, Type: Word},
		{Word: "__label__pos", Count: 5, Type: Label},
	}
	d := NewInMemory(args, words, 123)

	if id := d.GetID("cat"); id == -1 {
		t.Fatal("expected cat to be found")
	}
	if !d.Contains("dog") {
		t.Fatal("expected dog to be in vocabulary")
	}
	if d.Contains("elephant") {
		t.Fatal("elephant should not be in vocabulary")
	}
	if d.NWords() != 3 {
		t.Fatalf("NWords() = %d, want 3", d.NWords())
	}
	if d.NLabels() != 1 {
		t.Fatalf("NLabels() = %d, want 1", d.NLabels())
	}
}

func TestInMemoryGetWordAndLabel(t *testing.T) {
	args := newTestArgs()
	words := []Entry{
		{Word: "a", Count: 1, Type: Word},
		{Word: "__label__x", Count: 1, Type: Label},
	}
	d := NewInMemory(args, words, 2)

	word, err := d.GetWord(0)
	if err != nil || word != "a" {
		t.Fatalf("GetWord(0) = %q, %v", word, err)
	}
	label, err := d.GetLabel(0)
	if err != nil || label != "__label__x" {
		t.Fatalf("GetLabel(0) = %q, %v", label, err)
	}
	if _, err := d.GetWord(99); err == nil {
		t.Fatal("expected error for out-of-range id")
	}
}

func TestInMemorySubwordsIncludeSelfID(t *testing.T) {
	args := newTestArgs()
	words := []Entry{{Word: "cat", Count: 1, Type: Word}}
	d := NewInMemory(args, words, 1)

	sw, err := d.GetSubwords("cat")
	if err != nil {
		t.Fatal(err)
	}
	if len(sw) == 0 || sw[0] != 0 {
		t.Fatalf("subwords of an in-vocabulary word must start with its own id: %v", sw)
	}
}

func TestInMemoryGetLineLabelSplit(t *testing.T) {
	args := newTestArgs()
	args.Maxn = 0 // disable subwords for a simpler word-id check
	words := []Entry{
		{Word: EOS, Count: 10, Type: Word},
		{Word: "cat", Count: 10, Type: Word},
		{Word: "__label__pos", Count: 1, Type: Label},
	}
	d := NewInMemory(args, words, 21)

	wordIDs, labelIDs, err := d.GetLine("cat __label__pos")
	if err != nil {
		t.Fatal(err)
	}
	if len(labelIDs) != 1 || labelIDs[0] != 0 {
		t.Fatalf("labelIDs = %v, want [0]", labelIDs)
	}
	found := false
	for _, id := range wordIDs {
		if w, _ := d.GetWord(id); w == "cat" {
			found = true
		}
	}
	if !found {
		t.Fatalf("wordIDs %v should resolve to include cat", wordIDs)
	}
}

func TestInMemoryGetLineDiscardSupervisedNeverDrops(t *testing.T) {
	args := newTestArgs()
	args.Model = ftargs.ModelSUP
	words := []Entry{
		{Word: EOS, Count: 1, Type: Word},
		{Word: "rare", Count: 1, Type: Word},
	}
	d := NewInMemory(args, words, 1_000_000) // tiny count vs huge corpus -> near-certain discard if not supervised

	rng := rand.New(rand.NewSource(1))
	ids, err := d.GetLineDiscard("rare", rng)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Fatalf("supervised models must never sub-sample discard, got %v", ids)
	}
}

func TestInMemoryGetCounts(t *testing.T) {
	args := newTestArgs()
	words := []Entry{
		{Word: "a", Count: 5, Type: Word},
		{Word: "b", Count: 7, Type: Word},
		{Word: "__label__x", Count: 2, Type: Label},
	}
	d := NewInMemory(args, words, 14)

	wc := d.GetCounts(Word)
	if len(wc) != 2 || wc[0] != 5 || wc[1] != 7 {
		t.Fatalf("word counts = %v, want [5 7]", wc)
	}
	lc := d.GetCounts(Label)
	if len(lc) != 1 || lc[0] != 2 {
		t.Fatalf("label counts = %v, want [2]", lc)
	}
}
