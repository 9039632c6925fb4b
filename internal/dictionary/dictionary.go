// Package dictionary implements the vocabulary/label table, the
// character-n-gram subword index, word-n-gram hashing, tokenisation, and
// the sub-sampling discard table, as a shared Dictionary
// contract with two concrete backings: an in-memory hash-table
// implementation and a memory-mapped, sorted-array implementation
// sharing the same tokenisation and subword logic.
package dictionary

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/screenager/fasttext/internal/ftargs"
	"github.com/screenager/fasttext/internal/ftfail"
)

// EntryType discriminates a vocabulary entry.
type EntryType uint8

const (
	Word  EntryType = 0
	Label EntryType = 1
)

func ParseEntryType(b byte) (EntryType, error) {
	switch b {
	case 0:
		return Word, nil
	case 1:
		return Label, nil
	default:
		return 0, fmt.Errorf("%w: invalid entry type byte %d", ftfail.ErrInvalidModel, b)
	}
}

// Entry is one vocabulary/label row.
type Entry struct {
	Word     string
	Count    int64
	Type     EntryType
	Subwords []int32 // word id first, then nWords+bucket ids; nil for labels
}

// MaxVocabSize bounds the FNV hash table size when Args.UseMaxVocabularySize
// is set (version-11 back-compat).
const MaxVocabSize = 30_000_000

// NegativeTableSize is the size of the negative-sampling multiplicity
// table; only relevant for loss==NS, rebuilt at load for
// bit-equivalence even though predict never consults it.
const NegativeTableSize = 10_000_000

// Dictionary is the shared read contract both the in-memory and
// memory-mapped dictionaries implement.
type Dictionary interface {
	Size() int
	NWords() int
	NLabels() int
	NTokens() int64

	GetID(word string) int32
	Contains(word string) bool
	GetWord(id int32) (string, error)
	GetLabel(lid int32) (string, error)
	GetCount(id int32) (int64, error)
	GetType(id int32) (EntryType, error)

	// GetSubwords returns the subword id list for word: the stored list
	// (word id first) when in-vocabulary, or the freshly computed
	// character-n-gram bucket ids when out-of-vocabulary. "</s>" always
	// returns no subwords.
	GetSubwords(word string) ([]int32, error)
	GetSubwordsByID(id int32) ([]int32, error)

	// GetLine tokenises text and returns the fully expanded token-id
	// stream fed to computeHidden (word ids expanded to their subwords,
	// or the bare id when Maxn<=0, plus bolted-on word-n-gram bucket
	// ids) and the label ids (0-based, i.e. already offset by -nWords).
	GetLine(text string) (words []int32, labels []int32, err error)

	// GetLineDiscard tokenises text, maps tokens to word ids (no subword
	// expansion), and applies sub-sampling discard using rng. Used by
	// unsupervised word/sentence-vector paths.
	GetLineDiscard(text string, rng *rand.Rand) ([]int32, error)

	GetCounts(t EntryType) []int64

	Close() error
}

// pruneIndex maps an original bucket id to its compacted id after model
// pruning. size == -1 means "no pruning section"; size == 0 means present
// but empty, which additionally disables word-n-gram emission entirely
// (the pruning gate).
type pruneIndex struct {
	size    int64
	mapping map[int32]int32
	pairs   [][2]int32 // insertion order, preserved for byte-exact re-serialization
}

func (p *pruneIndex) present() bool { return p.size >= 0 }

// lookup applies the remap. ok is false when the id was pruned away and
// must not be emitted.
func (p *pruneIndex) lookup(id int32) (int32, bool) {
	if !p.present() {
		return id, true
	}
	v, ok := p.mapping[id]
	return v, ok
}

// discardProb computes sqrt(t/f) + t/f for f = count/nTokens.
func discardProb(t float64, count, nTokens int64) float64 {
	if nTokens == 0 || count == 0 {
		return 1
	}
	f := float64(count) / float64(nTokens)
	r := t / f
	return math.Sqrt(r) + r
}

// computeCharNgrams computes the character-n-gram bucket ids for the
// padded word "<"+w+">": iterate rune-start positions,
// grow n-grams in code points up to maxn, skip lengths < minn, skip the
// degenerate length-1 n-gram equal to a lone boundary marker, hash with
// FNV-1a and reduce mod bucket, then apply the prune remap.
func computeCharNgrams(word string, minn, maxn, bucket int32, prune *pruneIndex, nWords int32) []int32 {
	if maxn <= 0 {
		return nil
	}
	padded := []rune("<" + word + ">")
	var out []int32
	for i := 0; i < len(padded); i++ {
		var sb []rune
		for n := int32(1); n <= maxn && i+int(n) <= len(padded); n++ {
			sb = padded[i : i+int(n)]
			if n < minn {
				continue
			}
			if n == 1 && (sb[0] == '<' || sb[0] == '>') {
				continue
			}
			ngram := string(sb)
			h := Fnv1a32(ngram) % uint32(bucket)
			id := nWords + int32(h)
			if remapped, ok := prune.lookup(id); ok {
				out = append(out, remapped)
			}
		}
	}
	return out
}

// NgramStrings returns the padded character-n-gram substrings of word in
// the same order computeCharNgrams emits bucket ids, for callers (e.g.
// ngramVectors) that need the readable n-gram text alongside its id.
func NgramStrings(word string, minn, maxn int32) []string {
	if maxn <= 0 {
		return nil
	}
	padded := []rune("<" + word + ">")
	var out []string
	for i := 0; i < len(padded); i++ {
		for n := int32(1); n <= maxn && i+int(n) <= len(padded); n++ {
			sb := padded[i : i+int(n)]
			if n < minn {
				continue
			}
			if n == 1 && (sb[0] == '<' || sb[0] == '>') {
				continue
			}
			out = append(out, string(sb))
		}
	}
	return out
}

// CharNgramIDs pairs NgramStrings with their bucket ids (nWords + hash mod
// bucket), bypassing the prune remap table: ngramVectors only needs a
// readable (ngram, vector) listing, and the common case has no pruning
// section at all.
func CharNgramIDs(word string, minn, maxn, bucket, nWords int32) (ngrams []string, ids []int32) {
	ngrams = NgramStrings(word, minn, maxn)
	ids = make([]int32, len(ngrams))
	for i, g := range ngrams {
		ids[i] = nWords + int32(Fnv1a32(g)%uint32(bucket))
	}
	return ngrams, ids
}

// computeWordNgramBuckets bolts on word-n-gram ids for the token window via a
// rolling 64-bit hash over runs of up to wordNgrams consecutive token
// hashes, reduced mod bucket. Disabled entirely when prune.size == 0.
func computeWordNgramBuckets(tokenHashes []uint32, wordNgrams int32, bucket int32, prune *pruneIndex, nWords int32) []int32 {
	if wordNgrams <= 1 || len(tokenHashes) < 2 {
		return nil
	}
	if prune.present() && prune.size == 0 {
		return nil
	}
	var out []int32
	n := len(tokenHashes)
	for i := 0; i < n; i++ {
		h := widenSigned32(tokenHashes[i])
		jmax := i + int(wordNgrams) - 1
		if jmax > n-1 {
			jmax = n - 1
		}
		for j := i + 1; j <= jmax; j++ {
			h = rollNgramHash(h, tokenHashes[j])
			bucketID := int32(h % uint64(uint32(bucket)))
			id := nWords + bucketID
			if remapped, ok := prune.lookup(id); ok {
				out = append(out, remapped)
			}
		}
	}
	return out
}

// accessor is the minimal set of entry-access primitives getLineShared and
// getLineDiscardShared need; both concrete Dictionary backings supply one
// bound to themselves, so the tokenisation/subword/word-ngram assembly
// logic is written exactly once, parameterised over the concrete
// entry-access methods instead of duplicated per backing.
type accessor struct {
	getID           func(word string) int32
	getType         func(id int32) (EntryType, error)
	subwordsByID    func(id int32) ([]int32, error)
	computeSubwords func(word string) []int32
}

// getLineShared implements Dictionary.GetLine once for both backends.
func getLineShared(acc accessor, args ftargs.Args, prune *pruneIndex, nWords int32, text string) ([]int32, []int32, error) {
	tokens := Tokenize(text)
	var words, labels []int32
	var hashes []uint32
	for _, tok := range tokens {
		id := acc.getID(tok)
		if id == -1 {
			if strings.HasPrefix(tok, args.Label) {
				continue
			}
			hashes = append(hashes, Fnv1a32(tok))
			if args.HasSubwords() && tok != EOS {
				words = append(words, acc.computeSubwords(tok)...)
			}
			continue
		}
		typ, err := acc.getType(id)
		if err != nil {
			return nil, nil, err
		}
		if typ == Label {
			labels = append(labels, id-nWords)
			continue
		}
		hashes = append(hashes, Fnv1a32(tok))
		if args.HasSubwords() {
			sw, err := acc.subwordsByID(id)
			if err != nil {
				return nil, nil, err
			}
			words = append(words, sw...)
		} else {
			words = append(words, id)
		}
	}
	if args.WordNgrams > 1 {
		words = append(words, computeWordNgramBuckets(hashes, args.WordNgrams, args.Bucket, prune, nWords)...)
	}
	return words, labels, nil
}

// getLineDiscardShared implements Dictionary.GetLineDiscard once for both
// backends.
func getLineDiscardShared(acc accessor, args ftargs.Args, pDiscard []float64, rng *rand.Rand, text string) ([]int32, error) {
	tokens := Tokenize(text)
	var words []int32
	for _, tok := range tokens {
		if tok == EOS {
			continue
		}
		id := acc.getID(tok)
		if id == -1 {
			continue
		}
		typ, err := acc.getType(id)
		if err != nil {
			return nil, err
		}
		if typ != Word {
			continue
		}
		if discard(args.Model, pDiscard, id, rng.Float64()) {
			continue
		}
		words = append(words, id)
	}
	return words, nil
}

// discard reports whether token id should be dropped by sub-sampling:
// true iff the trained architecture is not supervised and r > pDiscard[id].
func discard(model ftargs.ModelType, pDiscard []float64, id int32, r float64) bool {
	if model == ftargs.ModelSUP {
		return false
	}
	return r > pDiscard[id]
}
