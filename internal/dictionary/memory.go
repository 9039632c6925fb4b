package dictionary

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/screenager/fasttext/internal/binio"
	"github.com/screenager/fasttext/internal/ftargs"
	"github.com/screenager/fasttext/internal/ftfail"
)

// InMemory is the in-memory Dictionary implementation: a flat entry table
// plus an open-addressed (linear probing) hash-to-id table.
type InMemory struct {
	args    ftargs.Args
	entries []Entry
	nWords  int
	nLabels int
	nTokens int64

	table    []int32 // size tableSize, holds entry id or -1
	prune    *pruneIndex
	pDiscard []float64
}

var _ Dictionary = (*InMemory)(nil)

func tableSize(size int, useMax bool) int {
	if useMax {
		return MaxVocabSize
	}
	return int(math.Ceil(float64(size) / 0.7))
}

// findSlot returns the table slot for word: either an empty slot (not
// present) or the slot whose stored entry id has a matching word.
func (d *InMemory) findSlot(word string) int {
	n := len(d.table)
	h := int(Fnv1a32(word) % uint32(n))
	for d.table[h] != -1 && d.entries[d.table[h]].Word != word {
		h = (h + 1) % n
	}
	return h
}

// GetID implements Dictionary.
func (d *InMemory) GetID(word string) int32 {
	h := d.findSlot(word)
	return d.table[h]
}

// Contains implements Dictionary.
func (d *InMemory) Contains(word string) bool { return d.GetID(word) != -1 }

func (d *InMemory) Size() int      { return len(d.entries) }
func (d *InMemory) NWords() int    { return d.nWords }
func (d *InMemory) NLabels() int   { return d.nLabels }
func (d *InMemory) NTokens() int64 { return d.nTokens }

// PruneIdxPresent reports whether the dictionary carries a pruning section
// (pruneIdxSize >= 0), consulted by the load state machine's
// pruned-consistency check.
func (d *InMemory) PruneIdxPresent() bool { return d.prune.present() }

func (d *InMemory) checkID(id int32) error {
	if id < 0 || int(id) >= len(d.entries) {
		return fmt.Errorf("%w: entry id %d out of range [0,%d)", ftfail.ErrInvalidArgument, id, len(d.entries))
	}
	return nil
}

func (d *InMemory) GetWord(id int32) (string, error) {
	if err := d.checkID(id); err != nil {
		return "", err
	}
	return d.entries[id].Word, nil
}

func (d *InMemory) GetLabel(lid int32) (string, error) {
	id := int32(d.nWords) + lid
	if lid < 0 || int(lid) >= d.nLabels {
		return "", fmt.Errorf("%w: label id %d out of range [0,%d)", ftfail.ErrInvalidArgument, lid, d.nLabels)
	}
	return d.entries[id].Word, nil
}

func (d *InMemory) GetCount(id int32) (int64, error) {
	if err := d.checkID(id); err != nil {
		return 0, err
	}
	return d.entries[id].Count, nil
}

func (d *InMemory) GetType(id int32) (EntryType, error) {
	if err := d.checkID(id); err != nil {
		return 0, err
	}
	return d.entries[id].Type, nil
}

func (d *InMemory) GetSubwords(word string) ([]int32, error) {
	if word == EOS {
		return nil, nil
	}
	id := d.GetID(word)
	if id != -1 {
		return d.entries[id].Subwords, nil
	}
	sw := computeCharNgrams(word, d.args.Minn, d.args.Maxn, d.args.Bucket, d.prune, int32(d.nWords))
	return sw, nil
}

func (d *InMemory) GetSubwordsByID(id int32) ([]int32, error) {
	if err := d.checkID(id); err != nil {
		return nil, err
	}
	return d.entries[id].Subwords, nil
}

func (d *InMemory) GetCounts(t EntryType) []int64 {
	lo, hi := 0, d.nWords
	if t == Label {
		lo, hi = d.nWords, d.nWords+d.nLabels
	}
	out := make([]int64, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, d.entries[i].Count)
	}
	return out
}

func (d *InMemory) Close() error { return nil }

func (d *InMemory) accessor() accessor {
	return accessor{
		getID:        d.GetID,
		getType:      d.GetType,
		subwordsByID: d.GetSubwordsByID,
		computeSubwords: func(word string) []int32 {
			return computeCharNgrams(word, d.args.Minn, d.args.Maxn, d.args.Bucket, d.prune, int32(d.nWords))
		},
	}
}

func (d *InMemory) GetLine(text string) ([]int32, []int32, error) {
	return getLineShared(d.accessor(), d.args, d.prune, int32(d.nWords), text)
}

func (d *InMemory) GetLineDiscard(text string, rng *rand.Rand) ([]int32, error) {
	return getLineDiscardShared(d.accessor(), d.args, d.pDiscard, rng, text)
}

// ReadInMemory parses the dictionary section (size, nWords, nLabels,
// nTokens, pruneIdxSize, the entry table, and the optional prune-index
// pairs), then builds the hash table, precomputes every word's subwords,
// and computes the sub-sampling discard table.
func ReadInMemory(r *binio.Reader, args ftargs.Args) (*InMemory, error) {
	size, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("read dict.size: %w", err)
	}
	nWords, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("read dict.nwords: %w", err)
	}
	nLabels, err := r.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("read dict.nlabels: %w", err)
	}
	nTokens, err := r.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("read dict.ntokens: %w", err)
	}
	pruneSize, err := r.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("read dict.pruneidxsize: %w", err)
	}

	entries := make([]Entry, size)
	for i := int32(0); i < size; i++ {
		word, err := r.ReadCStyleString()
		if err != nil {
			return nil, fmt.Errorf("read dict.entry[%d].word: %w", i, err)
		}
		count, err := r.ReadInt64()
		if err != nil {
			return nil, fmt.Errorf("read dict.entry[%d].count: %w", i, err)
		}
		tb, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read dict.entry[%d].type: %w", i, err)
		}
		typ, err := ParseEntryType(tb)
		if err != nil {
			return nil, err
		}
		entries[i] = Entry{Word: word, Count: count, Type: typ}
	}

	prune := &pruneIndex{size: pruneSize}
	if pruneSize >= 0 {
		prune.mapping = make(map[int32]int32, pruneSize)
		for i := int64(0); i < pruneSize; i++ {
			first, err := r.ReadInt32()
			if err != nil {
				return nil, fmt.Errorf("read pruneidx[%d].first: %w", i, err)
			}
			second, err := r.ReadInt32()
			if err != nil {
				return nil, fmt.Errorf("read pruneidx[%d].second: %w", i, err)
			}
			prune.mapping[first] = second
			prune.pairs = append(prune.pairs, [2]int32{first, second})
		}
	}

	if size == 0 {
		return nil, fmt.Errorf("%w: empty vocabulary", ftfail.ErrInvalidModel)
	}

	d := &InMemory{
		args:    args,
		entries: entries,
		nWords:  int(nWords),
		nLabels: int(nLabels),
		nTokens: nTokens,
		prune:   prune,
	}
	d.buildHashTable()
	d.precomputeSubwords()
	d.buildDiscardTable()
	return d, nil
}

// NewInMemory builds a dictionary directly from a list of (word,count,type)
// entries and nTokens, without going through the binary reader. Used by
// tests and by callers building small synthetic models in memory.
func NewInMemory(args ftargs.Args, words []Entry, nTokens int64) *InMemory {
	nWords, nLabels := 0, 0
	for _, e := range words {
		if e.Type == Word {
			nWords++
		} else {
			nLabels++
		}
	}
	d := &InMemory{
		args:    args,
		entries: append([]Entry(nil), words...),
		nWords:  nWords,
		nLabels: nLabels,
		nTokens: nTokens,
		prune:   &pruneIndex{size: -1},
	}
	d.buildHashTable()
	d.precomputeSubwords()
	d.buildDiscardTable()
	return d
}

func (d *InMemory) buildHashTable() {
	d.table = make([]int32, tableSize(len(d.entries), d.args.UseMaxVocabularySize))
	for i := range d.table {
		d.table[i] = -1
	}
	for id, e := range d.entries {
		h := d.findSlot(e.Word)
		d.table[h] = int32(id)
	}
}

func (d *InMemory) precomputeSubwords() {
	for i := range d.entries {
		if d.entries[i].Type != Word {
			continue
		}
		id := int32(i)
		sw := []int32{id}
		if d.args.HasSubwords() && d.entries[i].Word != EOS {
			sw = append(sw, computeCharNgrams(d.entries[i].Word, d.args.Minn, d.args.Maxn, d.args.Bucket, d.prune, int32(d.nWords))...)
		}
		d.entries[i].Subwords = sw
	}
}

func (d *InMemory) buildDiscardTable() {
	d.pDiscard = make([]float64, d.nWords)
	for i := 0; i < d.nWords; i++ {
		d.pDiscard[i] = discardProb(d.args.T, d.entries[i].Count, d.nTokens)
	}
}

// Write serialises the dictionary section.
func (d *InMemory) Write(w *binio.Writer) {
	w.WriteInt32(int32(len(d.entries)))
	w.WriteInt32(int32(d.nWords))
	w.WriteInt32(int32(d.nLabels))
	w.WriteInt64(d.nTokens)
	w.WriteInt64(d.prune.size)
	for _, e := range d.entries {
		w.WriteCStyleString(e.Word)
		w.WriteInt64(e.Count)
		w.WriteByte(byte(e.Type))
	}
	if d.prune.present() {
		for _, pair := range d.prune.pairs {
			w.WriteInt32(pair[0])
			w.WriteInt32(pair[1])
		}
	}
}
