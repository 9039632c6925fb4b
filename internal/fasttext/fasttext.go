// Package fasttext is the orchestration façade: load/save,
// predict/vector/nn/analogy entry points, and in-memory-vs-memory-mapped
// dispatch, built around a mutex-guarded handle with Open/Close-style
// constructors and a lazily-built cache for derived word vectors.
package fasttext

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/screenager/fasttext/internal/binio"
	"github.com/screenager/fasttext/internal/dictionary"
	"github.com/screenager/fasttext/internal/ftargs"
	"github.com/screenager/fasttext/internal/ftfail"
	"github.com/screenager/fasttext/internal/ftmodel"
	"github.com/screenager/fasttext/internal/matrix"
	"github.com/screenager/fasttext/internal/mmapfile"
	"github.com/screenager/fasttext/internal/wordindex"
)

// magic is the fixed 4-byte signature every native model file begins with.
const magic int32 = 793712314

// WordScore pairs a vocabulary word with a cosine-similarity score, the
// result type nn/analogies return.
type WordScore struct {
	Word  string
	Score float32
}

// NgramVector pairs a character n-gram's literal text with its decoded
// input-matrix row.
type NgramVector struct {
	Ngram  string
	Vector []float32
}

// Predictor is a loaded model handle. It is single-threaded per the
// concurrency model: the model's hidden/grad scratch vectors are reused
// across calls. Concurrent use requires Clone.
type Predictor struct {
	mu sync.Mutex

	args    ftargs.Args
	version int32
	dict    dictionary.Dictionary
	model   *ftmodel.Model

	// inMemDict/inMemInput/inMemOutput are non-nil only for a handle loaded
	// via LoadModel, and are what SaveModel/SaveAsMemoryMappedModel
	// serialize; an OpenMemoryMapped handle has none of these and cannot be
	// re-saved.
	inMemDict   *dictionary.InMemory
	inMemInput  *matrix.Dense
	inMemInputQ *matrix.QMatrix
	inMemOutput  *matrix.Dense
	inMemOutputQ *matrix.QMatrix
	quantInput   bool
	quantOutput  bool

	wordVectorsOnce sync.Once
	wordVectors     [][]float32 // row i = unit-normalized getWordVector(dict.getWord(i))

	annOnce      sync.Once
	ann          *wordindex.Graph
	annErr       error
	annCachePath string

	closed  bool
	closers []func() error
}

// LoadModel reads a native single-file model: sign check, args, dictionary,
// quantized-or-dense input matrix, pruned-consistency check,
// quantized-or-dense output matrix, then builds the inference engine
// (Huffman tree or negative-sampling table per the trained loss).
func LoadModel(path string) (*Predictor, error) {
	r, err := binio.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	version, err := signCheck(r)
	if err != nil {
		return nil, err
	}
	args, err := ftargs.Read(r, version)
	if err != nil {
		return nil, err
	}
	dict, err := dictionary.ReadInMemory(r, args)
	if err != nil {
		return nil, err
	}

	quantFlag, err := r.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("read quantflag: %w", err)
	}
	var inputDense *matrix.Dense
	var inputQ *matrix.QMatrix
	if quantFlag {
		if inputQ, err = matrix.ReadQMatrix(r); err != nil {
			return nil, err
		}
	} else {
		if inputDense, err = matrix.ReadDense(r); err != nil {
			return nil, err
		}
	}

	if dict.PruneIdxPresent() && !quantFlag {
		return nil, fmt.Errorf("%w: please download updated model", ftfail.ErrInvalidModel)
	}

	qoutFlag, err := r.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("read qoutflag: %w", err)
	}
	var outputDense *matrix.Dense
	var outputQ *matrix.QMatrix
	if quantFlag && qoutFlag {
		if outputQ, err = matrix.ReadQMatrix(r); err != nil {
			return nil, err
		}
	} else {
		if outputDense, err = matrix.ReadDense(r); err != nil {
			return nil, err
		}
	}

	p := &Predictor{
		args:         args,
		version:      version,
		dict:         dict,
		inMemDict:    dict,
		inMemInput:   inputDense,
		inMemInputQ:  inputQ,
		inMemOutput:  outputDense,
		inMemOutputQ: outputQ,
		quantInput:   quantFlag,
		quantOutput:  quantFlag && qoutFlag,
	}
	p.model = ftmodel.New(p.inputRowMatrix(), p.outputRowMatrix(), args.Loss, p.classCounts())
	return p, nil
}

// OpenMemoryMapped opens the three-file memory-mapped directory layout.
// The returned handle supports every read operation LoadModel's does, but
// SaveModel/SaveAsMemoryMappedModel return an error: it has no in-memory
// dictionary or matrices to re-serialize.
func OpenMemoryMapped(dir string) (*Predictor, error) {
	modelPath := filepath.Join(dir, "model.bin")
	if _, err := os.Stat(modelPath); err != nil {
		modelPath = filepath.Join(dir, "model.ftz")
	}
	r, err := binio.OpenReader(modelPath)
	if err != nil {
		return nil, err
	}
	version, err := signCheck(r)
	if err != nil {
		r.Close()
		return nil, err
	}
	args, err := ftargs.Read(r, version)
	if err != nil {
		r.Close()
		return nil, err
	}
	quantFlag, err := r.ReadBool()
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("read quantflag: %w", err)
	}
	qoutFlag, err := r.ReadBool()
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("read qoutflag: %w", err)
	}
	var outputDense *matrix.Dense
	var outputQ *matrix.QMatrix
	if quantFlag && qoutFlag {
		outputQ, err = matrix.ReadQMatrix(r)
	} else {
		outputDense, err = matrix.ReadDense(r)
	}
	r.Close()
	if err != nil {
		return nil, err
	}

	dict, err := dictionary.OpenMMap(filepath.Join(dir, "dict.mmap"), args)
	if err != nil {
		return nil, err
	}

	var inputRM ftmodel.RowMatrix
	var inMM *mmapfile.File
	if quantFlag {
		inBin, err := binio.OpenReader(filepath.Join(dir, "in.mmap"))
		if err != nil {
			dict.Close()
			return nil, err
		}
		inQ, err := matrix.ReadQMatrix(inBin)
		inBin.Close()
		if err != nil {
			dict.Close()
			return nil, err
		}
		inputRM = inQ
	} else {
		inMM, err = mmapfile.Open(filepath.Join(dir, "in.mmap"), false)
		if err != nil {
			dict.Close()
			return nil, err
		}
		dense, err := matrix.OpenMMapDense(inMM)
		if err != nil {
			inMM.Close()
			dict.Close()
			return nil, err
		}
		inputRM = dense
	}

	var outputRM ftmodel.RowMatrix
	if outputQ != nil {
		outputRM = outputQ
	} else {
		outputRM = ftmodel.NewDenseRows(outputDense)
	}

	p := &Predictor{
		args:    args,
		version: version,
		dict:    dict,
	}
	p.closers = append(p.closers, dict.Close)
	if !quantFlag {
		p.closers = append(p.closers, inMM.Close)
	}
	p.model = ftmodel.New(inputRM, outputRM, args.Loss, p.classCountsFor(dict))
	return p, nil
}

func signCheck(r *binio.Reader) (int32, error) {
	m, err := r.ReadInt32()
	if err != nil {
		return 0, fmt.Errorf("read magic: %w", err)
	}
	if m != magic {
		return 0, fmt.Errorf("%w: bad magic %d", ftfail.ErrInvalidModel, m)
	}
	v, err := r.ReadInt32()
	if err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}
	if v < 11 || v > 12 {
		return 0, fmt.Errorf("%w: unsupported version %d", ftfail.ErrInvalidModel, v)
	}
	return v, nil
}

func (p *Predictor) inputRowMatrix() ftmodel.RowMatrix {
	if p.quantInput {
		return p.inMemInputQ
	}
	return ftmodel.NewDenseRows(p.inMemInput)
}

func (p *Predictor) outputRowMatrix() ftmodel.RowMatrix {
	if p.quantOutput {
		return p.inMemOutputQ
	}
	return ftmodel.NewDenseRows(p.inMemOutput)
}

// classCounts returns the per-output-row counts the Huffman/NS table
// builders need: label counts for supervised models (one class per label),
// word counts otherwise (one class per vocabulary word).
func (p *Predictor) classCounts() []int64 {
	return p.classCountsFor(p.dict)
}

func (p *Predictor) classCountsFor(dict dictionary.Dictionary) []int64 {
	if p.args.Model == ftargs.ModelSUP {
		return dict.GetCounts(dictionary.Label)
	}
	return dict.GetCounts(dictionary.Word)
}

func (p *Predictor) checkOpen() error {
	if p.closed {
		return ftfail.ErrAlreadyClosed
	}
	return nil
}

// Close releases every resource the handle owns (mmap files, dictionary
// backing). Safe to call once; a second call is a no-op.
func (p *Predictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var firstErr error
	for _, c := range p.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Predict returns the top-k labels for text with probability >= threshold.
func (p *Predictor) Predict(text string, k int, threshold float32) ([]WordScore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	words, _, err := p.dict.GetLine(text)
	if err != nil {
		return nil, err
	}
	preds, err := p.model.Predict(words, k, threshold)
	if err != nil {
		return nil, err
	}
	return p.labelize(preds)
}

// PredictAll is Predict with no bound on the result count (all labels
// scoring >= threshold).
func (p *Predictor) PredictAll(text string, threshold float32) ([]WordScore, error) {
	return p.Predict(text, math.MaxInt32, threshold)
}

func (p *Predictor) labelize(preds []ftmodel.Prediction) ([]WordScore, error) {
	out := make([]WordScore, len(preds))
	for i, pr := range preds {
		label, err := p.dict.GetLabel(pr.ID)
		if err != nil {
			return nil, err
		}
		out[i] = WordScore{Word: label, Score: float32(math.Exp(float64(pr.Score)))}
	}
	return out, nil
}

// GetWordVector returns the averaged, unnormalized input-row vector for
// word: its own row plus every character-n-gram bucket row when in
// vocabulary, or just the bucket rows when out of vocabulary.
func (p *Predictor) GetWordVector(word string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	subwords, err := p.dict.GetSubwords(word)
	if err != nil {
		return nil, err
	}
	return p.averageInputRows(subwords), nil
}

func (p *Predictor) averageInputRows(ids []int32) []float32 {
	dim := len(p.model.Hidden())
	vec := make([]float32, dim)
	if len(ids) == 0 {
		return vec
	}
	input := p.inputForVectorOps()
	for _, id := range ids {
		input.AddRow(vec, int64(id), 1.0)
	}
	inv := float32(1.0 / float64(len(ids)))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// inputForVectorOps exposes the RowMatrix the model was built over, for
// vector-lookup operations that need to add rows outside of predict's own
// ComputeHidden path.
func (p *Predictor) inputForVectorOps() ftmodel.RowMatrix {
	if p.inMemDict != nil {
		return p.inputRowMatrix()
	}
	return p.model.InputMatrix()
}

func l2Norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// GetSentenceVector computes a sentence vector: for unsupervised models,
// the average of each token's unit-normalized word vector (tokens with
// zero norm are skipped); for supervised models, the unnormalized average
// of the raw input rows getLine produces.
func (p *Predictor) GetSentenceVector(text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	if p.args.Model == ftargs.ModelSUP {
		words, _, err := p.dict.GetLine(text)
		if err != nil {
			return nil, err
		}
		return p.averageInputRows(words), nil
	}

	tokens := dictionary.Tokenize(text)
	dim := len(p.model.Hidden())
	vec := make([]float32, dim)
	count := 0
	for _, tok := range tokens {
		if tok == dictionary.EOS {
			continue
		}
		subwords, err := p.dict.GetSubwords(tok)
		if err != nil {
			return nil, err
		}
		wv := p.averageInputRows(subwords)
		n := l2Norm(wv)
		if n == 0 {
			continue
		}
		for i := range vec {
			vec[i] += wv[i] / n
		}
		count++
	}
	if count > 0 {
		inv := float32(1.0 / float64(count))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// NgramVectors returns every character n-gram of word paired with its
// decoded input-matrix row (bypassing the prune remap table; see
// dictionary.CharNgramIDs).
func (p *Predictor) NgramVectors(word string) ([]NgramVector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	ngrams, ids := dictionary.CharNgramIDs(word, p.args.Minn, p.args.Maxn, p.args.Bucket, int32(p.dict.NWords()))
	input := p.inputForVectorOps()
	out := make([]NgramVector, len(ngrams))
	for i, g := range ngrams {
		out[i] = NgramVector{Ngram: g, Vector: input.GetRow(int64(ids[i]))}
	}
	return out, nil
}

// TextVector returns the averaged input-row vector over the token ids
// getLine produces for text (no normalisation), the same raw path
// getSentenceVector's supervised branch uses.
func (p *Predictor) TextVector(text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	words, _, err := p.dict.GetLine(text)
	if err != nil {
		return nil, err
	}
	return p.averageInputRows(words), nil
}

// ensureWordVectors lazily builds the unit-normalized per-word vector
// table nn/analogies score against, guarded so the first caller's
// computation is fully published before any other observer sees it.
func (p *Predictor) ensureWordVectors() {
	p.wordVectorsOnce.Do(func() {
		n := p.dict.NWords()
		table := make([][]float32, n)
		input := p.inputForVectorOps()
		for i := 0; i < n; i++ {
			word, err := p.dict.GetWord(int32(i))
			if err != nil {
				continue
			}
			subwords, err := p.dict.GetSubwords(word)
			if err != nil {
				continue
			}
			vec := make([]float32, len(p.model.Hidden()))
			if len(subwords) > 0 {
				for _, id := range subwords {
					input.AddRow(vec, int64(id), 1.0)
				}
				inv := float32(1.0 / float64(len(subwords)))
				for j := range vec {
					vec[j] *= inv
				}
			}
			if norm := l2Norm(vec); norm > 0 {
				for j := range vec {
					vec[j] /= norm
				}
			}
			table[i] = vec
		}
		p.wordVectors = table
	})
}

func cosine(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// topKByCosine scores every vocabulary word against query by cosine
// similarity and returns the k highest not named in ban.
func (p *Predictor) topKByCosine(query []float32, k int, ban map[string]bool) []WordScore {
	p.ensureWordVectors()
	type scored struct {
		word  string
		score float32
	}
	var all []scored
	for i, vec := range p.wordVectors {
		word, err := p.dict.GetWord(int32(i))
		if err != nil || ban[word] {
			continue
		}
		all = append(all, scored{word: word, score: cosine(query, vec)})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })
	if k < len(all) {
		all = all[:k]
	}
	out := make([]WordScore, len(all))
	for i, s := range all {
		out[i] = WordScore{Word: s.word, Score: s.score}
	}
	return out
}

// NN returns the k nearest vocabulary words to word by cosine similarity,
// excluding word itself.
func (p *Predictor) NN(word string, k int) ([]WordScore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	vec, err := p.unitWordVectorLocked(word)
	if err != nil {
		return nil, err
	}
	return p.topKByCosine(vec, k, map[string]bool{word: true}), nil
}

// Analogies answers a:b :: c:? by querying vecB - vecA + vecC, excluding
// a, b, and c from the results.
func (p *Predictor) Analogies(a, b, c string, k int) ([]WordScore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	va, err := p.unitWordVectorLocked(a)
	if err != nil {
		return nil, err
	}
	vb, err := p.unitWordVectorLocked(b)
	if err != nil {
		return nil, err
	}
	vc, err := p.unitWordVectorLocked(c)
	if err != nil {
		return nil, err
	}
	query := make([]float32, len(va))
	for i := range query {
		query[i] = vb[i] - va[i] + vc[i]
	}
	ban := map[string]bool{a: true, b: true, c: true}
	return p.topKByCosine(query, k, ban), nil
}

func (p *Predictor) unitWordVectorLocked(word string) ([]float32, error) {
	subwords, err := p.dict.GetSubwords(word)
	if err != nil {
		return nil, err
	}
	vec := p.averageInputRows(subwords)
	if norm := l2Norm(vec); norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// SaveModel serializes the native single-file layout. Only available on
// a handle loaded via LoadModel.
func (p *Predictor) SaveModel(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return err
	}
	if p.inMemDict == nil {
		return fmt.Errorf("%w: cannot save a memory-mapped handle as a native model", ftfail.ErrInvalidArgument)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := binio.NewWriter(f)
	w.WriteInt32(magic)
	w.WriteInt32(12)
	p.args.Write(w)
	p.inMemDict.Write(w)
	w.WriteBool(p.quantInput)
	p.writeInputMatrix(w)
	w.WriteBool(p.quantOutput)
	p.writeOutputMatrix(w)
	return w.Err()
}

func (p *Predictor) writeInputMatrix(w *binio.Writer) {
	if p.quantInput {
		p.inMemInputQ.Write(w)
	} else {
		p.inMemInput.Write(w)
	}
}

func (p *Predictor) writeOutputMatrix(w *binio.Writer) {
	if p.quantOutput {
		p.inMemOutputQ.Write(w)
	} else {
		p.inMemOutput.Write(w)
	}
}

// SaveAsMemoryMappedModel writes the three-file memory-mapped directory
// layout: model.bin (header + output matrix), dict.mmap, and in.mmap.
func (p *Predictor) SaveAsMemoryMappedModel(dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return err
	}
	if p.inMemDict == nil {
		return fmt.Errorf("%w: cannot re-export a memory-mapped handle", ftfail.ErrInvalidArgument)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	modelF, err := os.Create(filepath.Join(dir, "model.bin"))
	if err != nil {
		return err
	}
	mw := binio.NewWriter(modelF)
	mw.WriteInt32(magic)
	mw.WriteInt32(12)
	p.args.Write(mw)
	mw.WriteBool(p.quantInput)
	mw.WriteBool(p.quantOutput)
	p.writeOutputMatrix(mw)
	if err := modelF.Close(); err != nil {
		return err
	}
	if mw.Err() != nil {
		return mw.Err()
	}

	dictF, err := os.Create(filepath.Join(dir, "dict.mmap"))
	if err != nil {
		return err
	}
	dw := binio.NewWriter(dictF)
	if err := dictionary.WriteMMapDict(dw, p.inMemDict); err != nil {
		dictF.Close()
		return err
	}
	if err := dictF.Close(); err != nil {
		return err
	}

	inF, err := os.Create(filepath.Join(dir, "in.mmap"))
	if err != nil {
		return err
	}
	iw := binio.NewWriter(inF)
	p.writeInputMatrix(iw)
	if err := inF.Close(); err != nil {
		return err
	}
	return iw.Err()
}

// Clone returns an independent handle sharing the large read-only input
// data and the dictionary backend (whose lookups are absolute-offset reads
// with no cursor) but owning its own scratch vectors. The underlying Model
// is cloned cheaply:
// the Huffman tree and negative-sampling table, each expensive to rebuild
// on a large vocabulary, are shared with the original rather than
// reconstructed from per-class counts.
func (p *Predictor) Clone() (*Predictor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	clone := &Predictor{
		args:         p.args,
		version:      p.version,
		dict:         p.dict,
		inMemDict:    p.inMemDict,
		inMemInput:   p.inMemInput,
		inMemInputQ:  p.inMemInputQ,
		inMemOutput:  p.inMemOutput,
		inMemOutputQ: p.inMemOutputQ,
		quantInput:   p.quantInput,
		quantOutput:  p.quantOutput,
	}
	clone.model = p.model.Clone()
	return clone, nil
}
