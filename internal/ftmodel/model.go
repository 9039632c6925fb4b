// Package ftmodel implements the inference engine: hidden-layer
// averaging, the softmax / hierarchical-softmax output heads (negative
// sampling collapses to softmax at predict time), the Huffman tree build,
// sigmoid/log lookup tables, and the bounded k-best priority queue.
package ftmodel

import (
	"fmt"
	"math"

	"github.com/screenager/fasttext/internal/ftargs"
	"github.com/screenager/fasttext/internal/ftfail"
)

// RowMatrix is the shared contract the inference engine needs from either a
// dense or product-quantized matrix: dot a vector against row i, accumulate
// a scaled row into a vector, and materialize a row.
type RowMatrix interface {
	DotRow(v []float32, i int64) float32
	AddRow(v []float32, i int64, a float32)
	GetRow(i int64) []float32
	Rows() int64
}

// Model holds the two matrices referenced at inference time plus the
// scratch vectors and precomputed tables. grad is retained only because
// the trainer writes through it; predict never reads it.
type Model struct {
	input  RowMatrix
	output RowMatrix

	hidden []float32
	grad   []float32

	tSigmoid []float32
	tLog     []float32

	loss ftargs.LossType
	osz  int64

	huffman  *huffmanTree
	negTable []int32
}

// New builds a Model over the given input/output matrices for the trained
// loss, constructing the Huffman tree (loss==HS) or the negative-sampling
// table (loss==NS) from the dictionary's per-class counts, per the BUILD_MODEL
// load stage.
func New(input, output RowMatrix, loss ftargs.LossType, counts []int64) *Model {
	dim := rowDimOfHelper(input)
	m := &Model{
		input:    input,
		output:   output,
		hidden:   make([]float32, dim),
		grad:     make([]float32, dim),
		tSigmoid: buildSigmoidTable(),
		tLog:     buildLogTable(),
		loss:     loss,
		osz:      output.Rows(),
	}
	switch loss {
	case ftargs.LossHS:
		m.huffman = buildHuffmanTree(counts)
	case ftargs.LossNS:
		m.negTable = buildNegativeTable(counts)
	}
	return m
}

// Clone returns an independent Model sharing this one's input/output
// matrices, sigmoid/log tables, Huffman tree and negative-sampling table,
// with only its own fresh hidden/grad scratch vectors. Unlike New, it never
// re-derives the Huffman tree or the negative-sampling table from counts,
// so cloning a handle stays cheap regardless of vocabulary size.
func (m *Model) Clone() *Model {
	dim := len(m.hidden)
	return &Model{
		input:    m.input,
		output:   m.output,
		hidden:   make([]float32, dim),
		grad:     make([]float32, dim),
		tSigmoid: m.tSigmoid,
		tLog:     m.tLog,
		loss:     m.loss,
		osz:      m.osz,
		huffman:  m.huffman,
		negTable: m.negTable,
	}
}

// rowDimOfHelper lets New size hidden/grad without a type assertion on every
// concrete matrix kind.
func rowDimOfHelper(rm RowMatrix) int {
	if rm.Rows() == 0 {
		return 0
	}
	return len(rm.GetRow(0))
}

// ComputeHidden zeroes hidden, accumulates the averaged input-matrix rows
// for ids, then divides by len(ids). Leaves hidden all-zero when ids is
// empty (predict emits no results for an empty line).
func (m *Model) ComputeHidden(ids []int32) {
	for i := range m.hidden {
		m.hidden[i] = 0
	}
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		m.input.AddRow(m.hidden, int64(id), 1.0)
	}
	inv := float32(1.0 / float64(len(ids)))
	for i := range m.hidden {
		m.hidden[i] *= inv
	}
}

// Hidden returns the current averaged hidden vector (read-only; callers
// must not retain it past the next ComputeHidden call).
func (m *Model) Hidden() []float32 { return m.hidden }

// InputMatrix returns the underlying input RowMatrix, for callers (word/
// sentence/ngram vector lookups) that need to add rows outside of
// ComputeHidden's own averaging loop.
func (m *Model) InputMatrix() RowMatrix { return m.input }

// OutputMatrix returns the underlying output RowMatrix.
func (m *Model) OutputMatrix() RowMatrix { return m.output }

// Predict runs the output head over the current hidden vector:
// hierarchical softmax if loss==HS, otherwise a full softmax
// (negative sampling collapses to softmax at inference time). Results are
// ordered by descending score, bounded to k entries, and filtered to
// exp(score) >= threshold.
func (m *Model) Predict(ids []int32, k int, threshold float32) ([]Prediction, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ftfail.ErrInvalidArgument, k)
	}
	m.ComputeHidden(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	heap := newKBestHeap(k)
	if m.loss == ftargs.LossHS {
		m.dfsHuffman(m.huffman.root(), 0, heap)
	} else {
		m.softmax(heap)
	}

	out := heap.Drain()
	filtered := out[:0]
	for _, p := range out {
		if float32(math.Exp(float64(p.Score))) >= threshold {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// dfsHuffman depth-first descends the Huffman tree from node, accumulating
// log-probability score, pushing completed leaves into heap.
func (m *Model) dfsHuffman(node int32, score float32, heap *kBestHeap) {
	osz := int32(m.osz)
	if node < osz {
		heap.Push(score, node)
		return
	}
	internal := node - osz
	n := m.huffman.nodes[node]
	dot := m.output.DotRow(m.hidden, int64(internal))
	sig := m.sigmoid(dot)
	leftScore := score + m.log(1-sig)
	if min, bounded := heap.Min(); !bounded || leftScore > min {
		m.dfsHuffman(n.left, leftScore, heap)
	}
	rightScore := score + m.log(sig)
	if min, bounded := heap.Min(); !bounded || rightScore > min {
		m.dfsHuffman(n.right, rightScore, heap)
	}
}

// softmax scores every output row via a numerically stable softmax over
// the full vocabulary, pushing (log p_i, i); rows whose log-probability is
// already worse than the heap's current minimum are skipped once the heap
// is full.
func (m *Model) softmax(heap *kBestHeap) {
	n := int(m.osz)
	logits := make([]float32, n)
	var maxLogit float32 = float32(math.Inf(-1))
	for i := 0; i < n; i++ {
		logits[i] = m.output.DotRow(m.hidden, int64(i))
		if logits[i] > maxLogit {
			maxLogit = logits[i]
		}
	}
	var z float64
	for i := 0; i < n; i++ {
		z += math.Exp(float64(logits[i] - maxLogit))
	}
	logZ := float32(math.Log(z)) + maxLogit
	for i := 0; i < n; i++ {
		logP := logits[i] - logZ
		if min, bounded := heap.Min(); bounded && logP <= min {
			continue
		}
		heap.Push(logP, int32(i))
	}
}
