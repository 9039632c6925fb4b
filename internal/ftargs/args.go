// Package ftargs holds the trained-model configuration record. Args is
// immutable once loaded: this core never retrains, so every field here is
// read at load time and never mutated afterward.
package ftargs

import (
	"fmt"

	"github.com/screenager/fasttext/internal/binio"
	"github.com/screenager/fasttext/internal/ftfail"
)

// LossType discriminates the trained output head.
type LossType int32

const (
	LossHS LossType = iota
	LossNS
	LossSoftmax
)

func (l LossType) String() string {
	switch l {
	case LossHS:
		return "hs"
	case LossNS:
		return "ns"
	case LossSoftmax:
		return "softmax"
	default:
		return fmt.Sprintf("loss(%d)", int32(l))
	}
}

// ModelType discriminates the trained architecture.
type ModelType int32

const (
	ModelCBOW ModelType = iota
	ModelSG
	ModelSUP
)

func (m ModelType) String() string {
	switch m {
	case ModelCBOW:
		return "cbow"
	case ModelSG:
		return "sg"
	case ModelSUP:
		return "sup"
	default:
		return fmt.Sprintf("model(%d)", int32(m))
	}
}

// DefaultLabel is the label-token prefix used when tokenising training
// lines; it is not itself serialized in the 12-int/1-double Args layout.
const DefaultLabel = "__label__"

// Args is the immutable configuration of a trained model.
type Args struct {
	Dim          int32
	WS           int32
	Epoch        int32
	MinCount     int32
	Neg          int32
	WordNgrams   int32
	Loss         LossType
	Model        ModelType
	Bucket       int32
	Minn         int32
	Maxn         int32
	LRUpdateRate int32
	T            float64

	Label                string
	UseMaxVocabularySize bool
}

// New returns Args with the trainer's defaults, for use by tests that build
// small synthetic models.
func New() Args {
	return Args{
		Dim:          100,
		WS:           5,
		Epoch:        5,
		MinCount:     5,
		Neg:          5,
		WordNgrams:   1,
		Loss:         LossNS,
		Model:        ModelSG,
		Bucket:       2_000_000,
		Minn:         3,
		Maxn:         6,
		LRUpdateRate: 100,
		T:            1e-4,
		Label:        DefaultLabel,
	}
}

// Read parses the fixed 12-int + 1-double Args record and applies the
// version-11 supervised back-compat rule: force Maxn=0 (no character
// subwords) and UseMaxVocabularySize=true.
func Read(r *binio.Reader, version int32) (Args, error) {
	var a Args
	fields := []*int32{
		&a.Dim, &a.WS, &a.Epoch, &a.MinCount, &a.Neg, &a.WordNgrams,
		(*int32)(&a.Loss), (*int32)(&a.Model), &a.Bucket, &a.Minn, &a.Maxn, &a.LRUpdateRate,
	}
	for _, f := range fields {
		v, err := r.ReadInt32()
		if err != nil {
			return Args{}, fmt.Errorf("read args: %w", err)
		}
		*f = v
	}
	t, err := r.ReadFloat64()
	if err != nil {
		return Args{}, fmt.Errorf("read args t: %w", err)
	}
	a.T = t
	a.Label = DefaultLabel

	if a.Loss < LossHS || a.Loss > LossSoftmax {
		return Args{}, fmt.Errorf("%w: invalid loss enum %d", ftfail.ErrInvalidModel, a.Loss)
	}
	if a.Model < ModelCBOW || a.Model > ModelSUP {
		return Args{}, fmt.Errorf("%w: invalid model enum %d", ftfail.ErrInvalidModel, a.Model)
	}

	if version == 11 && a.Model == ModelSUP {
		a.Maxn = 0
		a.UseMaxVocabularySize = true
	}
	return a, nil
}

// Write serializes the fixed 12-int + 1-double Args record.
func (a Args) Write(w *binio.Writer) {
	w.WriteInt32(a.Dim)
	w.WriteInt32(a.WS)
	w.WriteInt32(a.Epoch)
	w.WriteInt32(a.MinCount)
	w.WriteInt32(a.Neg)
	w.WriteInt32(a.WordNgrams)
	w.WriteInt32(int32(a.Loss))
	w.WriteInt32(int32(a.Model))
	w.WriteInt32(a.Bucket)
	w.WriteInt32(a.Minn)
	w.WriteInt32(a.Maxn)
	w.WriteInt32(a.LRUpdateRate)
	w.WriteFloat64(a.T)
}

// HasSubwords reports whether character n-grams are enabled.
func (a Args) HasSubwords() bool { return a.Maxn > 0 }
