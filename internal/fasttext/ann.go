package fasttext

import (
	"fmt"
	"path/filepath"

	"github.com/screenager/fasttext/internal/wordindex"
)

// ensureANN lazily builds (or loads a cached) approximate index over the
// unit word-vector table, for callers that want nearest-neighbour lookups
// on vocabularies too large for topKByCosine's linear scan to stay
// interactive. Node ids are inserted in dictionary word-id order, so a
// result's WordID is directly a dictionary word id.
func (p *Predictor) ensureANN() error {
	p.annOnce.Do(func() {
		p.ensureWordVectors()
		if p.annCachePath != "" {
			if g, err := wordindex.Load(p.annCachePath); err == nil {
				p.ann = g
				return
			}
		}
		g := wordindex.New(wordindex.DefaultM, wordindex.DefaultEfConstruction, wordindex.DefaultEfSearch)
		for id, vec := range p.wordVectors {
			g.Insert(int32(id), vec)
		}
		p.ann = g
		if p.annCachePath != "" {
			p.annErr = g.Save(p.annCachePath)
		}
	})
	return p.annErr
}

// SetANNCachePath points the lazily-built approximate index at a sidecar
// file under dir, reused across process restarts instead of rebuilt from
// scratch on every first approximate query.
func (p *Predictor) SetANNCachePath(dir string) {
	p.annCachePath = filepath.Join(dir, "ann.widx")
}

func (p *Predictor) annResults(query []float32, k int, ban map[string]bool) ([]WordScore, error) {
	if err := p.ensureANN(); err != nil {
		return nil, fmt.Errorf("build approximate index: %w", err)
	}
	raw := p.ann.Search(query, k+len(ban))
	out := make([]WordScore, 0, k)
	for _, r := range raw {
		word, err := p.dict.GetWord(r.WordID)
		if err != nil || ban[word] {
			continue
		}
		out = append(out, WordScore{Word: word, Score: r.Score})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// NNApprox is NN's approximate-nearest-neighbour counterpart, backed by the
// lazily-built index instead of a full linear cosine scan.
func (p *Predictor) NNApprox(word string, k int) ([]WordScore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	vec, err := p.unitWordVectorLocked(word)
	if err != nil {
		return nil, err
	}
	return p.annResults(vec, k, map[string]bool{word: true})
}

// AnalogiesApprox is Analogies' approximate-nearest-neighbour counterpart.
func (p *Predictor) AnalogiesApprox(a, b, c string, k int) ([]WordScore, error) {
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
	return p.annResults(query, k, map[string]bool{a: true, b: true, c: true})
}
