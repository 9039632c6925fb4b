package wordindex

import (
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/screenager/fasttext/internal/binio"
	"github.com/screenager/fasttext/internal/ftfail"
)

var fileMagic = [4]byte{'W', 'I', 'D', 'X'}

const formatVersion = int32(1)

// Save writes the graph to path: a small fixed header (magic, version,
// node count, entry point, max layer, and the three build parameters)
// followed by one record per node (word id, vector, then each layer's
// neighbour id list).
func (g *Graph) Save(path string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := binio.NewWriter(f)
	w.WriteBytes(fileMagic[:])
	w.WriteInt32(formatVersion)
	w.WriteInt32(int32(len(g.nodes)))
	w.WriteInt32(g.entryPoint)
	w.WriteInt32(int32(g.maxLayer))
	w.WriteInt32(int32(g.m))
	w.WriteInt32(int32(g.efConstruction))
	w.WriteInt32(int32(g.efSearch))

	for _, n := range g.nodes {
		w.WriteInt32(n.wordID)
		w.WriteInt32(int32(len(n.vec)))
		for _, x := range n.vec {
			w.WriteFloat32(x)
		}
		w.WriteInt32(int32(len(n.neighbors)))
		for _, layer := range n.neighbors {
			w.WriteInt32(int32(len(layer)))
			for _, nb := range layer {
				w.WriteInt32(nb)
			}
		}
	}
	return w.Err()
}

// Load reads a graph previously written by Save.
func Load(path string) (*Graph, error) {
	r, err := binio.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	magic, err := r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(magic) != string(fileMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic bytes in %s", ftfail.ErrInvalidModel, path)
	}
	version, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported index format version %d", ftfail.ErrInvalidModel, version)
	}

	nodeCount, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	entryPoint, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	maxLayer, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	m, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	efConstruction, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	efSearch, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}

	nodes := make([]vertex, nodeCount)
	for i := range nodes {
		wordID, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		vecLen, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		vec := make([]float32, vecLen)
		for j := range vec {
			vec[j], err = r.ReadFloat32()
			if err != nil {
				return nil, err
			}
		}
		layerCount, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		neighbors := make([][]int32, layerCount)
		for l := range neighbors {
			nbCount, err := r.ReadInt32()
			if err != nil {
				return nil, err
			}
			layer := make([]int32, nbCount)
			for k := range layer {
				layer[k], err = r.ReadInt32()
				if err != nil {
					return nil, err
				}
			}
			neighbors[l] = layer
		}
		nodes[i] = vertex{neighbors: neighbors, wordID: wordID, vec: vec}
	}

	g := &Graph{
		nodes:          nodes,
		entryPoint:     entryPoint,
		maxLayer:       int(maxLayer),
		m:              int(m),
		efConstruction: int(efConstruction),
		efSearch:       int(efSearch),
		rng:            rand.New(rand.NewSource(42)),
	}
	if g.m > 0 {
		g.ml = 1.0 / math.Log(float64(g.m))
	}
	return g, nil
}
