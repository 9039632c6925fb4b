package ftmodel

// huffmanNode is one node of the hierarchical-softmax tree: leaves are the
// first osz nodes (one per output row), the remaining osz-1 nodes are
// internal.
type huffmanNode struct {
	parent int32
	left   int32
	right  int32
	count  int64
	binary bool
}

// huffmanTree holds the built tree plus, for every leaf, the root-to-leaf
// path (internal node ids, offset by -osz) and code (left/right bits).
type huffmanTree struct {
	nodes []huffmanNode
	path  [][]int32
	code  [][]bool
}

// buildHuffmanTree builds the tree from per-class counts, following a
// two-cursor greedy merge: at every step the two smallest-count candidates
// are taken from either the (sorted, descending) leaf cursor or the FIFO
// internal-node cursor, whichever is smaller.
func buildHuffmanTree(counts []int64) *huffmanTree {
	osz := len(counts)
	n := 2*osz - 1
	nodes := make([]huffmanNode, n)
	for i := range nodes {
		nodes[i] = huffmanNode{parent: -1, left: -1, right: -1, count: int64(1e15), binary: false}
	}
	for i := 0; i < osz; i++ {
		nodes[i].count = counts[i]
	}

	leaf := osz - 1
	node := osz

	// smallest picks the next-lowest-count candidate from either cursor.
	// The leaf cursor is taken only when its count is strictly smaller; on
	// a tie the internal-node cursor (already-built nodes in creation
	// order) wins.
	smallest := func() int32 {
		if leaf >= 0 && (node >= n || nodes[leaf].count < nodes[node].count) {
			id := int32(leaf)
			leaf--
			return id
		}
		id := int32(node)
		node++
		return id
	}

	for i := osz; i < n; i++ {
		mini0 := smallest()
		mini1 := smallest()
		nodes[i].left = mini0
		nodes[i].right = mini1
		nodes[i].count = nodes[mini0].count + nodes[mini1].count
		nodes[mini0].parent = int32(i)
		nodes[mini1].parent = int32(i)
		nodes[mini1].binary = true
	}

	path := make([][]int32, osz)
	code := make([][]bool, osz)
	for i := 0; i < osz; i++ {
		var p []int32
		var c []bool
		j := int32(i)
		for nodes[j].parent != -1 {
			parent := nodes[j].parent
			p = append(p, parent-int32(osz))
			c = append(c, nodes[j].binary)
			j = parent
		}
		path[i] = p
		code[i] = c
	}

	return &huffmanTree{nodes: nodes, path: path, code: code}
}

// root returns the root node id, 2*osz-2.
func (t *huffmanTree) root() int32 { return int32(len(t.nodes) - 1) }
