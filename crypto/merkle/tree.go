package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// ErrEmptyTree is returned when a tree is built from no leaves.
var ErrEmptyTree = errors.New("merkle tree needs at least one leaf")

// Tree is a complete binary tree stored as a flat array: node 0 is the root
// and the sorted leaves fill the last len(leaves) positions.
type Tree struct {
	nodes []common.Hash
	// leaf hash -> position in nodes
	index map[common.Hash]int
}

// NewTree builds a tree over the given leaf hashes. Leaves are sorted so that
// the root depends only on the set of leaves, not on their order.
func NewTree(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}

	sorted := make([]common.Hash, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	nodes := make([]common.Hash, 2*len(sorted)-1)
	index := make(map[common.Hash]int, len(sorted))
	for i, leaf := range sorted {
		pos := len(nodes) - 1 - i
		if _, dup := index[leaf]; dup {
			return nil, fmt.Errorf("duplicate leaf %s", leaf)
		}
		nodes[pos] = leaf
		index[leaf] = pos
	}
	for i := len(nodes) - 1 - len(sorted); i >= 0; i-- {
		nodes[i] = hashPair(nodes[2*i+1], nodes[2*i+2])
	}

	return &Tree{nodes: nodes, index: index}, nil
}

// Root returns the commitment.
func (t *Tree) Root() common.Hash {
	return t.nodes[0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.index)
}

// Proof returns the sibling path for leaf.
func (t *Tree) Proof(leaf common.Hash) ([]common.Hash, error) {
	pos, ok := t.index[leaf]
	if !ok {
		return nil, fmt.Errorf("leaf %s is not in the tree", leaf)
	}

	var proof []common.Hash
	for pos > 0 {
		sibling := pos - 1
		if pos%2 == 1 {
			sibling = pos + 1
		}
		proof = append(proof, t.nodes[sibling])
		pos = (pos - 1) / 2
	}
	return proof, nil
}
