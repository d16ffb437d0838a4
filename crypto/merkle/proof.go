package merkle

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifyProof reports whether leaf is committed to by root through proof.
func VerifyProof(proof []common.Hash, root, leaf common.Hash) bool {
	return ProcessProof(proof, leaf) == root
}

// ProcessProof rebuilds the root implied by leaf and its sibling path.
func ProcessProof(proof []common.Hash, leaf common.Hash) common.Hash {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed
}

// hashPair is the commutative inner node hash.
func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}
