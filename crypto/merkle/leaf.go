package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LeafEncoding describes the solidity types of a leaf tuple, in order.
type LeafEncoding struct {
	args abi.Arguments
}

// NewLeafEncoding builds an encoding from solidity type names such as
// "address" or "uint256".
func NewLeafEncoding(types ...string) (*LeafEncoding, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("leaf encoding needs at least one type")
	}

	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			return nil, fmt.Errorf("leaf type %q: %w", t, err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return &LeafEncoding{args: args}, nil
}

// MustLeafEncoding is NewLeafEncoding that panics on error. It is meant for
// package-level encodings with constant type lists.
func MustLeafEncoding(types ...string) *LeafEncoding {
	enc, err := NewLeafEncoding(types...)
	if err != nil {
		panic(err)
	}
	return enc
}

// Encode returns abi.encode(values...).
func (e *LeafEncoding) Encode(values ...interface{}) ([]byte, error) {
	if len(values) != len(e.args) {
		return nil, fmt.Errorf("leaf has %d values, encoding expects %d", len(values), len(e.args))
	}
	return e.args.Pack(values...)
}

// Hash returns the double-hashed leaf for values.
func (e *LeafEncoding) Hash(values ...interface{}) (common.Hash, error) {
	encoded, err := e.Encode(values...)
	if err != nil {
		return common.Hash{}, err
	}
	return LeafHash(encoded), nil
}

// LeafHash hashes an already encoded leaf tuple.
func LeafHash(encoded []byte) common.Hash {
	inner := crypto.Keccak256(encoded)
	return crypto.Keccak256Hash(inner)
}
