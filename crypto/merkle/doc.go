/*
Package merkle verifies and builds the commitments published once per
reporting frame.

# Leaf encoding

A leaf is the ABI encoding of a tuple of static solidity values, hashed twice:

	leaf = keccak256(keccak256(abi.encode(values...)))

The double hash keeps a 64-byte inner node from ever being mistaken for a
leaf.

# Sibling ordering

Inner nodes hash their two children in ascending byte order:

	node = keccak256(min(a, b) || max(a, b))

so a proof is just the list of sibling hashes from the leaf up to the root and
carries no left/right flags. This matches the layout produced by Tree, where
the sorted leaves occupy the tail of a flat array and each node i has
children 2i+1 and 2i+2.
*/
package merkle
