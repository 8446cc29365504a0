// Copyright 2022 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package merkle verifies inclusion proofs against a binary Merkle root,
// used by the coin-state validator to check a coin against a header's
// additions_root or removals_root (spec §4.E, §4.E.1).
package merkle

import "crypto/sha256"

// Value is a single 32-byte Merkle tree node.
type Value [32]byte

// Values is an ordered audit path from leaf to root, excluding the leaf
// and root themselves.
type Values []Value

// Proof is the audit path a peer supplies alongside a coin state claim,
// proving a leaf's position against an additions or removals root.
type Proof struct {
	Index  uint64
	Branch Values
}

// VerifyProof recomputes the root from leaf, using index's bits (LSB
// first) to decide, at each level, whether the next proof hash sits to
// the left or the right of the running hash. It reports the recomputed
// root and whether index has been shifted down to 1 or 0 once the
// branch is consumed. An index of 0 is therefore accepted for any
// branch length.
func VerifyProof(leaf Value, index uint64, branch Values) (root Value, ok bool) {
	h := sha256.New()
	cur := leaf
	for _, sibling := range branch {
		h.Reset()
		if index&1 == 0 {
			h.Write(cur[:])
			h.Write(sibling[:])
		} else {
			h.Write(sibling[:])
			h.Write(cur[:])
		}
		h.Sum(cur[:0])
		index >>= 1
	}
	return cur, index == 1 || index == 0
}

// VerifyInclusion checks that leaf, combined with branch, produces the
// claimed root.
func VerifyInclusion(leaf Value, index uint64, branch Values, want Value) bool {
	root, ok := VerifyProof(leaf, index, branch)
	return ok && root == want
}
