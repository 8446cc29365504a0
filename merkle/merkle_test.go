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

package merkle

import (
	"crypto/sha256"
	"crypto/rand"
	"testing"
)

// buildTree builds a 4-leaf tree and returns leaves, root and per-leaf proofs.
func buildTree(t *testing.T) (leaves [4]Value, root Value, proofs [4]Values) {
	for i := range leaves {
		rand.Read(leaves[i][:])
	}
	var level1 [2]Value
	h := sha256.New()
	h.Write(leaves[0][:])
	h.Write(leaves[1][:])
	h.Sum(level1[0][:0])
	h.Reset()
	h.Write(leaves[2][:])
	h.Write(leaves[3][:])
	h.Sum(level1[1][:0])
	h.Reset()
	h.Write(level1[0][:])
	h.Write(level1[1][:])
	h.Sum(root[:0])

	proofs[0] = Values{leaves[1], level1[1]}
	proofs[1] = Values{leaves[0], level1[1]}
	proofs[2] = Values{leaves[3], level1[0]}
	proofs[3] = Values{leaves[2], level1[0]}
	return
}

func TestVerifyInclusionAllLeaves(t *testing.T) {
	leaves, root, proofs := buildTree(t)
	for i := range leaves {
		if !VerifyInclusion(leaves[i], uint64(4+i), proofs[i], root) {
			t.Fatalf("leaf %d failed to verify against root", i)
		}
	}
}

func TestVerifyInclusionRejectsWrongLeaf(t *testing.T) {
	_, root, proofs := buildTree(t)
	var other Value
	rand.Read(other[:])
	if VerifyInclusion(other, 4, proofs[0], root) {
		t.Fatal("inclusion proof must not validate an unrelated leaf")
	}
}

func TestVerifyInclusionRejectsWrongRoot(t *testing.T) {
	leaves, _, proofs := buildTree(t)
	var wrongRoot Value
	rand.Read(wrongRoot[:])
	if VerifyInclusion(leaves[0], 4, proofs[0], wrongRoot) {
		t.Fatal("inclusion proof must not validate against an unrelated root")
	}
}
