// Copyright 2023 The go-ethereum Authors
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

package types

import "testing"

func u32(v uint32) *uint32 { return &v }

func TestCoinIDDeterministic(t *testing.T) {
	c := Coin{Amount: 100}
	c.ParentID[0] = 1
	c.PuzzleHash[0] = 2
	id1 := c.ID()
	id2 := c.ID()
	if id1 != id2 {
		t.Fatal("coin id must be deterministic")
	}
	c2 := c
	c2.Amount = 101
	if c2.ID() == id1 {
		t.Fatal("coin id must depend on amount")
	}
}

func TestCoinStateValidInvariant(t *testing.T) {
	s := CoinState{CreatedHeight: u32(10), SpentHeight: u32(9)}
	if s.Valid() {
		t.Fatal("spent_height < created_height must be invalid")
	}
	s2 := CoinState{SpentHeight: u32(9)}
	if s2.Valid() {
		t.Fatal("spent_height set without created_height must be invalid")
	}
	s3 := CoinState{CreatedHeight: u32(5)}
	if !s3.Valid() {
		t.Fatal("created-only state should be valid")
	}
	s4 := CoinState{CreatedHeight: u32(5), SpentHeight: u32(5)}
	if !s4.Valid() {
		t.Fatal("spent == created should be valid")
	}
}

func TestCoinStateHashDistinguishesHeights(t *testing.T) {
	base := CoinState{CreatedHeight: u32(5)}
	spent := CoinState{CreatedHeight: u32(5), SpentHeight: u32(6)}
	if base.Hash() == spent.Hash() {
		t.Fatal("hash must distinguish unspent vs spent states")
	}
}

func TestWeightProofPeak(t *testing.T) {
	wp := &WeightProof{RecentChainData: []HeaderBlock{{Height: 10}, {Height: 11}}}
	if wp.Peak().Height != 11 {
		t.Fatal("peak must be the last recent-chain entry")
	}
	empty := &WeightProof{}
	if empty.Peak() != nil {
		t.Fatal("empty weight proof has no peak")
	}
}

func TestWeightProofHashStable(t *testing.T) {
	wp := &WeightProof{RecentChainData: []HeaderBlock{{Height: 1}}}
	if wp.Hash() != wp.Hash() {
		t.Fatal("weight proof hash must be stable")
	}
}
