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

package racecache

import (
	"testing"

	"github.com/chia-network/light-wallet-sync/types"
)

func TestAddAndPop(t *testing.T) {
	c := New(100)
	var hash types.Bytes32
	hash[0] = 1
	cs := types.CoinState{Coin: types.Coin{Amount: 5}}
	c.Add(50, hash, cs)

	got, ok := c.Pop(hash)
	if !ok || len(got) != 1 {
		t.Fatalf("expected one buffered coin state, got %v ok=%v", got, ok)
	}
	if _, ok := c.Pop(hash); ok {
		t.Fatal("pop should drain the buffer")
	}
}

func TestEvictBefore(t *testing.T) {
	c := New(100)
	var oldHash, newHash types.Bytes32
	oldHash[0], newHash[0] = 1, 2
	c.Add(10, oldHash, types.CoinState{})
	c.Add(950, newHash, types.CoinState{})

	c.EvictBefore(1000)

	if _, ok := c.Pop(oldHash); ok {
		t.Fatal("header far behind the peak should have been evicted")
	}
	if _, ok := c.Pop(newHash); !ok {
		t.Fatal("header within the horizon should survive eviction")
	}
}

func TestDrainRange(t *testing.T) {
	c := New(1000)
	var h1, h2, h3 types.Bytes32
	h1[0], h2[0], h3[0] = 1, 2, 3
	c.Add(100, h1, types.CoinState{})
	c.Add(101, h2, types.CoinState{})
	c.Add(200, h3, types.CoinState{})

	drained := c.DrainRange(99, 101)
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained entries, got %d", len(drained))
	}
	if drained[0].Height != 100 || drained[1].Height != 101 {
		t.Fatalf("expected drained entries in ascending height order, got %+v", drained)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry left after drain, got %d", c.Len())
	}
	if _, ok := c.Pop(h3); !ok {
		t.Fatal("entry outside the drained range should survive")
	}
}

func TestLen(t *testing.T) {
	c := New(100)
	var h1, h2 types.Bytes32
	h1[0], h2[0] = 1, 2
	c.Add(1, h1, types.CoinState{})
	c.Add(2, h2, types.CoinState{})
	if c.Len() != 2 {
		t.Fatalf("expected 2 distinct headers buffered, got %d", c.Len())
	}
}
