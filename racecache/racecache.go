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

// Package racecache implements RaceCache (spec §4.D): coin states that
// arrive referencing a header the engine hasn't reconciled to a peak
// yet are buffered here, keyed by header hash, so they can be replayed
// once that header becomes part of the recognized chain. Entries whose
// height falls too far behind the current peak are pruned.
package racecache

import (
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/chia-network/light-wallet-sync/types"
)

type entry struct {
	height uint32
	hash   types.Bytes32
}

// Cache is RaceCache: a map from header hash to the set of coin states
// observed against it, plus an ordered index by height used for
// horizon-based eviction.
type Cache struct {
	mu      sync.Mutex
	byHash  map[types.Bytes32]mapset.Set[types.CoinState]
	order   []entry
	horizon uint32
}

// New builds an empty RaceCache evicting entries once they fall at
// least horizon blocks behind the current peak (spec default 100).
func New(horizon uint32) *Cache {
	return &Cache{
		byHash:  make(map[types.Bytes32]mapset.Set[types.CoinState]),
		horizon: horizon,
	}
}

// Add buffers a coin state observed against a header at height/hash
// that hasn't been reconciled into the recognized chain yet, then
// evicts anything that has fallen at least horizon blocks behind this
// entry's own height (spec §4.D step 1 of add).
func (c *Cache) Add(height uint32, hash types.Bytes32, cs types.CoinState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.byHash[hash]
	if !ok {
		set = mapset.NewThreadUnsafeSet[types.CoinState]()
		c.byHash[hash] = set
		c.order = append(c.order, entry{height: height, hash: hash})
	}
	set.Add(cs)
	c.evictBefore(height)
}

// Pop removes and returns every coin state buffered against hash, for
// replay once that header is recognized.
func (c *Cache) Pop(hash types.Bytes32) ([]types.CoinState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.byHash[hash]
	if !ok {
		return nil, false
	}
	delete(c.byHash, hash)
	return set.ToSlice(), true
}

// DrainedEntry is one header's worth of buffered coin states, returned
// by DrainRange for replay through receive_state.
type DrainedEntry struct {
	Height uint32
	Hash   types.Bytes32
	States []types.CoinState
}

// DrainRange removes and returns every buffered header whose height
// falls in (fromExclusive, toInclusive], ordered by ascending height.
// Used by short_sync_backtrack to replay race-cache entries once the
// headers they reference become part of the recognized chain (spec
// §4.G.2).
func (c *Cache) DrainRange(fromExclusive, toInclusive uint32) []DrainedEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var drained []DrainedEntry
	kept := c.order[:0]
	for _, e := range c.order {
		if e.height > fromExclusive && e.height <= toInclusive {
			set := c.byHash[e.hash]
			delete(c.byHash, e.hash)
			drained = append(drained, DrainedEntry{Height: e.height, Hash: e.hash, States: set.ToSlice()})
			continue
		}
		kept = append(kept, e)
	}
	c.order = kept

	sort.Slice(drained, func(i, j int) bool { return drained[i].Height < drained[j].Height })
	return drained
}

// EvictBefore drops every buffered header at least horizon blocks
// behind peakHeight, on the assumption it will never be reconciled.
func (c *Cache) EvictBefore(peakHeight uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictBefore(peakHeight)
}

// evictBefore is EvictBefore's body, callable while c.mu is already held.
func (c *Cache) evictBefore(peakHeight uint32) {
	if peakHeight < c.horizon {
		return
	}
	cutoff := peakHeight - c.horizon
	kept := c.order[:0]
	for _, e := range c.order {
		if e.height <= cutoff {
			delete(c.byHash, e.hash)
			continue
		}
		kept = append(kept, e)
	}
	c.order = kept
}

// Len reports the number of distinct headers currently buffered, for
// Diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byHash)
}
