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

package walletstate

import (
	"sync"

	"github.com/chia-network/light-wallet-sync/types"
)

// MemStore is an in-memory Store, analogous to ethdb/memorydb: useful
// for tests and for a wallet backend that hasn't wired real
// persistence yet.
type MemStore struct {
	mu              sync.RWMutex
	coins           map[types.Bytes32]types.CoinState
	peakHeight      uint32
	puzzleHashes    []types.Bytes32
	puzzleHashSeen  map[types.Bytes32]bool
	derivationIndex int
	recentHeaders   map[uint32]types.Bytes32
}

// NewMemStore builds an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		coins:          make(map[types.Bytes32]types.CoinState),
		puzzleHashSeen: make(map[types.Bytes32]bool),
		recentHeaders:  make(map[uint32]types.Bytes32),
	}
}

func (m *MemStore) GetCoinState(id types.Bytes32) (types.CoinState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs, ok := m.coins[id]
	return cs, ok, nil
}

func (m *MemStore) PutCoinStates(states []types.CoinState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cs := range states {
		m.coins[cs.Coin.ID()] = cs
	}
	return nil
}

func (m *MemStore) PeakHeight() (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peakHeight, nil
}

func (m *MemStore) SetPeakHeight(height uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peakHeight = height
	return nil
}

func (m *MemStore) PuzzleHashes() ([]types.Bytes32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Bytes32, len(m.puzzleHashes))
	copy(out, m.puzzleHashes)
	return out, nil
}

func (m *MemStore) AddPuzzleHashes(hashes []types.Bytes32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hashes {
		if m.puzzleHashSeen[h] {
			continue
		}
		m.puzzleHashSeen[h] = true
		m.puzzleHashes = append(m.puzzleHashes, h)
	}
	return nil
}

func (m *MemStore) DerivationIndex() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.derivationIndex, nil
}

func (m *MemStore) SetDerivationIndex(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.derivationIndex = index
	return nil
}

func (m *MemStore) RecentHeader(height uint32) (types.Bytes32, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hash, ok := m.recentHeaders[height]
	return hash, ok, nil
}

func (m *MemStore) RecordRecentHeader(height uint32, hash types.Bytes32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recentHeaders[height] = hash
	return nil
}

// ReorgRollback discards everything recorded above height and pulls
// the peak back to height.
func (m *MemStore) ReorgRollback(height uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h := range m.recentHeaders {
		if h > height {
			delete(m.recentHeaders, h)
		}
	}
	for id, cs := range m.coins {
		if cs.CreatedHeight != nil && *cs.CreatedHeight > height {
			delete(m.coins, id)
			continue
		}
		if cs.SpentHeight != nil && *cs.SpentHeight > height {
			cs.SpentHeight = nil
			m.coins[id] = cs
		}
	}
	if m.peakHeight > height {
		m.peakHeight = height
	}
	return nil
}

// ReceiveBlock applies hb forward: once the wallet has recorded any
// header at all, hb must chain directly onto the peak's recorded
// hash. A store that has never recorded a header accepts whatever
// block arrives first, establishing the initial peak.
func (m *MemStore) ReceiveBlock(hb types.HeaderBlock) (BlockResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, known := m.recentHeaders[m.peakHeight]; known {
		if hb.Height != m.peakHeight+1 || hb.PrevHeaderHash != prev {
			return BlockInvalid, nil
		}
	} else if len(m.recentHeaders) > 0 {
		return BlockInvalid, nil
	}
	m.recentHeaders[hb.Height] = hb.HeaderHash
	if hb.Height > m.peakHeight || len(m.recentHeaders) == 1 {
		m.peakHeight = hb.Height
	}
	return BlockAdded, nil
}
