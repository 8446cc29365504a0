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

package peer

import (
	"sync"

	"github.com/chia-network/light-wallet-sync/types"
)

type entry struct {
	peer  Interface
	state *State
}

// Table tracks connected peers by a stable integer index instead of
// letting each peer hold a pointer back into the engine: callers pass
// indices around, and the table resolves them, so peer removal never
// requires walking a web of back-references (spec §9).
type Table struct {
	mu    sync.RWMutex
	slots []entry // index -> slot; a nil peer marks a freed slot
	byID  map[types.Bytes32]int
	free  []int
}

// NewTable builds an empty peer table.
func NewTable() *Table {
	return &Table{byID: make(map[types.Bytes32]int)}
}

// Add registers a newly connected peer and returns its stable index.
func (t *Table) Add(p Interface) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := entry{peer: p, state: &State{}}
	if len(t.free) > 0 {
		idx := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.slots[idx] = e
		t.byID[p.ID()] = idx
		return idx
	}
	idx := len(t.slots)
	t.slots = append(t.slots, e)
	t.byID[p.ID()] = idx
	return idx
}

// Remove frees index, making it available for reuse.
func (t *Table) Remove(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.slots) || t.slots[index].peer == nil {
		return
	}
	delete(t.byID, t.slots[index].peer.ID())
	t.slots[index] = entry{}
	t.free = append(t.free, index)
}

// Get resolves an index to its peer and mutable state.
func (t *Table) Get(index int) (Interface, *State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= len(t.slots) || t.slots[index].peer == nil {
		return nil, nil, false
	}
	e := t.slots[index]
	return e.peer, e.state, true
}

// IndexOf resolves a peer id to its current table index.
func (t *Table) IndexOf(id types.Bytes32) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.byID[id]
	return idx, ok
}

// ForEach calls f for every occupied slot. f must not call back into
// Add or Remove.
func (t *Table) ForEach(f func(index int, p Interface, s *State)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for idx, e := range t.slots {
		if e.peer != nil {
			f(idx, e.peer, e.state)
		}
	}
}

// Len reports the number of connected peers.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}
