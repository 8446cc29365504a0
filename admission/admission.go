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

// Package admission implements the bounded concurrency gate (spec
// §4.B) that CoinStateValidator uses to cap the number of
// simultaneously in-flight coin-state validations, with a separate
// bound on how many callers may wait for a slot and a watermark past
// which callers are told to back off before trying again.
package admission

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/chia-network/light-wallet-sync/syncerr"
)

// Gate bounds active admissions at activeCap and queued admitters at
// waitingCap, surfacing IsBackpressured once waiters pass
// waitingHighWatermark.
type Gate struct {
	sem *semaphore.Weighted

	mu                   sync.Mutex
	waiting              int
	waitingCap           int
	waitingHighWatermark int
}

// New builds a Gate. activeCap bounds concurrent holders (spec default
// 6); waitingCap bounds how many callers may be queued for a slot
// before Acquire fails fast; waitingHighWatermark is the softer
// threshold IsBackpressured reports against (spec default 20 for
// both).
func New(activeCap, waitingCap, waitingHighWatermark int) *Gate {
	return &Gate{
		sem:                  semaphore.NewWeighted(int64(activeCap)),
		waitingCap:           waitingCap,
		waitingHighWatermark: waitingHighWatermark,
	}
}

// Ticket represents one admitted unit of work; Release frees its slot.
type Ticket struct {
	g *Gate
}

// Acquire blocks until a slot is free or ctx is done. It fails
// immediately with ErrQueueFull if the waiting-caller count is already
// at waitingCap, rather than growing the queue unbounded.
func (g *Gate) Acquire(ctx context.Context) (*Ticket, error) {
	g.mu.Lock()
	if g.waiting >= g.waitingCap {
		g.mu.Unlock()
		return nil, syncerr.ErrQueueFull
	}
	g.waiting++
	g.mu.Unlock()

	err := g.sem.Acquire(ctx, 1)

	g.mu.Lock()
	g.waiting--
	g.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &Ticket{g: g}, nil
}

// TryAcquire attempts a non-blocking admission, bypassing the waiting
// count entirely. Used by callers that would rather skip a cycle than
// queue at all.
func (g *Gate) TryAcquire() (*Ticket, bool) {
	if g.sem.TryAcquire(1) {
		return &Ticket{g: g}, true
	}
	return nil, false
}

// Release frees the admitted slot. Safe to call once per Ticket.
func (t *Ticket) Release() {
	if t == nil {
		return
	}
	t.g.sem.Release(1)
}

// IsBackpressured reports whether the number of callers currently
// waiting for a slot has reached waitingHighWatermark, signaling that
// new producers (e.g. receive_state's per-update dispatch loop) should sleep
// before submitting more work.
func (g *Gate) IsBackpressured() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiting >= g.waitingHighWatermark
}

// Waiting reports the current waiting-caller count, for Diagnostics.
func (g *Gate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiting
}
