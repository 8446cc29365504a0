// Copyright 2018 The go-ethereum Authors
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

package mclock

import (
	"container/heap"
	"sync"
	"time"
)

// Simulated implements Clock and allows the current time to be advanced
// manually, for deterministic tests of timeout- and backoff-driven logic.
type Simulated struct {
	mu     sync.RWMutex
	now    AbsTime
	timers simTimerHeap
	cond   *sync.Cond
}

type simTimer struct {
	at       AbsTime
	period   time.Duration
	f        func()
	ch       chan AbsTime
	index    int
	fired    bool
	stopped  bool
	simClock *Simulated
}

func (s *Simulated) init() {
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
}

// Now returns the current simulated time.
func (s *Simulated) Now() AbsTime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

// Sleep blocks until the simulated clock has advanced by d.
func (s *Simulated) Sleep(d time.Duration) {
	<-s.After(d)
}

// After returns a channel that receives the current time after the clock
// has advanced past now+d.
func (s *Simulated) After(d time.Duration) <-chan AbsTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	t := &simTimer{at: s.now.Add(d), ch: make(chan AbsTime, 1), simClock: s}
	heap.Push(&s.timers, t)
	return t.ch
}

// NewTimer creates a resettable simulated timer.
func (s *Simulated) NewTimer(d time.Duration) ChanTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	t := &simTimer{at: s.now.Add(d), ch: make(chan AbsTime, 1), simClock: s}
	heap.Push(&s.timers, t)
	return t
}

// AfterFunc schedules f to run once the simulated clock reaches now+d.
func (s *Simulated) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	t := &simTimer{at: s.now.Add(d), f: f, simClock: s}
	heap.Push(&s.timers, t)
	return t
}

// ActiveTimers returns the number of timers that have not yet fired or
// been stopped.
func (s *Simulated) ActiveTimers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.timers)
}

// Run advances the simulated clock by d, firing every timer whose
// deadline falls at or before the new time, in deadline order.
func (s *Simulated) Run(d time.Duration) {
	s.mu.Lock()
	s.init()
	end := s.now.Add(d)
	var fired []*simTimer
	for len(s.timers) > 0 && s.timers[0].at <= end {
		t := heap.Pop(&s.timers).(*simTimer)
		t.fired = true
		fired = append(fired, t)
	}
	s.now = end
	s.mu.Unlock()

	for _, t := range fired {
		if t.f != nil {
			t.f()
		}
		if t.ch != nil {
			select {
			case t.ch <- end:
			default:
			}
		}
	}
}

// Stop cancels the timer; it returns false if already fired or stopped.
func (t *simTimer) Stop() bool {
	t.simClock.mu.Lock()
	defer t.simClock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	if t.index >= 0 && t.index < len(t.simClock.timers) {
		heap.Remove(&t.simClock.timers, t.index)
	}
	return true
}

// Reset reschedules the timer to fire after d from the current simulated time.
func (t *simTimer) Reset(d time.Duration) {
	t.simClock.mu.Lock()
	defer t.simClock.mu.Unlock()
	if !t.fired && !t.stopped && t.index >= 0 {
		heap.Remove(&t.simClock.timers, t.index)
	}
	t.at = t.simClock.now.Add(d)
	t.fired, t.stopped = false, false
	heap.Push(&t.simClock.timers, t)
}

func (t *simTimer) C() <-chan AbsTime { return t.ch }

type simTimerHeap []*simTimer

func (h simTimerHeap) Len() int            { return len(h) }
func (h simTimerHeap) Less(i, j int) bool  { return h[i].at < h[j].at }
func (h simTimerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *simTimerHeap) Push(x interface{}) {
	t := x.(*simTimer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *simTimerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
